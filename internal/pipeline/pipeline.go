// Package pipeline orchestrates one refresh run.
//
// A run is: resolve the direction's entries into canonical targets (failing
// before any network call if the table is invalid), fetch every target with
// bounded concurrency, expand the outcomes into ordered per-index records,
// and write each configured artifact atomically. Addenda for the direction
// follow a successful main run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmr-tortoise/traffic-board/internal/assemble"
	"github.com/mmr-tortoise/traffic-board/internal/config"
	"github.com/mmr-tortoise/traffic-board/internal/encode"
	"github.com/mmr-tortoise/traffic-board/internal/entry"
	"github.com/mmr-tortoise/traffic-board/internal/metrics"
	"github.com/mmr-tortoise/traffic-board/internal/model"
	"github.com/mmr-tortoise/traffic-board/internal/resolve"
)

// Fetcher retrieves the outcome of one canonical target. It returns an
// error only when the run must stop, such as on context cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, target model.CanonicalTarget, kind model.MetricKind) (model.Outcome, error)
}

// Pipeline runs refreshes against one configuration.
type Pipeline struct {
	cfg      *config.Config
	fetcher  Fetcher
	resolver *resolve.Resolver
	logger   *zap.Logger
	metrics  *metrics.Metrics
	runID    string
	now      func() time.Time
}

// New creates a Pipeline. Every log line it emits carries a fresh run_id.
func New(cfg *config.Config, fetcher Fetcher, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		resolver: resolve.New(logger),
		logger:   logger,
		metrics:  m,
		runID:    runID,
		now:      time.Now,
	}
}

// RunID returns the identifier attached to this pipeline's log lines.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Result describes one completed direction run.
type Result struct {
	Direction model.Direction      `json:"direction"`
	Metric    model.MetricKind     `json:"metric"`
	Targets   int                  `json:"targets"`
	Records   []model.OutputRecord `json:"records"`
	Artifacts []string             `json:"artifacts"`
	Addenda   []AddendumResult     `json:"addenda,omitempty"`
}

// AddendumResult describes one addendum attempt. Addendum failures do not
// fail the run they belong to.
type AddendumResult struct {
	Version string `json:"version"`
	Path    string `json:"path"`
	Error   string `json:"error,omitempty"`
}

// LoadEntries loads an LED location table. Every failure is a CLIError
// with ExitInvalidInput.
func LoadEntries(path string) ([]model.Entry, error) {
	entries, err := entry.Load(path)
	if err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			return nil, err
		}
		return nil, model.WrapCLIError(model.ExitInvalidInput, "invalid LED location table", err)
	}
	return entries, nil
}

// Collect resolves entries for dir and fetches every target, returning the
// records sorted by index and the number of canonical targets. Nothing is
// fetched when resolution fails.
func (p *Pipeline) Collect(ctx context.Context, entries []model.Entry, dir model.Direction, kind model.MetricKind, allowMissing bool) ([]model.OutputRecord, int, error) {
	targets, err := p.resolver.Resolve(entries, resolve.Options{Direction: dir, AllowMissing: allowMissing})
	if err != nil {
		return nil, 0, model.WrapCLIError(
			model.ExitInvalidInput,
			fmt.Sprintf("LED location table failed validation for %s", dir),
			err,
		)
	}

	outcomes, err := p.fetchAll(ctx, targets, kind)
	if err != nil {
		return nil, 0, err
	}

	for _, o := range outcomes {
		p.metrics.ObserveTarget(dir.String(), o.State().String())
	}

	records, err := assemble.Expand(targets, outcomes)
	if err != nil {
		return nil, 0, err
	}
	return records, len(targets), nil
}

// fetchAll fetches every target with at most cfg.Workers requests in
// flight. outcomes[i] belongs to targets[i].
func (p *Pipeline) fetchAll(ctx context.Context, targets []model.CanonicalTarget, kind model.MetricKind) ([]model.Outcome, error) {
	outcomes := make([]model.Outcome, len(targets))

	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range targets {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			outcome, err := p.fetcher.Fetch(gctx, targets[i], kind)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch aborted: %w", err)
	}
	return outcomes, nil
}

// Run performs the full refresh of one direction and metric kind, then
// produces the configured addenda.
func (p *Pipeline) Run(ctx context.Context, entries []model.Entry, dir model.Direction, kind model.MetricKind) (*Result, error) {
	log := p.logger.With(zap.String("direction", dir.String()), zap.String("metric", kind.String()))
	log.Info("starting run")

	records, targets, err := p.Collect(ctx, entries, dir, kind, false)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return nil, err
	}

	result := &Result{Direction: dir, Metric: kind, Targets: targets, Records: records}
	run := p.cfg.Run(dir, kind)

	var writeErrs []error
	for _, a := range run.Artifacts {
		path := p.cfg.ArtifactPath(a.Path)
		err := p.writeArtifact(path, a.Format, records)
		p.metrics.ObserveArtifact(a.Format, err)
		if err != nil {
			log.Error("failed to write artifact", zap.String("path", path), zap.Error(err))
			writeErrs = append(writeErrs, err)
			continue
		}
		log.Info("wrote artifact",
			zap.String("path", path),
			zap.String("format", a.Format),
			zap.Int("records", len(records)))
		result.Artifacts = append(result.Artifacts, path)
	}
	if len(writeErrs) > 0 {
		return result, model.WrapCLIError(
			model.ExitWriteFailed,
			fmt.Sprintf("failed to write %d artifact(s) for %s", len(writeErrs), dir),
			errors.Join(writeErrs...),
		)
	}

	for _, a := range run.Addenda {
		ar := AddendumResult{Version: a.Version, Path: p.cfg.AddendumPath(a)}
		if err := p.Addendum(ctx, dir, kind, a); err != nil {
			log.Error("failed to produce addendum",
				zap.String("version", a.Version),
				zap.String("input", a.Input),
				zap.Error(err))
			ar.Error = err.Error()
		}
		result.Addenda = append(result.Addenda, ar)
	}

	p.metrics.MarkSuccess(dir.String(), kind.String(), p.now())
	log.Info("run complete", zap.Int("targets", targets), zap.Int("records", len(records)))
	return result, nil
}

// Addendum produces one addendum: the supplementary table is resolved with
// gaps permitted, fetched, and written under <patches>_add/<version>.add.
func (p *Pipeline) Addendum(ctx context.Context, dir model.Direction, kind model.MetricKind, a config.Addendum) error {
	entries, err := LoadEntries(a.Input)
	if err != nil {
		return err
	}

	records, _, err := p.Collect(ctx, entries, dir, kind, true)
	if err != nil {
		return err
	}

	path := p.cfg.AddendumPath(a)
	err = encode.WriteArtifact(path, encode.NewAddendum(p.cfg.SupersedesRef(a)), records)
	p.metrics.ObserveArtifact(encode.FormatAddendum, err)
	if err != nil {
		return model.WrapCLIError(model.ExitWriteFailed, "failed to write addendum", err)
	}
	p.logger.Info("wrote addendum",
		zap.String("direction", dir.String()),
		zap.String("path", path),
		zap.Int("records", len(records)))
	return nil
}

// RunAll runs every direction in dirs in order. A failed direction does not
// stop the following ones; the returned error reports every failure and
// carries the exit code of the first.
func (p *Pipeline) RunAll(ctx context.Context, entries []model.Entry, dirs []model.Direction, kind model.MetricKind) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", dir, ctx.Err()))
			break
		}
		res, err := p.Run(ctx, entries, dir, kind)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	switch len(errs) {
	case 0:
		return results, nil
	case 1:
		return results, errs[0]
	default:
		code := model.ExitGeneralError
		var cliErr *model.CLIError
		if errors.As(errs[0], &cliErr) {
			code = cliErr.Code
		}
		return results, model.WrapCLIError(code, fmt.Sprintf("%d directions failed", len(errs)), errors.Join(errs...))
	}
}

func (p *Pipeline) writeArtifact(path, format string, records []model.OutputRecord) error {
	enc, err := encode.ForFormat(format)
	if err != nil {
		return err
	}
	return encode.WriteArtifact(path, enc, records)
}
