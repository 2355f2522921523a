// Package encode renders ordered output records into firmware artifacts.
//
// Each firmware generation reads a different format, so every format is an
// Encoder and the pipeline picks one per configured artifact. Sentinel
// normalization happens here and nowhere earlier: text formats keep unknown
// (-1) and excluded (-2) apart, while the byte format collapses both to 0.
package encode

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmr-tortoise/traffic-board/internal/assemble"
	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// Format names accepted in configuration.
const (
	FormatCSV      = "csv"
	FormatBinary   = "binary"
	FormatAddendum = "addendum"
)

// ErrUnknownFormat is returned by ForFormat for an unregistered name.
var ErrUnknownFormat = errors.New("unknown artifact format")

// Encoder renders records, sorted ascending by index, into artifact bytes.
type Encoder interface {
	Encode(records []model.OutputRecord) ([]byte, error)
}

// ForFormat returns the encoder registered under name. The addendum format
// needs a superseded-artifact reference and is built with NewAddendum
// instead.
func ForFormat(name string) (Encoder, error) {
	switch strings.ToLower(name) {
	case FormatCSV:
		return CSV{}, nil
	case FormatBinary:
		return Binary{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (valid: %s, %s)", ErrUnknownFormat, name, FormatCSV, FormatBinary)
	}
}

// CSV renders "index,speed" rows with CRLF line endings. Unknown is -1 and
// excluded is -2.
type CSV struct{}

// Encode implements Encoder.
func (CSV) Encode(records []model.OutputRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRows(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(buf *bytes.Buffer, records []model.OutputRecord) error {
	w := csv.NewWriter(buf)
	w.UseCRLF = true
	for _, r := range records {
		if err := w.Write([]string{strconv.Itoa(r.Index), strconv.Itoa(r.Outcome.TextValue())}); err != nil {
			return fmt.Errorf("failed to write row for index %d: %w", r.Index, err)
		}
	}
	w.Flush()
	return w.Error()
}

// Binary renders one unsigned byte per index from 0 to the largest index.
// Byte 0 is always 0; indices without a record, unknown and excluded
// outcomes are 0; speeds are clamped to 255.
type Binary struct{}

// Encode implements Encoder.
func (Binary) Encode(records []model.OutputRecord) ([]byte, error) {
	out := make([]byte, assemble.MaxIndex(records)+1)
	for _, r := range records {
		if r.Index < 1 {
			return nil, fmt.Errorf("binary artifact cannot hold index %d", r.Index)
		}
		out[r.Index] = r.Outcome.ByteValue()
	}
	return out, nil
}

// Addendum renders a patch to a previously published artifact: a
// "{<supersedes>}" metadata line and a blank line, followed by CSV rows for
// the patched indices only.
type Addendum struct {
	// Supersedes is the URL or path of the artifact being patched.
	Supersedes string
}

// NewAddendum returns an addendum encoder referencing supersedes.
func NewAddendum(supersedes string) Addendum {
	return Addendum{Supersedes: supersedes}
}

// Encode implements Encoder.
func (a Addendum) Encode(records []model.OutputRecord) ([]byte, error) {
	if strings.ContainsAny(a.Supersedes, "{}\r\n") {
		return nil, fmt.Errorf("addendum reference %q contains reserved characters", a.Supersedes)
	}

	var buf bytes.Buffer
	buf.WriteString("{" + a.Supersedes + "}\n\n")
	if err := writeRows(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
