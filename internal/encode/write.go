package encode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"

	"github.com/mmr-tortoise/traffic-board/internal/model"
)

// artifactPerm is the mode of written artifacts. They are served by a
// web server, so they are world-readable.
const artifactPerm = 0o644

// WriteArtifact encodes records and atomically replaces path with the
// result. If encoding fails the existing file at path is left untouched.
// Missing parent directories are created.
func WriteArtifact(path string, enc Encoder, records []model.OutputRecord) error {
	data, err := enc.Encode(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return WriteFile(path, data)
}

// WriteFile atomically replaces path with data. Readers see either the old
// content or the new content, never a partial write.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := atomicwriter.WriteFile(path, data, artifactPerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
