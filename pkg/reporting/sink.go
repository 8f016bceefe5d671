package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Sink delivers a finished artifact to its consumer.
type Sink interface {
	Deliver(ctx context.Context, artifact *Artifact) error
}

// FileSink writes artifacts into a directory, the command-line stand-in for a
// browser download.
type FileSink struct {
	Dir string
}

// filenameReplacer mirrors what browsers do with separators in download names.
var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_", "\x00", "")

// Path returns where artifact would be written.
func (s FileSink) Path(artifact *Artifact) string {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filenameReplacer.Replace(artifact.Filename))
}

// Deliver writes the artifact, replacing any previous file of the same name.
func (s FileSink) Deliver(ctx context.Context, artifact *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return fmt.Errorf("create output directory %s: %w", s.Dir, err)
		}
	}
	path := s.Path(artifact)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("bytes", len(artifact.Data)).Msg("Export written")
	return nil
}
