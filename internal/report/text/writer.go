package text

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/model"
	"FlowTagger/internal/report"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

func init() {
	factory.RegisterWriter(config.WriterText, func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
		if def.Text.Path == "" {
			return nil, fmt.Errorf("text writer requires a path")
		}
		return NewWriter(def.Text.Path, log), nil
	})
}

// Writer renders the report as plain text and writes it to a file, replacing any previous content.
type Writer struct {
	path string
	log  logrus.FieldLogger
}

// NewWriter creates a text writer for path.
func NewWriter(path string, log logrus.FieldLogger) *Writer {
	return &Writer{path: path, log: log}
}

func (w *Writer) Name() string {
	return "text:" + w.path
}

// Write creates missing parent directories, then truncates and writes the report file.
func (w *Writer) Write(ctx context.Context, r *model.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	w.log.WithField("path", w.path).Info("Writing results")

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create report file '%s': %w", w.path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(report.Format(r.Counts)); err != nil {
		return fmt.Errorf("failed to write report to '%s': %w", w.path, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync report file '%s': %w", w.path, err)
	}

	w.log.WithField("path", w.path).Info("Results written successfully")
	return nil
}

func (w *Writer) Close() error {
	return nil
}
