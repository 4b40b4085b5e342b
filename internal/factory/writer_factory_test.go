package factory

import (
	"context"
	"errors"
	"testing"

	"FlowTagger/internal/config"
	"FlowTagger/internal/logger"
	"FlowTagger/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	name   string
	closed bool
}

func (w *stubWriter) Name() string { return w.name }
func (w *stubWriter) Write(ctx context.Context, r *model.Report) error { return nil }
func (w *stubWriter) Close() error { w.closed = true; return nil }

// withRegistry swaps the package registry for the duration of a test.
func withRegistry(t *testing.T, r map[string]WriterFactory) {
	t.Helper()
	saved := registry
	registry = r
	t.Cleanup(func() { registry = saved })
}

func TestCreate_SkipsDisabledAndFailing(t *testing.T) {
	withRegistry(t, map[string]WriterFactory{
		config.WriterText: func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
			return &stubWriter{name: def.Text.Path}, nil
		},
		config.WriterNATS: func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
			return nil, errors.New("no server")
		},
	})

	cfg := config.Default()
	cfg.Report.Writers = []config.WriterDef{
		{Type: config.WriterText, Enabled: true, Text: config.TextConfig{Path: "a.txt"}},
		{Type: config.WriterText, Enabled: false, Text: config.TextConfig{Path: "b.txt"}},
		{Type: config.WriterNATS, Enabled: true},
		{Type: "carrier-pigeon", Enabled: true},
	}

	writers, err := Create(cfg, logger.Discard())
	require.NoError(t, err)
	require.Len(t, writers, 1)
	assert.Equal(t, "a.txt", writers[0].Name())
}

func TestCreate_TextFailureIsFatal(t *testing.T) {
	created := &stubWriter{name: "first"}
	withRegistry(t, map[string]WriterFactory{
		config.WriterNATS: func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
			return created, nil
		},
		config.WriterText: func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
			return nil, errors.New("read-only filesystem")
		},
	})

	cfg := config.Default()
	cfg.Report.Writers = []config.WriterDef{
		{Type: config.WriterNATS, Enabled: true},
		{Type: config.WriterText, Enabled: true},
	}

	_, err := Create(cfg, logger.Discard())
	assert.ErrorContains(t, err, "read-only filesystem")
	assert.True(t, created.closed)
}

func TestRegisterWriter_Duplicate(t *testing.T) {
	withRegistry(t, map[string]WriterFactory{})
	noop := func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error) {
		return &stubWriter{}, nil
	}

	RegisterWriter("x", noop)
	assert.Panics(t, func() { RegisterWriter("x", noop) })
	assert.Equal(t, []string{"x"}, Registered())
}
