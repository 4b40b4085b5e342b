package factory

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/model"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// WriterFactory creates a writer from its definition. The full config is passed for shared sections.
type WriterFactory func(def config.WriterDef, cfg *config.Config, log logrus.FieldLogger) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Registered returns the registered writer types in sorted order.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds every enabled writer in the config.
// A text writer that cannot be created is fatal; any other failing writer is skipped with a warning.
func Create(cfg *config.Config, log logrus.FieldLogger) ([]model.Writer, error) {
	var writers []model.Writer

	for _, def := range cfg.Report.Writers {
		if !def.Enabled {
			continue
		}
		log.WithField("type", def.Type).Info("Creating report writer")

		factory, ok := registry[def.Type]
		if !ok {
			if def.Type == config.WriterText {
				closeAll(writers)
				return nil, fmt.Errorf("writer type '%s' is not registered", def.Type)
			}
			log.WithField("type", def.Type).Warn("Unknown writer type in config, skipping")
			continue
		}

		writer, err := factory(def, cfg, log)
		if err != nil {
			if def.Type == config.WriterText {
				closeAll(writers)
				return nil, fmt.Errorf("error creating writer type '%s': %w", def.Type, err)
			}
			log.WithError(err).WithField("type", def.Type).Warn("Failed to create writer, skipping")
			continue
		}
		writers = append(writers, writer)
	}

	return writers, nil
}

func closeAll(writers []model.Writer) {
	for _, w := range writers {
		w.Close()
	}
}
