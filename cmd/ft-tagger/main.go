package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/manager"
	"FlowTagger/internal/factory"
	"FlowTagger/internal/logger"
	"FlowTagger/internal/lookup"
	"FlowTagger/internal/metrics"
	_ "FlowTagger/internal/alerter"     // Registers the alert writer
	_ "FlowTagger/internal/probe"       // Registers the nats writer
	_ "FlowTagger/internal/report/text" // Registers the text writer
	_ "FlowTagger/internal/snapshot"    // Registers the snapshot writer
	_ "FlowTagger/internal/storage"     // Registers the clickhouse writer
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (optional)")
	lookupPath := flag.String("lookup", "", "Lookup table CSV (overrides input.lookup_path)")
	flowLogPath := flag.String("flowlogs", "", "Flow log file (overrides input.flow_log_path)")
	outputPath := flag.String("output", "", "Report file (overrides the text writer path)")
	workers := flag.Int("workers", -1, "Number of classification workers (overrides engine.num_workers)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	flag.Parse()

	// 1. Load configuration
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	applyOverrides(cfg, *lookupPath, *flowLogPath, *outputPath, *workers, *logLevel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Error(err)
		os.Exit(1)
	}
	log.Info("Parsing completed.")
}

// run executes one batch. Writers are closed before it returns, on success and on failure.
func run(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) error {
	// 2. Build the lookup table before any flow log line is read
	table, err := lookup.LoadFile(cfg.Input.LookupPath, log)
	if err != nil {
		return fmt.Errorf("failed to load lookup table: %w", err)
	}
	m := metrics.New()
	m.LookupEntries.Set(float64(table.Len()))

	// 3. Create writers
	writers, err := factory.Create(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create writers: %w", err)
	}
	defer func() {
		for _, w := range writers {
			if err := w.Close(); err != nil {
				log.WithError(err).WithField("writer", w.Name()).Warn("Error closing writer")
			}
		}
	}()

	// 4. Classify and aggregate
	flowLog, err := os.Open(cfg.Input.FlowLogPath)
	if err != nil {
		return fmt.Errorf("failed to open flow log: %w", err)
	}
	defer flowLog.Close()
	log.WithField("path", cfg.Input.FlowLogPath).Info("Reading flow logs")

	mgr := manager.NewManager(cfg, table, log, m)
	report, err := mgr.Process(ctx, flowLog)
	if err != nil {
		return fmt.Errorf("failed to process flow logs: %w", err)
	}

	// 5. Hand the report to every writer
	publishErr := mgr.Publish(ctx, report, writers)

	if cfg.Metrics.TextfilePath != "" {
		if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	if publishErr != nil {
		return fmt.Errorf("failed to publish report: %w", publishErr)
	}
	return nil
}

// applyOverrides copies non-empty flag values over the loaded config.
func applyOverrides(cfg *config.Config, lookupPath, flowLogPath, outputPath string, workers int, logLevel string) {
	if lookupPath != "" {
		cfg.Input.LookupPath = lookupPath
	}
	if flowLogPath != "" {
		cfg.Input.FlowLogPath = flowLogPath
	}
	if workers >= 0 {
		cfg.Engine.NumWorkers = workers
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if outputPath != "" {
		if def, ok := cfg.TextWriter(); ok {
			def.Text.Path = outputPath
		} else {
			cfg.Report.Writers = append(cfg.Report.Writers, config.WriterDef{
				Type:    config.WriterText,
				Enabled: true,
				Text:    config.TextConfig{Path: outputPath},
			})
		}
	}
}
