package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/logger"
	"FlowTagger/internal/metrics"
	"FlowTagger/internal/model"
	"FlowTagger/internal/probe"
	"FlowTagger/internal/query"
	"FlowTagger/internal/snapshot"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	m := metrics.New()
	apiHandler := &APIHandler{}

	// History comes from the first enabled ClickHouse writer, if any
	if chCfg, ok := cfg.ClickHouse(); ok {
		querier, err := query.NewClickHouseQuerier(*chCfg)
		if err != nil {
			log.Fatalf("Failed to create querier: %v", err)
		}
		apiHandler.querier = querier
	} else {
		log.Warn("No enabled ClickHouse writer found in config, history endpoints are disabled")
	}

	// Seed the latest report from disk until the first one arrives on NATS
	if snapCfg, ok := cfg.Snapshot(); ok {
		r, err := snapshot.LoadLatest(snapCfg.RootPath)
		if err != nil {
			log.Warnf("Failed to load latest snapshot: %v", err)
		} else if r != nil {
			apiHandler.SetLatest(r)
			m.ObserveReport(r)
			log.WithField("timestamp", r.Timestamp).Info("Loaded latest snapshot")
		}
	}

	// The latest report arrives on NATS
	sub, err := probe.NewSubscriber(cfg.Probe, log)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()
	err = sub.Start(func(r *model.Report) {
		apiHandler.SetLatest(r)
		m.ObserveReport(r)
		log.WithField("timestamp", r.Timestamp).Info("Received report")
	})
	if err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: apiHandler.Router(m.Registry),
	}

	go func() {
		log.Infof("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", server.Addr, err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Info("API server exited.")
}
