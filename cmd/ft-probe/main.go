package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/flowlog"
	"FlowTagger/internal/logger"
	"FlowTagger/pkg/pcap"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	// --- Command-Line Flag Parsing ---
	pcapPath := flag.String("pcap", "", "Capture file to convert (required)")
	outputPath := flag.String("o", "flow_logs.txt", "Flow log file to write")
	accountID := flag.String("account", "", "Account id written into every record")
	interfaceID := flag.String("eni", "", "Interface id written into every record")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if *pcapPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: ft-probe -pcap <capture.pcap> [-o flow_logs.txt]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log, err := logger.New(config.LogConfig{Level: *logLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	reader, err := pcap.NewReader(*pcapPath, log)
	if err != nil {
		log.Fatalf("Failed to open pcap file: %v", err)
	}
	defer reader.Close()
	reader.AccountID = *accountID
	reader.InterfaceID = *interfaceID
	log.WithField("path", *pcapPath).Info("Reading packets")

	records, err := reader.ReadRecords()
	if err != nil {
		log.Fatalf("Failed to read packets: %v", err)
	}

	out, err := os.Create(*outputPath)
	if err != nil {
		log.Fatalf("Failed to create flow log file: %v", err)
	}
	if err := flowlog.WriteRecords(out, records); err != nil {
		out.Close()
		log.Fatalf("Failed to write flow log: %v", err)
	}
	if err := out.Close(); err != nil {
		log.Fatalf("Failed to close flow log: %v", err)
	}
	log.WithFields(logrus.Fields{"path": *outputPath, "records": len(records)}).Info("Flow log written")
}
