// Command journalchd tails a stream of systemd Journal Export Format
// entries on stdin and ships them to a ClickHouse-style HTTP sink.
package main

import (
	"context"
	"fmt"
	"os"

	"journalchd/internal/chsink"
	"journalchd/internal/config"
	"journalchd/internal/ingest"
	"journalchd/internal/logger"
	"journalchd/internal/metrics"
	"journalchd/internal/signalbridge"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "journalchd: %v\n", err)
		return 1
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "journalchd: %v\n", err)
		return 1
	}
	logger.Init(level, os.Stderr)

	sink, err := chsink.New(chsink.Config{
		URI:         cfg.SinkURI,
		Table:       cfg.Table,
		MaxEntries:  cfg.MaxEntries,
		Period:      cfg.Period,
		Compression: cfg.Compression,
	})
	if err != nil {
		logger.Error("failed to build sink: %v", err)
		return 1
	}

	observer := metrics.New()
	pipeline := ingest.New(sink, observer, cfg.BinaryMode)

	shutdown, stop := signalbridge.Shutdown()
	defer stop()

	logger.Info("journalchd starting: table=%s maxEntries=%d period=%s binaryMode=%s",
		cfg.Table, cfg.MaxEntries, cfg.Period, cfg.BinaryModeName)

	runErr := pipeline.Run(context.Background(), os.Stdin, shutdown)

	logger.Debug("final metrics: %v", observer.Snapshot())

	if runErr != nil {
		logger.Error("journalchd stopped: %v", runErr)
		return 2
	}
	logger.Info("journalchd shut down cleanly")
	return 0
}
