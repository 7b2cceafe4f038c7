// embedflow bench entry point: loads configuration, builds the pipeline
// against a deterministic local backend, runs a calibration pass followed by
// an embed pass, and prints the combined stats report.
//
// Usage:
//
//	embedflow -config embedflow.yaml -docs 500
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/embedflow"
	"github.com/BaSui01/embedflow/backend"
	"github.com/BaSui01/embedflow/config"
	"github.com/BaSui01/embedflow/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	docs := flag.Int("docs", 200, "number of documents to embed")
	dims := flag.Int("dims", 768, "embedding dimensions of the local backend")
	flag.Parse()

	if err := run(*configPath, *docs, *dims); err != nil {
		fmt.Fprintf(os.Stderr, "embedflow: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, docs, dims int) error {
	cfg, err := config.NewLoader().
		WithConfigPath(configPath).
		WithEnvPrefix("EMBEDFLOW").
		Load()
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	provider := backend.NewFake(dims,
		backend.WithLatency(5*time.Millisecond),
		backend.WithPerItemLatency(100*time.Microsecond),
	)

	registry := prometheus.NewRegistry()
	pipeline, err := embedflow.New(provider,
		embedflow.WithConfig(cfg),
		embedflow.WithLogger(logger),
		embedflow.WithPrometheus(registry),
	)
	if err != nil {
		return err
	}
	defer pipeline.Close() //nolint:errcheck

	pipeline.Monitor().AddRule(&metrics.AlertRule{
		Name:      "backend_errors",
		Threshold: 0,
		Above:     true,
		Cooldown:  time.Minute,
		Value: func(s metrics.Snapshot) float64 {
			var errs int64
			for _, bm := range s.Backends {
				errs += bm.Errors
			}
			return float64(errs)
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	texts := make([]string, docs)
	for i := range texts {
		texts[i] = fmt.Sprintf("document %d: the quick brown fox jumps over the lazy dog", i)
	}

	size := pipeline.Calibrate(ctx, texts[:min(len(texts), 16)])
	logger.Info("calibrated", zap.Int("batch_size", size))

	start := time.Now()
	if _, err := pipeline.EmbedDocuments(ctx, texts); err != nil {
		return err
	}
	cold := time.Since(start)

	// Second pass should be served almost entirely from cache.
	start = time.Now()
	if _, err := pipeline.EmbedDocuments(ctx, texts); err != nil {
		return err
	}
	warm := time.Since(start)

	logger.Info("embed passes complete",
		zap.Int("docs", docs),
		zap.Duration("cold", cold),
		zap.Duration("warm", warm),
	)

	report, err := json.MarshalIndent(pipeline.Stats(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(report))
	return nil
}
