package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"voiceprint-server/pkg/audio"
	"voiceprint-server/pkg/biometric"
	"voiceprint-server/pkg/config"
	"voiceprint-server/pkg/database"
	"voiceprint-server/pkg/metrics"
	"voiceprint-server/pkg/pipeline"
)

var logger = logrus.New()

func main() {
	analyzeFile := flag.String("analyze", "", "Analyze the vocal characteristics of a WAV file")
	category := flag.String("category", "spoken", "Audio category: spoken or sung")
	enrollName := flag.String("enroll", "", "Enroll a speaker under this name")
	enrollFiles := flag.String("files", "", "Comma-separated WAV files for enrollment")
	method := flag.String("method", "mean", "Centroid aggregation method: mean or median")
	verifyFile := flag.String("verify", "", "Verify a WAV file against enrolled signatures")
	signatureID := flag.String("signature", "", "Restrict verification to one signature ID")
	listFlag := flag.Bool("list", false, "List enrolled signatures")
	deleteID := flag.String("delete", "", "Delete a signature by ID")
	flag.Parse()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	cfg.SetupLogger(logger)

	metrics.Init(logger)
	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Address)
	}

	repo, err := openRepository(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open signature store")
	}
	defer repo.Close()

	p := pipeline.New(cfg, repo, nil, logger)
	defer p.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cat := audio.Category(*category)
	if cat != audio.CategorySpoken && cat != audio.CategorySung {
		logger.WithField("category", *category).Fatal("Unknown audio category")
	}

	switch {
	case *analyzeFile != "":
		err = runAnalyze(ctx, p, *analyzeFile, cat)
	case *enrollName != "":
		err = runEnroll(ctx, p, *enrollName, *enrollFiles, cat, *method)
	case *verifyFile != "":
		err = runVerify(ctx, p, *verifyFile, *signatureID)
	case *listFlag:
		err = runList(p)
	case *deleteID != "":
		err = runDelete(p, *deleteID)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.WithError(err).Fatal("Command failed")
	}
}

func openRepository(cfg *config.Config) (database.SignatureRepository, error) {
	if cfg.Database.Path == "" {
		logger.Info("No database path configured, using in-memory signature store")
		return database.NewMemoryRepository(), nil
	}
	return database.NewSQLiteRepository(cfg.Database.Path, logger)
}

func runAnalyze(ctx context.Context, p *pipeline.Pipeline, path string, category audio.Category) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	result, err := p.Analyze(ctx, raw, category)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runEnroll(ctx context.Context, p *pipeline.Pipeline, name, files string, category audio.Category, method string) error {
	paths := splitFiles(files)
	if len(paths) == 0 {
		return fmt.Errorf("enrollment requires -files with at least one WAV path")
	}

	samples := make([][]byte, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		samples = append(samples, raw)
	}

	aggregation := biometric.AggregateMean
	if method == "median" {
		aggregation = biometric.AggregateMedian
	}

	signature, err := p.Enroll(ctx, name, samples, category, aggregation)
	if err != nil {
		return err
	}
	return printJSON(signature)
}

func runVerify(ctx context.Context, p *pipeline.Pipeline, path, signatureID string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	result, err := p.Verify(ctx, raw, signatureID)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runList(p *pipeline.Pipeline) error {
	signatures, err := p.ListSignatures()
	if err != nil {
		return err
	}
	return printJSON(signatures)
}

func runDelete(p *pipeline.Pipeline, id string) error {
	if err := p.DeleteSignature(id); err != nil {
		return err
	}
	logger.WithField("signature_id", id).Info("Signature deleted")
	return nil
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.WithField("address", address).Info("Serving Prometheus metrics")
	if err := http.ListenAndServe(address, mux); err != nil {
		logger.WithError(err).Error("Metrics server stopped")
	}
}

func splitFiles(csv string) []string {
	var paths []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			paths = append(paths, part)
		}
	}
	return paths
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
