package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/clinicops/crm-analytics/internal/config"
	"github.com/clinicops/crm-analytics/internal/crm"
	obsmetrics "github.com/clinicops/crm-analytics/internal/observability/metrics"
	"github.com/clinicops/crm-analytics/pkg/logging"
)

func main() {
	granularity := flag.String("granularity", "", "reporting granularity: day, month or custom (default day)")
	date := flag.String("date", "", "reference civil date YYYY-MM-DD for day/month (default today)")
	startDate := flag.String("start", "", "custom range start date YYYY-MM-DD")
	endDate := flag.String("end", "", "custom range end date YYYY-MM-DD")
	input := flag.String("input", "-", "dataset JSON file, or - for stdin")
	pretty := flag.Bool("pretty", false, "indent the payload output")
	flag.Parse()

	// .env is optional outside development.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.NewText(os.Stderr, cfg.LogLevel)
	runID := uuid.NewString()

	engine, err := crm.FromConfig(cfg, obsmetrics.NewEngineMetrics(nil))
	if err != nil {
		logger.Error("engine configuration invalid", "run_id", runID, "error", err)
		os.Exit(1)
	}

	rng, err := engine.ResolveRange(crm.RangeParams{
		Granularity: *granularity,
		Date:        *date,
		StartDate:   *startDate,
		EndDate:     *endDate,
	})
	if err != nil {
		logger.Error("resolve range failed", "run_id", runID, "error", err)
		os.Exit(1)
	}

	dataset, stats, err := readDataset(*input)
	if err != nil {
		logger.Error("read dataset failed", "run_id", runID, "error", err)
		os.Exit(1)
	}
	if stats.Total() > 0 {
		logger.Warn("dataset rows skipped at ingestion",
			"run_id", runID,
			"chats", stats.ChatsSkipped,
			"appointments", stats.AppointmentsSkipped,
			"historical", stats.HistoricalSkipped,
			"medical_records", stats.MedicalRecordsSkipped,
			"messages", stats.MessagesSkipped,
		)
	}

	started := time.Now()
	payload, err := engine.BuildMetricsPayload(rng, dataset)
	if err != nil {
		logger.Error("build payload failed", "run_id", runID, "error", err)
		os.Exit(1)
	}
	logger.Info("payload built",
		"run_id", runID,
		"granularity", payload.Period.Granularity,
		"period_start", payload.Period.Start,
		"period_end", payload.Period.End,
		"total_chats", payload.TotalChats,
		"duration", time.Since(started).String(),
	)

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(payload); err != nil {
		logger.Error("encode payload failed", "run_id", runID, "error", err)
		os.Exit(1)
	}
}

func readDataset(path string) (*crm.Dataset, crm.DecodeStats, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, crm.DecodeStats{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	return crm.DecodeDataset(r)
}
