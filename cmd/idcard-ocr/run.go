package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/idcard-ocr/internal/cli"
	"github.com/fpang/idcard-ocr/internal/config"
	"github.com/fpang/idcard-ocr/internal/dispatch"
	"github.com/fpang/idcard-ocr/internal/filehandler"
	"github.com/fpang/idcard-ocr/internal/idcard"
	"github.com/fpang/idcard-ocr/internal/logging"
	"github.com/fpang/idcard-ocr/internal/metrics"
	"github.com/fpang/idcard-ocr/internal/ratelimit"
	"github.com/fpang/idcard-ocr/internal/report"
)

// runBatch scans inputDir, recognizes every image and writes the reports.
// It returns nil statistics when there is nothing to process.
func runBatch(ctx context.Context, cfg *config.Config, caller dispatch.Caller, inputDir, runID string) (*idcard.RunStatistics, error) {
	depth := 1
	if cfg.Recursive {
		depth = 0
	}
	items, err := filehandler.ScanDirectoryWithOptions(inputDir, filehandler.ScanOptions{
		MaxDepth:     depth,
		Limit:        cfg.Limit,
		ReadMetadata: cfg.ReadEXIF,
	})
	if err != nil {
		return nil, fmt.Errorf("scan input directory: %w", err)
	}
	if len(items) == 0 {
		log.Warn().Str("path", inputDir).Msg("No card images found")
		return nil, nil
	}

	metricsFile, err := metrics.OpenFile(cfg.MetricsPath())
	if err != nil {
		return nil, err
	}
	defer metricsFile.Close()

	observers := dispatch.Observers{metrics.NewCallObserver(metrics.NewSink(metricsFile), runID)}
	if !noProgressFlag {
		observers = append(observers, cli.NewProgressObserver(os.Stderr))
	}

	d := dispatch.New(ratelimit.New(cfg.RateLimit), caller, observers)
	start := time.Now()
	stats, err := d.Run(ctx, items, cfg.MaxConcurrent)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	log.Info().
		Int("calls", stats.TotalCalls).
		Str("elapsed", cli.FormatDurationShort(elapsed)).
		Str("throughput", cli.FormatThroughput(stats.TotalCalls, elapsed)).
		Msg("Batch complete")

	info := report.RunInfo{
		RunID:       runID,
		Generated:   time.Now(),
		Elapsed:     elapsed,
		CSVPath:     cfg.OutputCSV,
		LogPath:     filepath.Join(cfg.LogsDir(), logging.LogFileName),
		SummaryPath: cfg.SummaryPath,
	}
	if err := writeReports(os.Stdout, cfg, stats, info); err != nil {
		return nil, err
	}
	return stats, nil
}

// writeReports writes the CSV, the summary and (when enabled) the archive,
// then prints the console summary to w.
func writeReports(w io.Writer, cfg *config.Config, stats *idcard.RunStatistics, info report.RunInfo) error {
	if err := report.WriteCSVFile(info.CSVPath, stats); err != nil {
		return err
	}
	if cfg.Archive {
		info.ArchivePath = filepath.Join(cfg.ResultsDir(), "run-"+info.RunID+".zip")
	}
	if err := report.WriteSummaryFile(stats, info); err != nil {
		return err
	}
	if cfg.Archive {
		if _, err := report.WriteArchive(cfg.ResultsDir(), stats, info, info.CSVPath, info.SummaryPath); err != nil {
			return err
		}
	}
	report.PrintConsoleSummary(w, stats, info)
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
