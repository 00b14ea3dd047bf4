package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/idcard-ocr/internal/cli"
	"github.com/fpang/idcard-ocr/internal/config"
	"github.com/fpang/idcard-ocr/internal/logging"
	"github.com/fpang/idcard-ocr/internal/report"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// CLI flags
var (
	envFileFlag    string
	logLevelFlag   string
	noProgressFlag bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "idcard-ocr",
	Short: "Batch ID card recognition with rate limiting and failure accounting",
	Long: `idcard-ocr scans a directory of ID card images named <person>_front.<ext> and
<person>_back.<ext>, submits every image to the ID card OCR service under a
requests-per-second ceiling, and writes a CSV of extracted fields, a bilingual
processing summary and a compressed run archive.

Credentials are read from TENCENTCLOUD_SECRET_ID and TENCENTCLOUD_SECRET_KEY,
either in the environment or in a .env file. Every setting can also be given
as an environment variable (INPUT_DIR, RATE_LIMIT, MAX_CONCURRENT_REQUESTS, ...).

Examples:
  idcard-ocr --input-dir ./outputs
  idcard-ocr -i ./scans --rate-limit 10 --max-concurrent 5
  idcard-ocr -i ./scans --recursive --limit 100 --no-archive
  idcard-ocr audit --pdf-dir ./pdfs --image-dir ./outputs`,
	Run: runMain,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", "", "Path to a .env file (default: ./.env if present)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, error")

	flags := rootCmd.Flags()
	flags.StringP("input-dir", "i", config.DefaultInputDir, "Directory containing card images")
	flags.String("archive-dir", config.DefaultArchiveDir, "Directory for results, logs and run archives")
	flags.String("output-csv", "", "CSV output path (default: <archive-dir>/results/"+config.CSVFileName+")")
	flags.String("summary", "", "Summary output path (default: <archive-dir>/results/"+config.SummaryFileName+")")
	flags.String("region", "", "Cloud region sent with each request")
	flags.String("endpoint", "https://ocr.tencentcloudapi.com", "OCR service endpoint")
	flags.Int("rate-limit", 20, "Maximum requests per second")
	flags.Int("max-concurrent", 10, "Number of concurrent workers")
	flags.Duration("timeout", 30*time.Second, "Timeout for a single HTTP attempt")
	flags.Int("max-retries", 3, "Total attempts for a transient failure")
	flags.Bool("recursive", false, "Scan subdirectories of the input directory")
	flags.Int("limit", 0, "Maximum images to process (0 = unlimited)")
	flags.Bool("no-exif", false, "Skip reading EXIF metadata from images")
	flags.Bool("no-archive", false, "Do not write the compressed run archive")
	flags.BoolVar(&noProgressFlag, "no-progress", false, "Disable the progress bar")

	rootCmd.AddCommand(auditCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init(logLevelFlag)
	loadStart := time.Now()

	cfg, err := config.Load(envFileFlag, cmd.Flags())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directories")
	}

	logFile, err := logging.OpenLogFile(cfg.LogsDir())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open log file")
	}
	defer logFile.Close()
	logging.Init(cfg.LogLevel, logFile)

	inputDir := cli.ValidateAndResolveDirectory(cfg.InputDir)
	client := cli.InitOCRClient(cfg)
	runID := report.NewRunID()

	logging.NewStartupLogger("idcard-ocr").
		Version(version).
		RunID(runID).
		Path("input", inputDir).
		Path("csv", cfg.OutputCSV).
		Path("summary", cfg.SummaryPath).
		Path("logs", cfg.LogsDir()).
		Feature("recursive", cfg.Recursive).
		Feature("exif", cfg.ReadEXIF).
		Feature("archive", cfg.Archive).
		Config("endpoint", cfg.Endpoint).
		Config("region", cfg.Region).
		Config("rateLimit", itoa(cfg.RateLimit)).
		Config("maxConcurrent", itoa(cfg.MaxConcurrent)).
		Config("maxRetries", itoa(cfg.MaxRetries)).
		Config("timeout", cfg.Timeout.String()).
		Config("maxPayloadBytes", itoa(cfg.MaxPayloadBytes())).
		LoadDuration(time.Since(loadStart)).
		Log()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := runBatch(ctx, cfg, client, inputDir, runID)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch failed")
	}
	if stats == nil {
		return
	}
	if ctx.Err() != nil {
		log.Warn().Msg("Run interrupted; unprocessed images were recorded as cancelled")
	}
	if stats.BothFailed > 0 {
		log.Warn().Int("failed_subjects", stats.BothFailed).Msg("Some subjects failed on both sides")
		logFile.Close()
		os.Exit(1)
	}
}
