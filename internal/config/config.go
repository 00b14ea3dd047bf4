// Package config loads run configuration from a .env file, the environment and
// command-line flags. Precedence (lowest to highest): defaults, .env, process
// environment, flags that were explicitly set.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Keys double as environment variable names (upper-cased).
const (
	KeyInputDir       = "input_dir"
	KeyArchiveDir     = "archive_dir"
	KeyOutputCSV      = "output_csv"
	KeySummary        = "summary_file"
	KeyRegion         = "tencentcloud_region"
	KeyEndpoint       = "ocr_endpoint"
	KeyRateLimit      = "rate_limit"
	KeyMaxConcurrent  = "max_concurrent_requests"
	KeyAPITimeout     = "api_timeout"
	KeyMaxRetries     = "max_retries"
	KeyRetryBaseDelay = "retry_base_delay"
	KeyMaxImageSizeMB = "max_image_size_mb"
	KeyLogLevel       = "log_level"
	KeyRecursive      = "scan_recursive"
	KeyLimit          = "scan_limit"
	KeyReadEXIF       = "read_exif"
	KeyArchive        = "write_archive"
	KeyCropIDCard     = "crop_id_card"
	KeyCropPortrait   = "crop_portrait"
)

// Default file and directory names.
const (
	DefaultInputDir   = "outputs"
	DefaultArchiveDir = ".archive"
	ResultsSubdir     = "results"
	LogsSubdir        = "logs"
	TempSubdir        = "temp_files"
	CSVFileName       = "id_card_results.csv"
	SummaryFileName   = "processing_summary.txt"
	MetricsFileName   = "metrics.jsonl"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"input-dir":      KeyInputDir,
	"archive-dir":    KeyArchiveDir,
	"output-csv":     KeyOutputCSV,
	"summary":        KeySummary,
	"region":         KeyRegion,
	"endpoint":       KeyEndpoint,
	"rate-limit":     KeyRateLimit,
	"max-concurrent": KeyMaxConcurrent,
	"timeout":        KeyAPITimeout,
	"max-retries":    KeyMaxRetries,
	"log-level":      KeyLogLevel,
	"recursive":      KeyRecursive,
	"limit":          KeyLimit,
}

// DefaultEnvFile is read when no env file is named. It may be absent.
const DefaultEnvFile = ".env"

// Config is the resolved configuration for one batch run.
type Config struct {
	InputDir   string
	ArchiveDir string

	// OutputCSV and SummaryPath default to files inside ResultsDir.
	OutputCSV   string
	SummaryPath string

	Region   string
	Endpoint string

	RateLimit      int
	MaxConcurrent  int
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	MaxImageSizeMB float64

	LogLevel string

	Recursive bool
	Limit     int
	ReadEXIF  bool
	Archive   bool

	CropIDCard   bool
	CropPortrait bool
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyInputDir, DefaultInputDir)
	v.SetDefault(KeyArchiveDir, DefaultArchiveDir)
	v.SetDefault(KeyOutputCSV, "")
	v.SetDefault(KeySummary, "")
	v.SetDefault(KeyRegion, "")
	v.SetDefault(KeyEndpoint, "https://ocr.tencentcloudapi.com")
	v.SetDefault(KeyRateLimit, 20)
	v.SetDefault(KeyMaxConcurrent, 10)
	v.SetDefault(KeyAPITimeout, "30s")
	v.SetDefault(KeyMaxRetries, 3)
	v.SetDefault(KeyRetryBaseDelay, "1s")
	v.SetDefault(KeyMaxImageSizeMB, 10)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyRecursive, false)
	v.SetDefault(KeyLimit, 0)
	v.SetDefault(KeyReadEXIF, true)
	v.SetDefault(KeyArchive, true)
	v.SetDefault(KeyCropIDCard, false)
	v.SetDefault(KeyCropPortrait, false)
}

// Load reads envFile (DefaultEnvFile when empty), then resolves every key from
// the environment and the given flags. Variables already in the environment
// are never overridden by the file. A missing DefaultEnvFile is ignored; a
// missing explicitly named file is an error.
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
		log.Debug().Str("path", envFile).Msg("No .env file found")
	} else {
		log.Debug().Str("path", envFile).Msg("Loaded .env file")
	}

	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)
	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	timeout, err := durationValue(v, KeyAPITimeout)
	if err != nil {
		return nil, err
	}
	baseDelay, err := durationValue(v, KeyRetryBaseDelay)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputDir:       v.GetString(KeyInputDir),
		ArchiveDir:     v.GetString(KeyArchiveDir),
		OutputCSV:      v.GetString(KeyOutputCSV),
		SummaryPath:    v.GetString(KeySummary),
		Region:         v.GetString(KeyRegion),
		Endpoint:       v.GetString(KeyEndpoint),
		RateLimit:      v.GetInt(KeyRateLimit),
		MaxConcurrent:  v.GetInt(KeyMaxConcurrent),
		Timeout:        timeout,
		MaxRetries:     v.GetInt(KeyMaxRetries),
		RetryBaseDelay: baseDelay,
		MaxImageSizeMB: v.GetFloat64(KeyMaxImageSizeMB),
		LogLevel:       v.GetString(KeyLogLevel),
		Recursive:      v.GetBool(KeyRecursive),
		Limit:          v.GetInt(KeyLimit),
		ReadEXIF:       v.GetBool(KeyReadEXIF),
		Archive:        v.GetBool(KeyArchive),
		CropIDCard:     v.GetBool(KeyCropIDCard),
		CropPortrait:   v.GetBool(KeyCropPortrait),
	}
	if flagSet(flags, "no-exif") {
		cfg.ReadEXIF = false
	}
	if flagSet(flags, "no-archive") {
		cfg.Archive = false
	}
	if cfg.OutputCSV == "" {
		cfg.OutputCSV = filepath.Join(cfg.ResultsDir(), CSVFileName)
	}
	if cfg.SummaryPath == "" {
		cfg.SummaryPath = filepath.Join(cfg.ResultsDir(), SummaryFileName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindFlags lets explicitly set flags override environment values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// flagSet reports whether a boolean flag was given as true.
func flagSet(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed && f.Value.String() == "true"
}

// durationValue accepts Go durations ("30s", "1m") or a bare number of seconds.
func durationValue(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToUpper(key), raw, err)
	}
	return d, nil
}

// Validate checks numeric limits.
func (c *Config) Validate() error {
	var errs []error
	if c.RateLimit < 1 {
		errs = append(errs, fmt.Errorf("rate limit must be at least 1, got %d", c.RateLimit))
	}
	if c.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("max concurrent requests must be at least 1, got %d", c.MaxConcurrent))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("max retries must be at least 1, got %d", c.MaxRetries))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("API timeout must be positive, got %s", c.Timeout))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry base delay must not be negative, got %s", c.RetryBaseDelay))
	}
	if c.MaxImageSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("max image size must be positive, got %g MB", c.MaxImageSizeMB))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", c.Limit))
	}
	if c.InputDir == "" {
		errs = append(errs, errors.New("input directory is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// ResultsDir holds CSV, summary and archive bundles.
func (c *Config) ResultsDir() string { return filepath.Join(c.ArchiveDir, ResultsSubdir) }

// LogsDir holds the run log and metrics.
func (c *Config) LogsDir() string { return filepath.Join(c.ArchiveDir, LogsSubdir) }

// TempDir holds scratch files.
func (c *Config) TempDir() string { return filepath.Join(c.ArchiveDir, TempSubdir) }

// MetricsPath is the EMF metrics file inside LogsDir.
func (c *Config) MetricsPath() string { return filepath.Join(c.LogsDir(), MetricsFileName) }

// MaxPayloadBytes converts MaxImageSizeMB to bytes.
func (c *Config) MaxPayloadBytes() int {
	return int(c.MaxImageSizeMB * 1024 * 1024)
}

// EnsureDirectories creates the archive tree and the parents of the output
// files. The input directory must already exist.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.ArchiveDir, c.ResultsDir(), c.LogsDir(), c.TempDir(),
		filepath.Dir(c.OutputCSV), filepath.Dir(c.SummaryPath),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
