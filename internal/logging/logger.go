package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogFileName is the per-run log written next to the other run outputs.
const LogFileName = "ocr_processing.log"

// ParseLevel maps debug, info, warn or error to a zerolog level (default: info).
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init sets the global level and routes the global logger to a console writer
// on stderr. Extra writers receive the same events as JSON lines.
func Init(level string, extra ...io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	if len(extra) == 0 {
		log.Logger = log.Output(console)
		return
	}
	writers := append([]io.Writer{console}, extra...)
	log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))
}

// OpenLogFile opens (appending) the run log inside dir.
func OpenLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
