package logging

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects the run identity, configuration, paths and feature
// flags, then emits a single structured event summarising how the batch was
// configured. Secret values must never be registered.
type StartupLogger struct {
	name     string
	version  string
	runID    string
	loadTime time.Duration
	paths    map[string]string
	features map[string]bool
	config   map[string]string
}

// NewStartupLogger creates a StartupLogger for the given command name.
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		paths:    make(map[string]string),
		features: make(map[string]bool),
		config:   make(map[string]string),
	}
}

// Version sets the build version baked into the binary.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// RunID sets the identifier shared by the run's log, summary and archive.
func (s *StartupLogger) RunID(id string) *StartupLogger {
	s.runID = id
	return s
}

// Path registers an input or output location.
func (s *StartupLogger) Path(label, path string) *StartupLogger {
	s.paths[label] = path
	return s
}

// Feature registers a boolean feature flag (e.g. "archive", "exif").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// LoadDuration records how long configuration and credential loading took.
func (s *StartupLogger) LoadDuration(d time.Duration) *StartupLogger {
	s.loadTime = d
	return s
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Info()

	run := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("os", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Str("logLevel", zerolog.GlobalLevel().String())
	if s.version != "" {
		run = run.Str("version", s.version)
	}
	if s.runID != "" {
		run = run.Str("runId", s.runID)
	}
	evt = evt.Dict("run", run)

	if len(s.paths) > 0 {
		evt = evt.Dict("paths", dictFromMap(s.paths))
	}
	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if s.loadTime > 0 {
		evt = evt.Dur("loadDuration", s.loadTime)
	}

	evt.Msg("Batch run configured")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
