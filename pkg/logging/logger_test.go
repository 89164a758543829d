package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}

	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}

	if cfg.Output == nil {
		t.Error("Expected default output to be set")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name    string
		level   LogLevel
		logFn   func(l zerolog.Logger)
		wantOut bool
	}{
		{
			name:    "info logged at info level",
			level:   LevelInfo,
			logFn:   func(l zerolog.Logger) { l.Info().Msg("retrieval complete") },
			wantOut: true,
		},
		{
			name:    "debug suppressed at info level",
			level:   LevelInfo,
			logFn:   func(l zerolog.Logger) { l.Debug().Msg("retrieval complete") },
			wantOut: false,
		},
		{
			name:    "debug logged at debug level",
			level:   LevelDebug,
			logFn:   func(l zerolog.Logger) { l.Debug().Msg("retrieval complete") },
			wantOut: true,
		},
		{
			name:    "warn suppressed at error level",
			level:   LevelError,
			logFn:   func(l zerolog.Logger) { l.Warn().Msg("retrieval complete") },
			wantOut: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.logFn(logger)

			got := strings.Contains(buf.String(), "retrieval complete")
			if got != tt.wantOut {
				t.Errorf("output contains message = %v, want %v (output: %q)", got, tt.wantOut, buf.String())
			}
		})
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) should fail")
	}
}

func TestSetup_InvalidLevelFallsBackToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: "verbose", Output: buf})
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestSetup_ServiceField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Service: "ucdp-ingest", Output: buf})
	defer Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}})

	logger := NewLogger("ged-fetcher")
	logger.Info().Msg("page fetched")

	out := buf.String()
	if !strings.Contains(out, `"service":"ucdp-ingest"`) || !strings.Contains(out, `"component":"ged-fetcher"`) {
		t.Errorf("expected service and component fields, got %q", out)
	}
}

func TestWithRun(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := WithRun(zerolog.New(buf), "ucdp", "run-1")
	logger.Info().Msg("started")

	out := buf.String()
	if !strings.Contains(out, `"pipeline":"ucdp"`) || !strings.Contains(out, `"run_id":"run-1"`) {
		t.Errorf("expected pipeline and run_id fields, got %q", out)
	}
}

func TestNewLogger_ComponentField(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	logger := NewLogger("ged-fetcher")
	logger.Info().Msg("hello")

	if !strings.Contains(buf.String(), `"component":"ged-fetcher"`) {
		t.Errorf("expected component field in output, got %q", buf.String())
	}
}
