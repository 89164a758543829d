package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/conflict-ingest/pkg/storage"
	"github.com/Sternrassler/conflict-ingest/pkg/worldbank"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(nil)))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1989, cfg.StartYear)
	assert.Equal(t, 1991, cfg.EndYear)
	assert.Equal(t, storage.TypeLocal, cfg.Storage.Type)
	assert.Equal(t, "25.1", cfg.UCDP.Version)
	assert.Equal(t, 1000, cfg.UCDP.PageSize)
	assert.Equal(t, []int{645, 700, 775, 540, 666}, cfg.UCDP.Countries)
	assert.Equal(t, "test-data", cfg.UCDP.Container)
	assert.Equal(t, "worldbank-data", cfg.WorldBank.Container)
	assert.Equal(t, time.Second, cfg.UCDP.Pagination.PacingDelay)
	assert.Equal(t, 5*time.Second, cfg.UCDP.Pagination.BackoffDelay)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"START_YEAR":                      "2012",
		"END_YEAR":                        "2023",
		"AZURE_STORAGE_CONNECTION_STRING": "DefaultEndpointsProtocol=https;AccountName=x;AccountKey=eA==",
		"UCDP_ACCESS_TOKEN":               "token",
		"GW_CODES":                        "2, 645 ,700",
		"WORLDBANK_COUNTRIES":             "Korea, Republic of; Italy",
		"LOG_LEVEL":                       "DEBUG",
		"UCDP_MAX_BACKOFFS":               "0",
		"OUTPUT_FORMAT":                   "csv",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 2012, cfg.StartYear)
	assert.Equal(t, 2023, cfg.EndYear)
	assert.Equal(t, storage.TypeAzure, cfg.Storage.Type, "connection string implies azure")
	assert.Equal(t, "token", cfg.UCDP.AccessToken)
	assert.Equal(t, []int{2, 645, 700}, cfg.UCDP.Countries)
	assert.Equal(t, []string{"Korea, Republic of", "Italy"}, cfg.WorldBank.Countries)
	assert.Equal(t, "debug", string(cfg.Logging.Level))
	assert.Equal(t, 0, cfg.UCDP.Pagination.MaxBackoffs)
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestApplyEnv_ExplicitBackendWins(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"STORAGE_BACKEND":                 "s3",
		"S3_ENDPOINT":                     "localhost:9000",
		"AZURE_STORAGE_CONNECTION_STRING": "ignored",
	})))
	assert.Equal(t, storage.TypeS3, cfg.Storage.Type)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_InvalidValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"START_YEAR": "nineteen",
		"GW_CODES":   "645,x",
		"S3_USE_SSL": "maybe",
	}))
	require.Error(t, err)
	for _, key := range []string{"START_YEAR", "GW_CODES", "S3_USE_SSL"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"inverted years", func(c *Config) { c.StartYear, c.EndYear = 2000, 1999 }, "must not be after"},
		{"azure without credential", func(c *Config) { c.Storage.Type = storage.TypeAzure }, "AZURE_STORAGE_CONNECTION_STRING"},
		{"unknown backend", func(c *Config) { c.Storage.Type = "ftp" }, "unknown storage type"},
		{"bad format", func(c *Config) { c.Output.Format = "xlsx" }, "output format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"no countries", func(c *Config) { c.UCDP.Countries = nil }, "countries"},
		{"negative backoffs", func(c *Config) { c.UCDP.Pagination.MaxBackoffs = -1 }, "pagination"},
		{"indicator column clashes with key", func(c *Config) {
			c.WorldBank.Indicators = []worldbank.Indicator{{Code: "X.Y", Column: "year"}}
		}, "already used"},
		{"indicator column not an identifier", func(c *Config) {
			c.WorldBank.Indicators = []worldbank.Indicator{{Code: "X.Y", Column: "Arms Imports"}}
		}, "invalid column name"},
		{"duplicate indicator column", func(c *Config) {
			c.WorldBank.Indicators = []worldbank.Indicator{{Code: "A", Column: "arms"}, {Code: "B", Column: "arms"}}
		}, "already used"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Storage.Type = storage.TypeLocal
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_CustomIndicators(t *testing.T) {
	cfg := Default()
	cfg.Storage.Type = storage.TypeLocal
	cfg.WorldBank.Indicators = []worldbank.Indicator{{Code: "MS.MIL.MPRT.KD", Column: "arms_imports"}}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ReferenceCodesAllowEmptyList(t *testing.T) {
	cfg := Default()
	cfg.Storage.Type = storage.TypeLocal
	cfg.UCDP.Countries = nil
	cfg.UCDP.CodesFromReference = true
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ingest.yaml")
	yamlData := strings.Join([]string{
		"start_year: 2001",
		"end_year: 2003",
		"storage:",
		"  type: local",
		"  base_dir: " + filepath.Join(dir, "out"),
		"ucdp:",
		"  countries: [645]",
		"  pagination:",
		"    backoff_delay: 2s",
		"    max_backoffs: 5",
		"worldbank:",
		"  countries: [\"Israel\"]",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))

	t.Setenv("END_YEAR", "2004")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2001, cfg.StartYear)
	assert.Equal(t, 2004, cfg.EndYear, "environment overrides file")
	assert.Equal(t, []int{645}, cfg.UCDP.Countries)
	assert.Equal(t, 2*time.Second, cfg.UCDP.Pagination.BackoffDelay)
	assert.Equal(t, 5, cfg.UCDP.Pagination.MaxBackoffs)
	assert.Equal(t, time.Second, cfg.UCDP.Pagination.PacingDelay, "unset keys keep defaults")
	assert.Equal(t, []string{"Israel"}, cfg.WorldBank.Countries)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("START_YEAR=1995\nEND_YEAR=1996\nSTORAGE_BACKEND=local\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("END_YEAR", "1997")
	t.Cleanup(func() {
		os.Unsetenv("START_YEAR")
		os.Unsetenv("STORAGE_BACKEND")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1995, cfg.StartYear)
	assert.Equal(t, 1997, cfg.EndYear, "process environment wins over .env")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
