// Package config loads run configuration from a YAML file, a .env file and
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/conflict-ingest/pkg/cache"
	"github.com/Sternrassler/conflict-ingest/pkg/export"
	"github.com/Sternrassler/conflict-ingest/pkg/ged"
	"github.com/Sternrassler/conflict-ingest/pkg/logging"
	"github.com/Sternrassler/conflict-ingest/pkg/pagination"
	"github.com/Sternrassler/conflict-ingest/pkg/refdata"
	"github.com/Sternrassler/conflict-ingest/pkg/storage"
	"github.com/Sternrassler/conflict-ingest/pkg/worldbank"
)

// Config is the complete run configuration shared by both CLIs.
type Config struct {
	// StartYear and EndYear bound the query window, inclusive.
	StartYear int `yaml:"start_year"`
	EndYear   int `yaml:"end_year"`

	Logging logging.Config `yaml:"logging"`

	// MetricsAddr serves /metrics and /health when set (e.g. ":9090").
	MetricsAddr string `yaml:"metrics_addr"`

	// RedisURL enables the response cache when set.
	RedisURL string        `yaml:"redis_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`

	Storage   storage.Config  `yaml:"storage"`
	Output    OutputConfig    `yaml:"output"`
	UCDP      UCDPConfig      `yaml:"ucdp"`
	WorldBank WorldBankConfig `yaml:"worldbank"`
}

// OutputConfig controls dataset encoding.
type OutputConfig struct {
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`
}

// UCDPConfig configures the conflict-event run.
type UCDPConfig struct {
	BaseURL     string `yaml:"base_url"`
	Version     string `yaml:"version"`
	AccessToken string `yaml:"access_token"`
	PageSize    int    `yaml:"page_size"`

	// Countries are Gleditsch-Ward codes, used unless CodesFromReference is set.
	Countries          []int  `yaml:"countries"`
	CodesFromReference bool   `yaml:"codes_from_reference"`
	ReferenceContainer string `yaml:"reference_container"`
	ReferenceObject    string `yaml:"reference_object"`
	ReferenceColumn    string `yaml:"reference_column"`

	// Container receives raw/ and processed/ datasets.
	Container string `yaml:"container"`

	Pagination pagination.Config `yaml:"pagination"`
}

// WorldBankConfig configures the indicator run.
type WorldBankConfig struct {
	BaseURL    string                `yaml:"base_url"`
	Countries  []string              `yaml:"countries"`
	Indicators []worldbank.Indicator `yaml:"indicators"`
	Aliases    map[string]string     `yaml:"aliases"`
	Container  string                `yaml:"container"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		StartYear: 1989,
		EndYear:   1991,
		Logging:   logging.DefaultConfig(),
		CacheTTL:  cache.DefaultTTL,
		Storage: storage.Config{
			BaseDir: "./data",
		},
		Output: OutputConfig{
			Format:      string(export.FormatParquet),
			Compression: "SNAPPY",
		},
		UCDP: UCDPConfig{
			BaseURL:            ged.DefaultBaseURL,
			Version:            ged.DefaultVersion,
			PageSize:           ged.DefaultPageSize,
			Countries:          []int{645, 700, 775, 540, 666},
			ReferenceContainer: refdata.DefaultContainer,
			ReferenceObject:    refdata.DefaultObject,
			ReferenceColumn:    refdata.DefaultColumn,
			Container:          "test-data",
			Pagination:         pagination.DefaultConfig(),
		},
		WorldBank: WorldBankConfig{
			BaseURL:    worldbank.DefaultBaseURL,
			Countries:  []string{"United States", "Israel", "Italy"},
			Indicators: worldbank.DefaultIndicators,
			Container:  "worldbank-data",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then .env, then the process environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid boolean %q", key, v))
				return
			}
			*dst = b
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	setInt("START_YEAR", &c.StartYear)
	setInt("END_YEAR", &c.EndYear)

	if v, ok := get("LOG_LEVEL"); ok {
		c.Logging.Level = logging.LogLevel(strings.ToLower(v))
	}
	setBool("LOG_PRETTY", &c.Logging.Pretty)
	setString("METRICS_ADDR", &c.MetricsAddr)
	setString("REDIS_URL", &c.RedisURL)

	setString("STORAGE_BACKEND", &c.Storage.Type)
	setString("AZURE_STORAGE_CONNECTION_STRING", &c.Storage.ConnectionString)
	setString("STORAGE_BASE_DIR", &c.Storage.BaseDir)
	setString("S3_ENDPOINT", &c.Storage.Endpoint)
	setString("S3_ACCESS_KEY", &c.Storage.AccessKey)
	setString("S3_SECRET_KEY", &c.Storage.SecretKey)
	setString("S3_REGION", &c.Storage.Region)
	setBool("S3_USE_SSL", &c.Storage.UseSSL)
	setString("GCS_CREDENTIALS_FILE", &c.Storage.CredentialsFile)
	setString("GCS_ENDPOINT", &c.Storage.GCSEndpoint)
	setBool("STORAGE_CREATE_CONTAINERS", &c.Storage.CreateContainers)

	setString("OUTPUT_FORMAT", &c.Output.Format)
	setString("OUTPUT_COMPRESSION", &c.Output.Compression)

	setString("UCDP_BASE_URL", &c.UCDP.BaseURL)
	setString("UCDP_VERSION", &c.UCDP.Version)
	setString("UCDP_ACCESS_TOKEN", &c.UCDP.AccessToken)
	setInt("UCDP_PAGE_SIZE", &c.UCDP.PageSize)
	setBool("UCDP_CODES_FROM_REFERENCE", &c.UCDP.CodesFromReference)
	setInt("UCDP_MAX_BACKOFFS", &c.UCDP.Pagination.MaxBackoffs)
	if v, ok := get("GW_CODES"); ok {
		codes, err := parseCodes(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("GW_CODES: %w", err))
		} else {
			c.UCDP.Countries = codes
		}
	}

	setString("WORLDBANK_BASE_URL", &c.WorldBank.BaseURL)
	if v, ok := get("WORLDBANK_COUNTRIES"); ok {
		c.WorldBank.Countries = splitList(v, ";")
	}

	// The Azure backend is implied by its credential, as in the original deployment.
	if c.Storage.Type == "" {
		if c.Storage.ConnectionString != "" {
			c.Storage.Type = storage.TypeAzure
		} else {
			c.Storage.Type = storage.TypeLocal
		}
	}

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.StartYear <= 0 || c.EndYear <= 0 {
		errs = append(errs, fmt.Errorf("start_year and end_year must be positive"))
	}
	if c.StartYear > c.EndYear {
		errs = append(errs, fmt.Errorf("start_year (%d) must not be after end_year (%d)", c.StartYear, c.EndYear))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Storage.Type) {
	case storage.TypeAzure:
		if c.Storage.ConnectionString == "" {
			errs = append(errs, fmt.Errorf("azure storage requires AZURE_STORAGE_CONNECTION_STRING"))
		}
	case storage.TypeS3:
		if c.Storage.Endpoint == "" {
			errs = append(errs, fmt.Errorf("s3 storage requires an endpoint"))
		}
	case storage.TypeGCS:
	case storage.TypeLocal:
		if c.Storage.BaseDir == "" {
			errs = append(errs, fmt.Errorf("local storage requires base_dir"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}

	if _, err := export.ParseFormat(c.Output.Format); err != nil {
		errs = append(errs, err)
	}
	if _, err := export.ParseCompression(c.Output.Compression); err != nil {
		errs = append(errs, err)
	}

	if c.UCDP.PageSize < 0 {
		errs = append(errs, fmt.Errorf("ucdp page_size must be >= 0"))
	}
	if !c.UCDP.CodesFromReference && len(c.UCDP.Countries) == 0 {
		errs = append(errs, fmt.Errorf("ucdp countries must not be empty unless codes_from_reference is set"))
	}
	p := c.UCDP.Pagination
	if p.PacingDelay < 0 || p.BackoffDelay < 0 || p.MaxBackoffs < 0 || p.AlarmEvery < 0 {
		errs = append(errs, fmt.Errorf("pagination settings must be >= 0"))
	}
	if c.UCDP.Container == "" || c.WorldBank.Container == "" {
		errs = append(errs, fmt.Errorf("output containers must be set"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("cache_ttl must be >= 0"))
	}

	if err := worldbank.CheckIndicators(c.WorldBank.Indicators); err != nil {
		errs = append(errs, fmt.Errorf("worldbank indicators: %w", err))
	}

	return errors.Join(errs...)
}

func parseCodes(s string) ([]int, error) {
	var codes []int
	for _, part := range splitList(s, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid code %q", part)
		}
		codes = append(codes, n)
	}
	return codes, nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
