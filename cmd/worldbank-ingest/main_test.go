package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/conflict-ingest/internal/testutil"
	"github.com/Sternrassler/conflict-ingest/pkg/config"
	"github.com/Sternrassler/conflict-ingest/pkg/pipeline"
	"github.com/Sternrassler/conflict-ingest/pkg/storage"
	"github.com/Sternrassler/conflict-ingest/pkg/worldbank"
)

func testConfig(t *testing.T, mock *testutil.MockAPI) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage = storage.Config{Type: storage.TypeLocal, BaseDir: t.TempDir()}
	cfg.WorldBank.BaseURL = mock.URL() + "/v2"
	cfg.WorldBank.Indicators = []worldbank.Indicator{{Code: "SP.POP.TOTL", Column: worldbank.ColumnPopulation}}
	cfg.Output.Format = "csv"
	return cfg
}

func populationBody(country, iso3 string, year int, value string) string {
	return fmt.Sprintf(`[{"page":1,"pages":1},[{"country":{"id":"X","value":%q},"countryiso3code":%q,"date":"%d","value":%s}]]`,
		country, iso3, year, value)
}

func TestRun_WritesIndicatorTable(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Enqueue("/v2/country/ITA/indicator/SP.POP.TOTL", testutil.JSON(populationBody("Italy", "ITA", 1990, "56719240")))

	cfg := testConfig(t, mock)
	cfg.WorldBank.Countries = []string{"Italy"}

	if err := run(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.Storage.BaseDir, "worldbank-data", "processed", "worldbank", "worldbank_data_1989_1991.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := strings.Join([]string{
		"country,iso3,year,population,population_string",
		"Italy,ITA,1990,56719240,56.7 M",
		"",
	}, "\n")
	if string(data) != want {
		t.Errorf("output =\n%s\nwant\n%s", data, want)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if got := reqs[0].Query.Get("date"); got != "1989:1991" {
		t.Errorf("date param = %q", got)
	}
}

func TestRun_ConfigAliasesExtendDefaults(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Enqueue("/v2/country/ISR/indicator/SP.POP.TOTL", testutil.JSON(populationBody("Israel", "ISR", 1989, "4518000")))

	cfg := testConfig(t, mock)
	cfg.WorldBank.Countries = []string{"State of Israel"}
	cfg.WorldBank.Aliases = map[string]string{"State of Israel": "ISR"}

	if err := run(context.Background(), cfg, zerolog.Nop()); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", mock.RequestCount())
	}
}

func TestRun_NoConvertibleCountries(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	cfg := testConfig(t, mock)
	cfg.WorldBank.Countries = []string{"Atlantis"}

	err := run(context.Background(), cfg, zerolog.Nop())
	if err == nil {
		t.Fatal("run() expected error")
	}
	if !errors.Is(err, pipeline.ErrNoRecords) {
		t.Errorf("run() error = %v, want ErrNoRecords", err)
	}
	if mock.RequestCount() != 0 {
		t.Error("no request expected for unconvertible country")
	}
}
