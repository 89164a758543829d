// Package countrycode converts country names to ISO 3166-1 alpha-3 codes.
package countrycode

import (
	"strings"

	"github.com/biter777/countries"
)

// Converter maps a human-readable country name to an ISO3 code. ok is false
// when the name cannot be converted.
type Converter interface {
	ToISO3(name string) (code string, ok bool)
}

// Result is the outcome of one conversion.
type Result struct {
	Name string
	ISO3 string
	OK   bool
}

// DefaultAliases covers names used by UCDP and the World Bank that the
// country database does not resolve on its own.
var DefaultAliases = map[string]string{
	"bosnia-herzegovina":              "BIH",
	"cambodia (kampuchea)":            "KHM",
	"dr congo (zaire)":                "COD",
	"democratic republic of congo":    "COD",
	"ivory coast":                     "CIV",
	"kingdom of eswatini (swaziland)": "SWZ",
	"madagascar (malagasy)":           "MDG",
	"myanmar (burma)":                 "MMR",
	"russia (soviet union)":           "RUS",
	"serbia (yugoslavia)":             "SRB",
	"yemen (north yemen)":             "YEM",
	"zimbabwe (rhodesia)":             "ZWE",
	"kosovo":                          "XKX",
}

// Lookup resolves names against an alias table first and the country
// database second.
type Lookup struct {
	aliases map[string]string
}

// New creates a Lookup. Alias keys are matched case-insensitively.
func New(aliases map[string]string) *Lookup {
	normalized := make(map[string]string, len(aliases))
	for name, code := range aliases {
		normalized[normalizeName(name)] = strings.ToUpper(code)
	}
	return &Lookup{aliases: normalized}
}

// NewDefault creates a Lookup with DefaultAliases.
func NewDefault() *Lookup {
	return New(DefaultAliases)
}

// ToISO3 implements Converter.
func (l *Lookup) ToISO3(name string) (string, bool) {
	key := normalizeName(name)
	if key == "" {
		return "", false
	}
	if code, ok := l.aliases[key]; ok {
		return code, true
	}

	if c := countries.ByName(name); c != countries.Unknown {
		if code := c.Alpha3(); code != "" && code != countries.Unknown.Alpha3() {
			return code, true
		}
	}

	if len(key) == 3 {
		upper := strings.ToUpper(key)
		for _, c := range countries.All() {
			if c.Alpha3() == upper {
				return upper, true
			}
		}
	}
	return "", false
}

// Convert returns the conversion outcome for name using c.
func Convert(c Converter, name string) Result {
	code, ok := c.ToISO3(name)
	return Result{Name: name, ISO3: code, OK: ok}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
