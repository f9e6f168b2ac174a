// Package country resolves ISO 3166-1 alpha-2 territory codes to English
// display names.
package country

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/helixir/openalex-analyzer/internal/domain"
)

// defaultOverrides replaces CLDR names that differ from the short forms
// used in bibliometric reports.
var defaultOverrides = map[string]string{
	"US": "United States",
	"HK": "Hong Kong",
	"MO": "Macao",
	"PS": "Palestine",
	"CI": "Côte d'Ivoire",
	"MM": "Myanmar",
}

// Resolver maps territory codes to display names. The zero value is not
// usable; construct one with New. A Resolver is safe for concurrent use.
type Resolver struct {
	overrides map[string]string
	namer     display.Namer
}

// New returns a Resolver backed by the CLDR English region names. Entries in
// overrides (keyed by upper-case code) take precedence over the built-in table.
func New(overrides map[string]string) *Resolver {
	merged := make(map[string]string, len(defaultOverrides)+len(overrides))
	for k, v := range defaultOverrides {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return &Resolver{
		overrides: merged,
		namer:     display.English.Regions(),
	}
}

// Default is the Resolver used when no overrides are configured.
var Default = New(nil)

// Name returns the display name for code. A blank code yields
// domain.UnknownCountry. A code that is not a current two-letter country
// code known to CLDR, including retired and reserved codes, is returned
// unchanged. Name never fails.
func (r *Resolver) Name(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return domain.UnknownCountry
	}

	upper := strings.ToUpper(trimmed)
	if name, ok := r.overrides[upper]; ok {
		return name
	}
	if !isAlpha2(upper) {
		return code
	}

	// ParseRegion canonicalizes retired codes (UK, DD, BU); only codes that
	// are already current pass.
	region, err := language.ParseRegion(upper)
	if err != nil || !region.IsCountry() || region.String() != upper {
		return code
	}
	name := r.namer.Name(region)
	if name == "" {
		return code
	}
	return name
}

// Name resolves code with the Default resolver.
func Name(code string) string {
	return Default.Name(code)
}

func isAlpha2(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}
