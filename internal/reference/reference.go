// Package reference supplies the static option sets that enum fields are
// checked against: countries and the regions (states, provinces) that belong
// to each country.
//
// The data is treated as an opaque lookup table. Callers look values up by
// code and never derive them.
package reference

import (
	"sort"
	"strings"
)

// Option is one selectable (value, label) pair of an enum field.
type Option struct {
	Value string `json:"value" koanf:"value"`
	Label string `json:"label" koanf:"label"`
}

// Provider is the lookup table consulted by cross-field rules.
type Provider interface {
	// Countries returns every known country option.
	Countries() []Option
	// Regions returns the region options for a country code.
	// Returns false if the country has no region data.
	Regions(country string) ([]Option, bool)
	// HasCountry reports whether the country code is known.
	HasCountry(country string) bool
}

// Static is a Provider backed by in-memory tables.
type Static struct {
	countries []Option
	regions   map[string][]Option
	known     map[string]bool
}

// NewStatic builds a provider from explicit tables. Country codes are
// matched case-insensitively.
func NewStatic(countries []Option, regions map[string][]Option) *Static {
	s := &Static{
		countries: countries,
		regions:   make(map[string][]Option, len(regions)),
		known:     make(map[string]bool, len(countries)),
	}
	for _, c := range countries {
		s.known[strings.ToUpper(c.Value)] = true
	}
	for code, opts := range regions {
		s.regions[strings.ToUpper(code)] = opts
	}
	return s
}

// Default returns the built-in country and region tables.
func Default() *Static {
	return NewStatic(countries, map[string][]Option{
		"US": usRegions(),
		"CA": caRegions,
		"AU": auRegions,
		"MX": mxRegions,
	})
}

func (s *Static) Countries() []Option {
	out := make([]Option, len(s.countries))
	copy(out, s.countries)
	return out
}

func (s *Static) Regions(country string) ([]Option, bool) {
	opts, ok := s.regions[strings.ToUpper(strings.TrimSpace(country))]
	if !ok {
		return nil, false
	}
	out := make([]Option, len(opts))
	copy(out, opts)
	return out, true
}

func (s *Static) HasCountry(country string) bool {
	return s.known[strings.ToUpper(strings.TrimSpace(country))]
}

// Contains reports whether value matches an option value exactly.
func Contains(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Values returns the option values in order.
func Values(opts []Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Value
	}
	return out
}

// usRegions builds the US option list from UsStates, sorted by code.
func usRegions() []Option {
	opts := make([]Option, 0, len(UsStates)+1)
	for name, code := range UsStates {
		opts = append(opts, Option{Value: code, Label: titleCase(name)})
	}
	opts = append(opts, Option{Value: "DC", Label: "District of Columbia"})
	sort.Slice(opts, func(i, j int) bool { return opts[i].Value < opts[j].Value })
	return opts
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

var countries = []Option{
	{Value: "US", Label: "United States"},
	{Value: "CA", Label: "Canada"},
	{Value: "MX", Label: "Mexico"},
	{Value: "GB", Label: "United Kingdom"},
	{Value: "IE", Label: "Ireland"},
	{Value: "DE", Label: "Germany"},
	{Value: "FR", Label: "France"},
	{Value: "ES", Label: "Spain"},
	{Value: "IT", Label: "Italy"},
	{Value: "NL", Label: "Netherlands"},
	{Value: "SE", Label: "Sweden"},
	{Value: "DK", Label: "Denmark"},
	{Value: "NO", Label: "Norway"},
	{Value: "CH", Label: "Switzerland"},
	{Value: "AU", Label: "Australia"},
	{Value: "NZ", Label: "New Zealand"},
	{Value: "JP", Label: "Japan"},
	{Value: "IN", Label: "India"},
	{Value: "SG", Label: "Singapore"},
	{Value: "BR", Label: "Brazil"},
}

var caRegions = []Option{
	{Value: "AB", Label: "Alberta"},
	{Value: "BC", Label: "British Columbia"},
	{Value: "MB", Label: "Manitoba"},
	{Value: "NB", Label: "New Brunswick"},
	{Value: "NL", Label: "Newfoundland and Labrador"},
	{Value: "NS", Label: "Nova Scotia"},
	{Value: "NT", Label: "Northwest Territories"},
	{Value: "NU", Label: "Nunavut"},
	{Value: "ON", Label: "Ontario"},
	{Value: "PE", Label: "Prince Edward Island"},
	{Value: "QC", Label: "Quebec"},
	{Value: "SK", Label: "Saskatchewan"},
	{Value: "YT", Label: "Yukon"},
}

var auRegions = []Option{
	{Value: "ACT", Label: "Australian Capital Territory"},
	{Value: "NSW", Label: "New South Wales"},
	{Value: "NT", Label: "Northern Territory"},
	{Value: "QLD", Label: "Queensland"},
	{Value: "SA", Label: "South Australia"},
	{Value: "TAS", Label: "Tasmania"},
	{Value: "VIC", Label: "Victoria"},
	{Value: "WA", Label: "Western Australia"},
}

var mxRegions = []Option{
	{Value: "AGU", Label: "Aguascalientes"},
	{Value: "BCN", Label: "Baja California"},
	{Value: "CMX", Label: "Ciudad de México"},
	{Value: "JAL", Label: "Jalisco"},
	{Value: "NLE", Label: "Nuevo León"},
	{Value: "PUE", Label: "Puebla"},
	{Value: "QUE", Label: "Querétaro"},
	{Value: "YUC", Label: "Yucatán"},
}
