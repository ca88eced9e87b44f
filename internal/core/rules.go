package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/recordqa/internal/reference"
)

// RuleResult is the outcome of one rule. At most one of Error or Info is
// attached; Error wins when both are set.
type RuleResult struct {
	Error string
	Info  string
}

// OK reports whether the result carries no message.
func (r RuleResult) OK() bool {
	return r.Error == "" && r.Info == ""
}

// TypeRule validates values of one declared field type.
// Implementations must not modify the record.
type TypeRule interface {
	Check(value any, rec *Record, key string) RuleResult
}

// TypeRuleFunc adapts a function to TypeRule.
type TypeRuleFunc func(value any, rec *Record, key string) RuleResult

func (f TypeRuleFunc) Check(value any, rec *Record, key string) RuleResult {
	return f(value, rec, key)
}

// CrossFieldRule validates a field against the current value of the sibling
// named by its DependsOn. The result is attached to the dependent field.
type CrossFieldRule interface {
	Check(value, sibling any, field FieldSpec) RuleResult
}

// RuleRegistry maps declared types and field keys to rules.
// A registry is read-only once validation starts.
type RuleRegistry struct {
	byType    map[FieldType]TypeRule
	byField   map[string]CrossFieldRule
	dependent CrossFieldRule
}

// NewRuleRegistry creates an empty registry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		byType:  make(map[FieldType]TypeRule),
		byField: make(map[string]CrossFieldRule),
	}
}

// DefaultRules returns the standard registry: boolean, date and number type
// rules plus the region rule for every field that declares DependsOn.
func DefaultRules(p reference.Provider) *RuleRegistry {
	r := NewRuleRegistry()
	r.Register(FieldBool, BoolRule{})
	r.Register(FieldDate, DateRule{})
	r.Register(FieldNumber, NumberRule{})
	if p != nil {
		r.RegisterDependent(RegionRule{Provider: p})
	}
	return r
}

// Register sets the rule for a field type, replacing any existing one.
func (r *RuleRegistry) Register(t FieldType, rule TypeRule) {
	r.byType[t] = rule
}

// RegisterCrossField sets the cross-field rule for a field key. It only
// applies when the schema declares DependsOn for that field.
func (r *RuleRegistry) RegisterCrossField(key string, rule CrossFieldRule) {
	r.byField[key] = rule
}

// RegisterDependent sets the rule used for DependsOn fields that have no
// rule of their own.
func (r *RuleRegistry) RegisterDependent(rule CrossFieldRule) {
	r.dependent = rule
}

// TypeRule returns the rule for t. Types without an entry return false.
func (r *RuleRegistry) TypeRule(t FieldType) (TypeRule, bool) {
	rule, ok := r.byType[t]
	return rule, ok
}

// CrossFieldRule returns the rule for field. Fields without DependsOn have
// none.
func (r *RuleRegistry) CrossFieldRule(field FieldSpec) (CrossFieldRule, bool) {
	if field.DependsOn == "" {
		return nil, false
	}
	if rule, ok := r.byField[field.Key]; ok {
		return rule, true
	}
	return r.dependent, r.dependent != nil
}

// BoolRule accepts Go bools and the boolean spellings of ParseBool.
// Non-canonical spellings ("yes", "1") pass with an info note.
type BoolRule struct{}

func (BoolRule) Check(value any, _ *Record, _ string) RuleResult {
	switch v := value.(type) {
	case bool:
		return RuleResult{}
	case string:
		b, canonical, ok := ParseBool(v)
		if !ok {
			return RuleResult{Error: "must be yes/no, true/false, or 1/0"}
		}
		if !canonical {
			return RuleResult{Info: fmt.Sprintf("interpreted as %t", b)}
		}
		return RuleResult{}
	default:
		if s, _ := ValueString(v); s == "0" || s == "1" {
			return RuleResult{Info: fmt.Sprintf("interpreted as %t", s == "1")}
		}
		return RuleResult{Error: "must be yes/no, true/false, or 1/0"}
	}
}

// DateRule accepts any supported date layout. Dates outside YYYY-MM-DD pass
// with an info note. Acceptance never depends on the clock; only the century
// ParseDate assigns to a two-digit year does.
type DateRule struct{}

func (DateRule) Check(value any, _ *Record, _ string) RuleResult {
	s, ok := value.(string)
	if !ok {
		return RuleResult{Error: "invalid date format (use YYYY-MM-DD or similar)"}
	}
	if !IsValidDateFormat(s) {
		return RuleResult{Error: "invalid date format (use YYYY-MM-DD or similar)"}
	}
	if !IsISODate(s) {
		return RuleResult{Info: "date is not in ISO format (YYYY-MM-DD)"}
	}
	return RuleResult{}
}

// NumberRule accepts numeric Go values and numeric strings.
type NumberRule struct{}

func (NumberRule) Check(value any, _ *Record, _ string) RuleResult {
	if !IsNumeric(value) {
		return RuleResult{Error: "invalid number format"}
	}
	return RuleResult{}
}

// RegionRule checks that a region belongs to the country held by the
// field's DependsOn sibling. Countries the provider does not know, or knows
// without region data, are not checked.
type RegionRule struct {
	Provider reference.Provider
}

func (r RegionRule) Check(value, sibling any, field FieldSpec) RuleResult {
	region, ok := ValueString(value)
	if !ok || region == "" {
		return RuleResult{}
	}

	country, _ := ValueString(sibling)
	country = strings.TrimSpace(country)
	if country == "" {
		return RuleResult{Error: fmt.Sprintf("%s requires a %s", field.Key, field.DependsOn)}
	}
	if !r.Provider.HasCountry(country) {
		return RuleResult{}
	}

	opts, ok := r.Provider.Regions(country)
	if !ok || reference.Contains(opts, region) {
		return RuleResult{}
	}

	msg := fmt.Sprintf("%s is not a valid region for %s", region, country)
	if code, ok := reference.NormalizeRegion(r.Provider, country, region); ok {
		msg += fmt.Sprintf(" (did you mean %q?)", code)
	}
	return RuleResult{Error: msg}
}
