package core

// validation.go annotates records with field-level errors and info.
//
// Each field in schema order gets three kinds of checks, always in this order
// and never short-circuited:
//  1. Universal checks: error markers, required values, enum options
//  2. The type rule registered for the field's declared type
//  3. The cross-field rule, for fields that declare DependsOn
//
// Every check appends to the field's annotation lists. Nothing is returned as
// an error: a single pass surfaces every problem in the record. Running
// Validate twice without ResetAnnotations in between accumulates duplicates.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/recordqa/internal/reference"
)

// errorMarkers are literal spreadsheet error values.
var errorMarkers = []string{
	"#ERROR!", "#N/A", "#VALUE!", "#REF!", "#DIV/0!", "#NUM!", "#NAME?", "#NULL!",
}

// UniversalCheck runs for every field regardless of type.
// It returns an error message, or "" if the value passes.
type UniversalCheck func(field FieldSpec, value any, rules *RuleRegistry) string

// DefaultUniversalChecks are applied by every validator unless replaced.
var DefaultUniversalChecks = []UniversalCheck{
	CheckErrorMarker,
	CheckRequired,
	CheckEnumOption,
}

// CheckErrorMarker flags literal spreadsheet error values such as "#N/A".
func CheckErrorMarker(_ FieldSpec, value any, _ *RuleRegistry) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, m := range errorMarkers {
		if s == m {
			return "Cell contains an error value: " + m
		}
	}
	return ""
}

// CheckRequired flags empty values of required fields.
func CheckRequired(field FieldSpec, value any, _ *RuleRegistry) string {
	if field.Has(ConstraintRequired) && IsEmpty(value) {
		return "required field is empty"
	}
	return ""
}

// CheckEnumOption flags enum values missing from the field's options.
// Fields with a cross-field rule are skipped; their options depend on a sibling.
func CheckEnumOption(field FieldSpec, value any, rules *RuleRegistry) string {
	if field.Type != FieldEnum || len(field.Options) == 0 || IsEmpty(value) {
		return ""
	}
	if rules != nil {
		if _, ok := rules.CrossFieldRule(field); ok {
			return ""
		}
	}
	s, _ := ValueString(value)
	if reference.Contains(field.Options, s) {
		return ""
	}
	return fmt.Sprintf("value must be one of: %s", strings.Join(reference.Values(field.Options), ", "))
}

// RecordValidator validates records against a schema. It holds no per-record
// state and is safe for concurrent use once built.
type RecordValidator struct {
	rules       *RuleRegistry
	universal   []UniversalCheck
	derivations []Derivation
}

// ValidatorOption configures a RecordValidator.
type ValidatorOption func(*RecordValidator)

// WithUniversalChecks replaces the universal checks.
func WithUniversalChecks(checks ...UniversalCheck) ValidatorOption {
	return func(v *RecordValidator) {
		v.universal = checks
	}
}

// WithDerivations sets the derived-field hooks run before the checks. A hook
// runs only when the schema marks its key computed.
func WithDerivations(d ...Derivation) ValidatorOption {
	return func(v *RecordValidator) {
		v.derivations = d
	}
}

// NewRecordValidator creates a validator. A nil registry validates with
// universal checks only.
func NewRecordValidator(rules *RuleRegistry, opts ...ValidatorOption) *RecordValidator {
	if rules == nil {
		rules = NewRuleRegistry()
	}
	v := &RecordValidator{
		rules:     rules,
		universal: DefaultUniversalChecks,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate annotates rec in place and returns it. It never fails; fields
// whose type has no rule only get the universal checks.
func (v *RecordValidator) Validate(rec *Record, schema Schema) *Record {
	if rec == nil {
		return nil
	}

	for _, d := range v.derivations {
		if f, ok := schema.Field(d.Computes()); !ok || !f.Has(ConstraintComputed) {
			continue
		}
		if key, value, info, ok := d.Derive(rec); ok {
			rec.Set(key, value)
			if info != "" {
				rec.AddInfo(key, info)
			}
		}
	}

	for _, field := range schema {
		v.validateField(rec, field)
	}

	return rec
}

func (v *RecordValidator) validateField(rec *Record, field FieldSpec) {
	value := rec.Get(field.Key)

	for _, check := range v.universal {
		if msg := check(field, value, v.rules); msg != "" {
			rec.AddError(field.Key, msg)
		}
	}

	if rule, ok := v.rules.TypeRule(field.Type); ok && !IsEmpty(value) {
		attach(rec, field.Key, rule.Check(value, rec, field.Key))
	}

	if rule, ok := v.rules.CrossFieldRule(field); ok {
		attach(rec, field.Key, rule.Check(value, rec.Get(field.DependsOn), field))
	}
}

func attach(rec *Record, key string, res RuleResult) {
	switch {
	case res.Error != "":
		rec.AddError(key, res.Error)
	case res.Info != "":
		rec.AddInfo(key, res.Info)
	}
}

// ValidateAll validates every record, then flags values of unique fields
// that appear on more than one record. Records are annotated in place.
func (v *RecordValidator) ValidateAll(records []*Record, schema Schema) []*Record {
	for _, rec := range records {
		v.Validate(rec, schema)
	}
	CheckUnique(records, schema)
	return records
}

// CheckUnique annotates every record whose value of a unique field also
// appears on an earlier or later record. Empty values are ignored.
func CheckUnique(records []*Record, schema Schema) {
	for _, field := range schema {
		if !field.Has(ConstraintUnique) {
			continue
		}

		byValue := make(map[string][]*Record)
		var order []string
		for _, rec := range records {
			s, ok := ValueString(rec.Get(field.Key))
			if !ok || s == "" {
				continue
			}
			if _, seen := byValue[s]; !seen {
				order = append(order, s)
			}
			byValue[s] = append(byValue[s], rec)
		}

		for _, s := range order {
			group := byValue[s]
			if len(group) < 2 {
				continue
			}
			for i, rec := range group {
				other := group[0]
				if i == 0 {
					other = group[1]
				}
				rec.AddError(field.Key, fmt.Sprintf("value must be unique; also found on record %s", other.ID))
			}
		}
	}
}

// ValidateHeaders checks that every required field has a column in headers.
// Returns the header index, or an error listing the missing columns.
func ValidateHeaders(headers []string, schema Schema) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	var missing []string

	for _, field := range schema {
		if field.Has(ConstraintRequired) {
			if _, ok := idx[strings.ToLower(field.Key)]; !ok {
				missing = append(missing, field.Key)
			}
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return idx, nil
}

// RecordFromRow builds a record from a delimited row. Headers matching a
// schema key case-insensitively take the schema's spelling; other columns
// keep their cleaned header name.
func RecordFromRow(id string, header, row []string, schema Schema) *Record {
	keys := make(map[string]string, len(schema))
	for _, f := range schema {
		keys[strings.ToLower(f.Key)] = f.Key
	}

	rec := &Record{ID: id, Values: make(map[string]*CellValue, len(header))}
	for pos, h := range header {
		if pos >= len(row) {
			break
		}
		name := CleanCell(h)
		if name == "" {
			continue
		}
		if key, ok := keys[strings.ToLower(name)]; ok {
			name = key
		}
		rec.Values[name] = &CellValue{Value: CleanCell(row[pos])}
	}
	return rec
}
