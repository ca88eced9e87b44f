package core

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/recordqa/internal/reference"
)

// FieldType represents the declared data type of a field.
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldString
	FieldEnum
	FieldDate
	FieldNumber
	FieldBool
	FieldReference
)

var fieldTypeNames = map[FieldType]string{
	FieldString:    "string",
	FieldEnum:      "enum",
	FieldDate:      "date",
	FieldNumber:    "number",
	FieldBool:      "boolean",
	FieldReference: "reference-field",
}

// String returns the wire name of the type ("boolean", "date", ...).
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseFieldType converts a wire name to a FieldType.
// Unrecognized names return FieldUnknown; validation treats those as a no-op.
func ParseFieldType(s string) FieldType {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "bool":
		return FieldBool
	case "numeric":
		return FieldNumber
	case "text":
		return FieldString
	}
	for t, name := range fieldTypeNames {
		if name == s {
			return t
		}
	}
	return FieldUnknown
}

func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *FieldType) UnmarshalText(b []byte) error {
	*t = ParseFieldType(string(b))
	return nil
}

// Constraint is a declared restriction on a field's values.
type Constraint string

const (
	ConstraintRequired Constraint = "required"
	ConstraintUnique   Constraint = "unique"
	ConstraintComputed Constraint = "computed"
)

// FieldSpec describes one field of a record shape.
type FieldSpec struct {
	Key         string             `json:"key"`
	Label       string             `json:"label,omitempty"`
	Type        FieldType          `json:"type"`
	Constraints []Constraint       `json:"constraints,omitempty"`
	Options     []reference.Option `json:"options,omitempty"` // Valid values for FieldEnum

	// MergeExempt marks bookkeeping fields. The merge copies them verbatim
	// when present and strips them from the survivor.
	MergeExempt bool `json:"mergeExempt,omitempty"`

	// DependsOn names the sibling field a cross-field rule reads.
	DependsOn string `json:"dependsOn,omitempty"`
}

// Has reports whether the field declares the constraint.
func (f FieldSpec) Has(c Constraint) bool {
	for _, fc := range f.Constraints {
		if fc == c {
			return true
		}
	}
	return false
}

// Schema is an ordered list of field specs with unique keys.
type Schema []FieldSpec

// NewSchema validates the field list and returns it as a Schema.
// Fails with ErrInvalidSchema on an empty list, an empty or duplicate key,
// or a DependsOn that names no other field.
func NewSchema(fields ...FieldSpec) (Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidSchema)
	}

	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f.Key) == "" {
			return nil, fmt.Errorf("%w: field %d has no key", ErrInvalidSchema, i)
		}
		if seen[f.Key] {
			return nil, fmt.Errorf("%w: duplicate field key %q", ErrInvalidSchema, f.Key)
		}
		seen[f.Key] = true
	}

	for _, f := range fields {
		if f.DependsOn == "" {
			continue
		}
		if f.DependsOn == f.Key || !seen[f.DependsOn] {
			return nil, fmt.Errorf("%w: field %q depends on unknown field %q", ErrInvalidSchema, f.Key, f.DependsOn)
		}
	}

	return Schema(fields), nil
}

// MustSchema is like NewSchema but panics on error.
// Intended for package-level blueprint definitions.
func MustSchema(fields ...FieldSpec) Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Field returns the FieldSpec for key.
func (s Schema) Field(key string) (FieldSpec, bool) {
	for _, f := range s {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Keys returns the field keys in schema order.
func (s Schema) Keys() []string {
	keys := make([]string, len(s))
	for i, f := range s {
		keys[i] = f.Key
	}
	return keys
}

// ExemptKeys returns the keys of merge-exempt fields.
func (s Schema) ExemptKeys() []string {
	var keys []string
	for _, f := range s {
		if f.MergeExempt {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// Annotation is a non-fatal message attached to a field.
type Annotation struct {
	Message string `json:"message"`
}

// CellValue is one field value of a record plus its annotations.
// A nil Value is null.
type CellValue struct {
	Value  any          `json:"value"`
	Errors []Annotation `json:"errors,omitempty"`
	Info   []Annotation `json:"info,omitempty"`
}

// Clone returns a copy with independent annotation slices.
func (c *CellValue) Clone() *CellValue {
	if c == nil {
		return nil
	}
	out := &CellValue{Value: c.Value}
	if len(c.Errors) > 0 {
		out.Errors = append([]Annotation(nil), c.Errors...)
	}
	if len(c.Info) > 0 {
		out.Info = append([]Annotation(nil), c.Info...)
	}
	return out
}

// Record is one row of entity data. Values may carry keys that are not in
// the current schema; both engines leave those untouched.
type Record struct {
	ID     string                `json:"id"`
	Values map[string]*CellValue `json:"values"`
}

// NewRecord builds a record from plain values.
func NewRecord(id string, values map[string]any) *Record {
	r := &Record{ID: id, Values: make(map[string]*CellValue, len(values))}
	for k, v := range values {
		r.Values[k] = &CellValue{Value: v}
	}
	return r
}

// Get returns the raw value for key, or nil if absent.
func (r *Record) Get(key string) any {
	if r == nil || r.Values == nil {
		return nil
	}
	if c, ok := r.Values[key]; ok && c != nil {
		return c.Value
	}
	return nil
}

// Set stores a value for key, keeping any existing annotations.
func (r *Record) Set(key string, value any) {
	if r.Values == nil {
		r.Values = make(map[string]*CellValue)
	}
	if c, ok := r.Values[key]; ok && c != nil {
		c.Value = value
		return
	}
	r.Values[key] = &CellValue{Value: value}
}

// cell returns the container for key, creating an empty one if needed.
func (r *Record) cell(key string) *CellValue {
	if r.Values == nil {
		r.Values = make(map[string]*CellValue)
	}
	c, ok := r.Values[key]
	if !ok || c == nil {
		c = &CellValue{}
		r.Values[key] = c
	}
	return c
}

// AddError appends an error annotation to key.
func (r *Record) AddError(key, message string) {
	c := r.cell(key)
	c.Errors = append(c.Errors, Annotation{Message: message})
}

// AddInfo appends an info annotation to key.
func (r *Record) AddInfo(key, message string) {
	c := r.cell(key)
	c.Info = append(c.Info, Annotation{Message: message})
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{ID: r.ID, Values: make(map[string]*CellValue, len(r.Values))}
	for k, c := range r.Values {
		out.Values[k] = c.Clone()
	}
	return out
}

// ResetAnnotations clears every annotation on the record.
func (r *Record) ResetAnnotations() {
	for _, c := range r.Values {
		if c == nil {
			continue
		}
		c.Errors = nil
		c.Info = nil
	}
}

// ErrorCount returns the total number of error annotations.
func (r *Record) ErrorCount() int {
	n := 0
	for _, c := range r.Values {
		if c != nil {
			n += len(c.Errors)
		}
	}
	return n
}

// HasErrors reports whether any field carries an error annotation.
func (r *Record) HasErrors() bool {
	return r.ErrorCount() > 0
}

// MergePlan is the outcome of reconciling duplicate records.
type MergePlan struct {
	Survivor  *Record  `json:"survivor"`
	Discarded []string `json:"discarded"`
}

// ListOptions selects a page of records from a store.
type ListOptions struct {
	IDs      []string // Only these records, if non-empty
	Page     int      // 1-based page number
	PageSize int
}

// Snapshot is a labeled point-in-time copy of a sheet's records.
type Snapshot struct {
	ID        string `json:"id"`
	SheetID   string `json:"sheetId"`
	Label     string `json:"label"`
	Records   int    `json:"records"`
	CreatedAt string `json:"createdAt"`
}
