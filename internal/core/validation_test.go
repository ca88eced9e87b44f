package core

import (
	"testing"

	"github.com/JonMunkholm/recordqa/internal/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func employeeSchema() Schema {
	return MustSchema(
		FieldSpec{Key: "id", Type: FieldString, Constraints: []Constraint{ConstraintRequired, ConstraintUnique}},
		FieldSpec{Key: "country", Type: FieldEnum, Options: reference.Default().Countries()},
		FieldSpec{Key: "region", Type: FieldEnum, DependsOn: "country"},
		FieldSpec{Key: "type", Type: FieldEnum, Options: []reference.Option{
			{Value: "EE", Label: "Employee"},
			{Value: "CW", Label: "Contingent Worker"},
		}},
		FieldSpec{Key: "email", Type: FieldString, Constraints: []Constraint{ConstraintRequired, ConstraintUnique}},
		FieldSpec{Key: "date", Type: FieldDate},
		FieldSpec{Key: "salary", Type: FieldNumber},
		FieldSpec{Key: "active", Type: FieldBool},
	)
}

func newValidator() *RecordValidator {
	return NewRecordValidator(DefaultRules(reference.Default()))
}

func messages(as []Annotation) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Message
	}
	return out
}

func TestValidate_CleanRecord(t *testing.T) {
	rec := NewRecord("r1", map[string]any{
		"id": "W-1", "country": "US", "region": "CA", "type": "EE",
		"email": "ada@example.com", "date": "2024-01-15", "salary": "100000", "active": "true",
	})

	newValidator().Validate(rec, employeeSchema())

	assert.False(t, rec.HasErrors())
	for key, cell := range rec.Values {
		assert.Empty(t, cell.Info, "unexpected info on %s", key)
	}
}

func TestValidate_NonShortCircuiting(t *testing.T) {
	rec := NewRecord("r1", map[string]any{"id": "W-1", "email": "a@x.com", "salary": "#VALUE!"})

	newValidator().Validate(rec, employeeSchema())

	errs := messages(rec.Values["salary"].Errors)
	require.Len(t, errs, 2)
	assert.Equal(t, "Cell contains an error value: #VALUE!", errs[0])
	assert.Equal(t, "invalid number format", errs[1])
}

func TestValidate_RequiredField(t *testing.T) {
	rec := NewRecord("r1", map[string]any{"id": "", "email": "a@x.com"})

	newValidator().Validate(rec, employeeSchema())

	assert.Equal(t, []string{"required field is empty"}, messages(rec.Values["id"].Errors))
}

func TestValidate_MissingRequiredKeyCreatesCell(t *testing.T) {
	rec := NewRecord("r1", map[string]any{"id": "W-1"})

	newValidator().Validate(rec, employeeSchema())

	require.Contains(t, rec.Values, "email")
	assert.Equal(t, []string{"required field is empty"}, messages(rec.Values["email"].Errors))
	assert.Nil(t, rec.Get("email"))
}

func TestValidate_TypeRules(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		value     any
		wantError string
		wantInfo  string
	}{
		{"valid iso date", "date", "2024-02-29", "", ""},
		{"us date gets info", "date", "02/29/2024", "", "date is not in ISO format (YYYY-MM-DD)"},
		{"bad date", "date", "31st of never", "invalid date format (use YYYY-MM-DD or similar)", ""},
		{"number string", "salary", "$120,000.00", "", ""},
		{"number value", "salary", 120000.0, "", ""},
		{"bad number", "salary", "lots", "invalid number format", ""},
		{"canonical bool", "active", "false", "", ""},
		{"go bool", "active", true, "", ""},
		{"yes bool", "active", "yes", "", "interpreted as true"},
		{"zero bool", "active", "0", "", "interpreted as false"},
		{"bad bool", "active", "sometimes", "must be yes/no, true/false, or 1/0", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord("r1", map[string]any{"id": "W-1", "email": "a@x.com", tt.key: tt.value})

			newValidator().Validate(rec, employeeSchema())

			cell := rec.Values[tt.key]
			if tt.wantError == "" {
				assert.Empty(t, cell.Errors)
			} else {
				assert.Equal(t, []string{tt.wantError}, messages(cell.Errors))
			}
			if tt.wantInfo == "" {
				assert.Empty(t, cell.Info)
			} else {
				assert.Equal(t, []string{tt.wantInfo}, messages(cell.Info))
			}
		})
	}
}

func TestValidate_FormatChecksDoNotCoerce(t *testing.T) {
	rec := NewRecord("r1", map[string]any{
		"id": "W-1", "email": "a@x.com", "date": "01/15/2024", "salary": "$1,000", "active": "yes",
	})

	newValidator().Validate(rec, employeeSchema())

	assert.Equal(t, "01/15/2024", rec.Get("date"))
	assert.Equal(t, "$1,000", rec.Get("salary"))
	assert.Equal(t, "yes", rec.Get("active"))
}

func TestValidate_CrossFieldRegion(t *testing.T) {
	tests := []struct {
		name      string
		country   any
		region    any
		wantError string
	}{
		{"valid us region", "US", "CA", ""},
		{"invalid us region", "US", "XX", "XX is not a valid region for US"},
		{"full name suggests code", "US", "California", `California is not a valid region for US (did you mean "CA"?)`},
		{"valid canada region", "CA", "ON", ""},
		{"us code under canada", "CA", "TX", "TX is not a valid region for CA"},
		{"country without regions", "GB", "Kent", ""},
		{"region without country", nil, "CA", "region requires a country"},
		{"no region", "US", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord("r1", map[string]any{"id": "W-1", "email": "a@x.com", "country": tt.country, "region": tt.region})

			newValidator().Validate(rec, employeeSchema())

			region := rec.Values["region"]
			if tt.wantError == "" {
				assert.Empty(t, region.Errors)
			} else {
				assert.Equal(t, []string{tt.wantError}, messages(region.Errors))
			}
			// Cross-field results land on the dependent field only.
			assert.Empty(t, rec.Values["country"].Errors)
		})
	}
}

func TestValidate_CrossFieldFollowsDependsOn(t *testing.T) {
	schema := MustSchema(
		FieldSpec{Key: "nation", Type: FieldEnum, Options: reference.Default().Countries()},
		FieldSpec{Key: "state", Type: FieldEnum, DependsOn: "nation"},
		FieldSpec{Key: "region", Type: FieldString},
	)

	rec := NewRecord("r1", map[string]any{"nation": "US", "state": "XX", "country": "CA", "region": "XX"})
	newValidator().Validate(rec, schema)

	assert.Equal(t, []string{"XX is not a valid region for US"}, messages(rec.Values["state"].Errors))
	// region has no DependsOn here, so no cross-field rule runs for it.
	assert.Empty(t, rec.Values["region"].Errors)

	missing := NewRecord("r2", map[string]any{"state": "CA"})
	newValidator().Validate(missing, schema)
	assert.Equal(t, []string{"state requires a nation"}, messages(missing.Values["state"].Errors))
}

func TestValidate_CrossFieldRuleForKey(t *testing.T) {
	rules := DefaultRules(reference.Default())
	var gotSibling any
	rules.RegisterCrossField("plan", crossFieldFunc(func(value, sibling any, field FieldSpec) RuleResult {
		gotSibling = sibling
		if value == "enterprise" && sibling != "annual" {
			return RuleResult{Error: field.Key + " requires annual " + field.DependsOn}
		}
		return RuleResult{}
	}))

	schema := MustSchema(
		FieldSpec{Key: "billing", Type: FieldString},
		FieldSpec{Key: "plan", Type: FieldString, DependsOn: "billing"},
	)
	rec := NewRecord("r1", map[string]any{"billing": "monthly", "plan": "enterprise"})

	NewRecordValidator(rules).Validate(rec, schema)

	assert.Equal(t, "monthly", gotSibling)
	assert.Equal(t, []string{"plan requires annual billing"}, messages(rec.Values["plan"].Errors))
}

type crossFieldFunc func(value, sibling any, field FieldSpec) RuleResult

func (f crossFieldFunc) Check(value, sibling any, field FieldSpec) RuleResult {
	return f(value, sibling, field)
}

func TestValidate_EnumOptions(t *testing.T) {
	rec := NewRecord("r1", map[string]any{"id": "W-1", "email": "a@x.com", "type": "FT"})

	newValidator().Validate(rec, employeeSchema())

	assert.Equal(t, []string{"value must be one of: EE, CW"}, messages(rec.Values["type"].Errors))
}

func TestValidate_UntypedFieldSkipsDispatch(t *testing.T) {
	called := false
	rules := DefaultRules(nil)
	rules.Register(FieldDate, TypeRuleFunc(func(any, *Record, string) RuleResult {
		called = true
		return RuleResult{Error: "should not run"}
	}))

	schema := MustSchema(FieldSpec{Key: "note", Type: FieldString})
	rec := NewRecord("r1", map[string]any{"note": "not a date"})

	NewRecordValidator(rules).Validate(rec, schema)

	assert.False(t, called)
	assert.Empty(t, rec.Values["note"].Errors)
	assert.Empty(t, rec.Values["note"].Info)
}

func TestValidate_UnknownTypeIsNoOp(t *testing.T) {
	schema := MustSchema(FieldSpec{Key: "blob", Type: ParseFieldType("geometry")})
	rec := NewRecord("r1", map[string]any{"blob": "POINT(1 2)"})

	assert.NotPanics(t, func() { newValidator().Validate(rec, schema) })
	assert.False(t, rec.HasErrors())
}

func TestValidate_RuleReceivesRecordAndKey(t *testing.T) {
	rules := NewRuleRegistry()
	rules.Register(FieldNumber, TypeRuleFunc(func(value any, rec *Record, key string) RuleResult {
		if max, ok := rec.Get("max").(float64); ok && value.(float64) > max {
			return RuleResult{Error: key + " exceeds max"}
		}
		return RuleResult{}
	}))

	schema := MustSchema(FieldSpec{Key: "qty", Type: FieldNumber})
	rec := NewRecord("r1", map[string]any{"qty": 12.0, "max": 10.0})

	NewRecordValidator(rules).Validate(rec, schema)

	assert.Equal(t, []string{"qty exceeds max"}, messages(rec.Values["qty"].Errors))
}

func TestValidate_ErrorWinsOverInfo(t *testing.T) {
	rules := NewRuleRegistry()
	rules.Register(FieldString, TypeRuleFunc(func(any, *Record, string) RuleResult {
		return RuleResult{Error: "bad", Info: "note"}
	}))

	schema := MustSchema(FieldSpec{Key: "x", Type: FieldString})
	rec := NewRecord("r1", map[string]any{"x": "v"})

	NewRecordValidator(rules).Validate(rec, schema)

	assert.Equal(t, []string{"bad"}, messages(rec.Values["x"].Errors))
	assert.Empty(t, rec.Values["x"].Info)
}

func TestValidate_PreservesUnknownKeys(t *testing.T) {
	rec := NewRecord("r1", map[string]any{"id": "W-1", "email": "a@x.com", "legacy": "#N/A"})

	newValidator().Validate(rec, employeeSchema())

	assert.Equal(t, "#N/A", rec.Get("legacy"))
	assert.Empty(t, rec.Values["legacy"].Errors)
}

func TestValidate_AccumulatesAcrossRuns(t *testing.T) {
	rec := NewRecord("r1", map[string]any{"id": "W-1", "email": "a@x.com", "salary": "lots"})
	v := newValidator()

	v.Validate(rec, employeeSchema())
	first := rec.ErrorCount()

	v.Validate(rec, employeeSchema())
	assert.Equal(t, 2*first, rec.ErrorCount())

	rec.ResetAnnotations()
	v.Validate(rec, employeeSchema())
	assert.Equal(t, first, rec.ErrorCount())
}

func TestValidate_NilRecord(t *testing.T) {
	assert.Nil(t, newValidator().Validate(nil, employeeSchema()))
}

func TestValidate_Derivation(t *testing.T) {
	schema := MustSchema(
		FieldSpec{Key: "full", Type: FieldString, Constraints: []Constraint{ConstraintComputed}},
		FieldSpec{Key: "first", Type: FieldString},
		FieldSpec{Key: "middle", Type: FieldString},
		FieldSpec{Key: "last", Type: FieldString},
	)
	v := NewRecordValidator(DefaultRules(nil), WithDerivations(FullNameDerivation()))

	rec := NewRecord("r1", map[string]any{"first": "Ada", "middle": "", "last": "Lovelace"})
	v.Validate(rec, schema)

	assert.Equal(t, "Ada Lovelace", rec.Get("full"))
	assert.Equal(t, []string{"full set based on first, middle, last."}, messages(rec.Values["full"].Info))

	kept := NewRecord("r2", map[string]any{"full": "Countess Lovelace", "first": "Ada"})
	v.Validate(kept, schema)
	assert.Equal(t, "Countess Lovelace", kept.Get("full"))
	assert.Empty(t, kept.Values["full"].Info)
}

func TestValidate_DerivationNeedsComputedField(t *testing.T) {
	v := NewRecordValidator(DefaultRules(nil), WithDerivations(FullNameDerivation()))

	undeclared := MustSchema(FieldSpec{Key: "gross", Type: FieldNumber})
	rec := NewRecord("r1", map[string]any{"gross": 100, "first": "Ann", "last": "Lee"})
	v.Validate(rec, undeclared)

	_, ok := rec.Values["full"]
	assert.False(t, ok, "full must not be added when the schema has no such field")
	assert.Len(t, rec.Values, 3)

	plain := MustSchema(FieldSpec{Key: "full", Type: FieldString}, FieldSpec{Key: "first", Type: FieldString})
	rec = NewRecord("r2", map[string]any{"first": "Ann"})
	v.Validate(rec, plain)
	assert.Nil(t, rec.Get("full"))
}

func TestValidateAll_Unique(t *testing.T) {
	records := []*Record{
		NewRecord("r1", map[string]any{"id": "W-1", "email": "dup@x.com"}),
		NewRecord("r2", map[string]any{"id": "W-2", "email": "solo@x.com"}),
		NewRecord("r3", map[string]any{"id": "W-3", "email": "dup@x.com"}),
	}

	newValidator().ValidateAll(records, employeeSchema())

	assert.Equal(t, []string{"value must be unique; also found on record r3"}, messages(records[0].Values["email"].Errors))
	assert.Empty(t, records[1].Values["email"].Errors)
	assert.Equal(t, []string{"value must be unique; also found on record r1"}, messages(records[2].Values["email"].Errors))
}

func TestNewSchema(t *testing.T) {
	_, err := NewSchema()
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = NewSchema(FieldSpec{Key: ""})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = NewSchema(FieldSpec{Key: "a"}, FieldSpec{Key: "a"})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = NewSchema(FieldSpec{Key: "state", DependsOn: "nation"})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = NewSchema(FieldSpec{Key: "state", DependsOn: "state"})
	assert.ErrorIs(t, err, ErrInvalidSchema)

	s, err := NewSchema(FieldSpec{Key: "a"}, FieldSpec{Key: "b", MergeExempt: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, s.Keys())
	assert.Equal(t, []string{"b"}, s.ExemptKeys())
}

func TestParseFieldType(t *testing.T) {
	tests := map[string]FieldType{
		"string":          FieldString,
		"text":            FieldString,
		"enum":            FieldEnum,
		"date":            FieldDate,
		"number":          FieldNumber,
		"numeric":         FieldNumber,
		"boolean":         FieldBool,
		"bool":            FieldBool,
		"reference-field": FieldReference,
		" Boolean ":       FieldBool,
		"geometry":        FieldUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseFieldType(in), in)
	}
	assert.Equal(t, "boolean", FieldBool.String())
}

func TestValidateHeaders(t *testing.T) {
	_, err := ValidateHeaders([]string{"id", "Country"}, employeeSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")

	idx, err := ValidateHeaders([]string{"ID", "Email"}, employeeSchema())
	require.NoError(t, err)
	assert.Equal(t, 1, idx["email"])
}

func TestRecordFromRow(t *testing.T) {
	schema := MustSchema(FieldSpec{Key: "updatedAt", Type: FieldDate}, FieldSpec{Key: "email"})

	rec := RecordFromRow("r1", []string{"UPDATEDAT", "Email", "Extra"}, []string{"2024-01-01", `="a@x.com"`, "keep"}, schema)

	assert.Equal(t, "2024-01-01", rec.Get("updatedAt"))
	assert.Equal(t, "a@x.com", rec.Get("email"))
	assert.Equal(t, "keep", rec.Get("Extra"))
}
