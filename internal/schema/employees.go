package schema

import (
	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/reference"
)

var employeeTypes = []reference.Option{
	{Value: "EE", Label: "Employee"},
	{Value: "CW", Label: "Contingent worker"},
}

// EmployeeFields defines the columns of an employee roster sheet.
// Region options are resolved per country by the region rule, so the
// field carries none of its own.
var EmployeeFields = core.MustSchema(
	core.FieldSpec{Key: "id", Label: "Employee ID", Type: core.FieldString, Constraints: []core.Constraint{core.ConstraintRequired, core.ConstraintUnique}},
	core.FieldSpec{Key: "country", Label: "Country", Type: core.FieldEnum, Options: reference.Default().Countries()},
	core.FieldSpec{Key: "region", Label: "Region", Type: core.FieldEnum, DependsOn: "country"},
	core.FieldSpec{Key: "full", Label: "Full name", Type: core.FieldString, Constraints: []core.Constraint{core.ConstraintComputed}},
	core.FieldSpec{Key: "first", Label: "First name", Type: core.FieldString, Constraints: []core.Constraint{core.ConstraintRequired}},
	core.FieldSpec{Key: "middle", Label: "Middle name", Type: core.FieldString},
	core.FieldSpec{Key: "last", Label: "Last name", Type: core.FieldString, Constraints: []core.Constraint{core.ConstraintRequired}},
	core.FieldSpec{Key: "type", Label: "Worker type", Type: core.FieldEnum, Options: employeeTypes, Constraints: []core.Constraint{core.ConstraintRequired}},
	core.FieldSpec{Key: "email", Label: "Email", Type: core.FieldString, Constraints: []core.Constraint{core.ConstraintRequired, core.ConstraintUnique}},
	core.FieldSpec{Key: "date", Label: "Start date", Type: core.FieldDate},
	core.FieldSpec{Key: "title", Label: "Title", Type: core.FieldString},
	core.FieldSpec{Key: "company", Label: "Company", Type: core.FieldString, Constraints: []core.Constraint{core.ConstraintRequired}},
	core.FieldSpec{Key: "location", Label: "Location", Type: core.FieldString},
	core.FieldSpec{Key: "updatedAt", Label: "Updated", Type: core.FieldDate, MergeExempt: true},
)

// PayrollFields defines the columns of a payroll export.
var PayrollFields = core.MustSchema(
	core.FieldSpec{Key: "employeeId", Label: "Employee ID", Type: core.FieldReference, Constraints: []core.Constraint{core.ConstraintRequired}},
	core.FieldSpec{Key: "period", Label: "Pay period", Type: core.FieldDate, Constraints: []core.Constraint{core.ConstraintRequired}},
	core.FieldSpec{Key: "gross", Label: "Gross pay", Type: core.FieldNumber, Constraints: []core.Constraint{core.ConstraintRequired}},
	core.FieldSpec{Key: "net", Label: "Net pay", Type: core.FieldNumber},
	core.FieldSpec{Key: "currency", Label: "Currency", Type: core.FieldEnum, Options: []reference.Option{
		{Value: "USD", Label: "US dollar"},
		{Value: "CAD", Label: "Canadian dollar"},
		{Value: "EUR", Label: "Euro"},
		{Value: "GBP", Label: "Pound sterling"},
	}},
	core.FieldSpec{Key: "bonus", Label: "Bonus eligible", Type: core.FieldBool},
	core.FieldSpec{Key: "country", Label: "Country", Type: core.FieldEnum, Options: reference.Default().Countries()},
	core.FieldSpec{Key: "region", Label: "Region", Type: core.FieldEnum, DependsOn: "country"},
	core.FieldSpec{Key: "updatedAt", Label: "Updated", Type: core.FieldDate, MergeExempt: true},
)

// Builtin returns the blueprints compiled into the binary.
func Builtin() []core.Blueprint {
	return []core.Blueprint{
		{Key: "employees", Label: "Employees", Schema: EmployeeFields},
		{Key: "payroll", Label: "Payroll", Schema: PayrollFields},
	}
}

// Default returns a registry holding the built-in blueprints.
func Default() (*core.Registry, error) {
	return core.NewRegistry(Builtin()...)
}
