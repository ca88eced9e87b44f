// Package core provides the merge and validation engines for tabular records.
//
// The package holds all domain logic independent of any transport or
// storage. It is used by the web handlers, the CLI and the job runner
// without modification.
//
// # Records
//
// A [Record] is an id plus a map of field keys to [CellValue]s. Each cell
// carries its raw value and any error or info [Annotation]s attached by
// validation. A [Schema] is the ordered list of [FieldSpec]s that describes
// a sheet; named schemas are kept in a [Registry] as [Blueprint]s.
//
// # Merging
//
// [MergePlanner.Plan] folds duplicate records into one survivor. The first
// record supplies the id; later records overwrite a field only with a
// non-empty value. Merge-exempt keys are stripped from the survivor and the
// other ids are reported as discarded:
//
//	plan, err := core.NewMergePlanner(core.WithExemptKeys("updatedAt")).Plan(records)
//
// # Validation
//
// [RecordValidator.Validate] runs the universal checks (spreadsheet error
// markers, required, enum options), then the type rule from the
// [RuleRegistry] and any cross-field rule such as region-within-country.
// Derivations fill computed fields first. Problems are attached to the
// record as annotations; validation itself never fails.
//
// # Service
//
// [Service] applies both engines to sheets held in a [RecordStore]: merge
// all, merge selected, merge duplicates by key, validate sheet and
// snapshot. Long operations report progress through [ReportProgress].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - MRG001-MRG003: Merge input errors (empty, duplicate ids, missing records)
//   - SCH001-SCH003: Schema, blueprint and sheet lookup errors
//   - DB001-DB007: Database errors
//   - JOB001-JOB004: Job queue errors
//   - RATE001: Rate limiting
package core
