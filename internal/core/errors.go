package core

import "errors"

// Schema and programmer errors. Data-quality problems are never returned as
// errors; they are attached to records as annotations.
var (
	// ErrEmptyInput is returned when a merge is requested for zero records.
	ErrEmptyInput = errors.New("no records to merge")

	// ErrDuplicateRecordID is returned when merge input repeats a record id.
	ErrDuplicateRecordID = errors.New("duplicate record id in merge input")

	// ErrRecordNotFound is returned when selected records are missing from
	// the sheet.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidSchema is returned for empty or malformed field lists.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrUnknownBlueprint is returned when a blueprint key is not registered.
	ErrUnknownBlueprint = errors.New("unknown blueprint")

	// ErrSheetNotFound is returned by stores for unknown sheet ids.
	ErrSheetNotFound = errors.New("sheet not found")
)
