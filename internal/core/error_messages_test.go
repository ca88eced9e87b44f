package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "empty merge input",
			err:         ErrEmptyInput,
			wantCode:    "MRG001",
			wantMessage: "No records were selected to merge",
		},
		{
			name:        "wrapped sentinel still matches",
			err:         fmt.Errorf("merge sheet us_0001: %w", ErrEmptyInput),
			wantCode:    "MRG001",
			wantMessage: "No records were selected to merge",
		},
		{
			name:        "missing selected records",
			err:         fmt.Errorf("merge selected: %w: r9", ErrRecordNotFound),
			wantCode:    "MRG003",
			wantMessage: "Some selected records are no longer in the sheet",
		},
		{
			name:        "invalid schema",
			err:         fmt.Errorf("%w: duplicate field key %q", ErrInvalidSchema, "id"),
			wantCode:    "SCH001",
			wantMessage: "The sheet's field configuration is malformed",
		},
		{
			name:        "sheet not found",
			err:         fmt.Errorf("load schema: %w", ErrSheetNotFound),
			wantCode:    "SCH003",
			wantMessage: "The sheet does not exist",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "deadline exceeded beats generic timeout",
			err:         fmt.Errorf("list records: %w", context.DeadlineExceeded),
			wantCode:    "JOB004",
			wantMessage: "Request timed out",
		},
		{
			name:        "too many jobs",
			err:         errors.New("too many concurrent jobs, please try again later"),
			wantCode:    "JOB001",
			wantMessage: "Too many jobs in progress",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrEmptyInput)

	expected := "No records were selected to merge (Code: MRG001). Select at least one record and retry"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"sentinel is user facing", ErrUnknownBlueprint, true},
		{"known pattern is user facing", errors.New("duplicate key"), true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
