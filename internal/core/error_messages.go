// Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// Job failures and API errors carry these codes so users can quote them.
//
// Error codes are grouped by category:
//
// # Merge Errors (MRG001-MRG099)
//
//	MRG001 - Nothing to merge: No records were selected
//	         Action: Select at least one record and retry
//	         Sentinel: ErrEmptyInput
//
//	MRG002 - Duplicate selection: The same record was selected twice
//	         Action: Refresh the sheet and reselect the records
//	         Sentinel: ErrDuplicateRecordID
//
//	MRG003 - Missing records: Selected records are no longer in the sheet
//	         Action: Refresh the sheet and reselect the records
//	         Sentinel: ErrRecordNotFound
//
// # Schema Errors (SCH001-SCH099)
//
//	SCH001 - Invalid schema: The sheet's field configuration is malformed
//	         Action: Check that every field has a unique key
//	         Sentinel: ErrInvalidSchema
//
//	SCH002 - Unknown blueprint: The requested sheet blueprint does not exist
//	         Action: Verify the blueprint name
//	         Sentinel: ErrUnknownBlueprint
//
//	SCH003 - Sheet not found: The sheet does not exist
//	         Action: Verify the sheet ID
//	         Sentinel: ErrSheetNotFound
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key: A record with this ID already exists
//	DB004 - Connection refused: Unable to connect to database
//	DB005 - Connection reset: Database connection was interrupted
//	DB006 - Timeout: Operation timed out
//	DB007 - Deadlock: Database was busy with conflicting operations
//
// # Job Errors (JOB001-JOB099)
//
//	JOB001 - System busy: Too many jobs in progress
//	         Patterns: "too many concurrent jobs"
//
//	JOB002 - Job not found: The job does not exist or has expired
//	         Patterns: "job not found"
//
//	JOB003 - Request cancelled: Request was cancelled
//	         Patterns: "context canceled"
//
//	JOB004 - Request timeout: Request timed out
//	         Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no sentinel or pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// Sentinels are checked first with errors.Is, then patterns are matched
// case-insensitively using strings.Contains. The first match wins.

package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

var sentinelMessages = []sentinelMessage{
	{
		err: ErrEmptyInput,
		msg: UserMessage{
			Message: "No records were selected to merge",
			Action:  "Select at least one record and retry",
			Code:    "MRG001",
		},
	},
	{
		err: ErrDuplicateRecordID,
		msg: UserMessage{
			Message: "The same record was selected more than once",
			Action:  "Refresh the sheet and reselect the records",
			Code:    "MRG002",
		},
	},
	{
		err: ErrRecordNotFound,
		msg: UserMessage{
			Message: "Some selected records are no longer in the sheet",
			Action:  "Refresh the sheet and reselect the records",
			Code:    "MRG003",
		},
	},
	{
		err: ErrInvalidSchema,
		msg: UserMessage{
			Message: "The sheet's field configuration is malformed",
			Action:  "Check that every field has a unique, non-empty key",
			Code:    "SCH001",
		},
	},
	{
		err: ErrUnknownBlueprint,
		msg: UserMessage{
			Message: "The requested sheet blueprint does not exist",
			Action:  "Verify the blueprint name",
			Code:    "SCH002",
		},
	},
	{
		err: ErrSheetNotFound,
		msg: UserMessage{
			Message: "The sheet does not exist",
			Action:  "Verify the sheet ID",
			Code:    "SCH003",
		},
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// More specific patterns must come before general ones.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Refresh the sheet and retry",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "too many concurrent jobs",
		msg: UserMessage{
			Message: "Too many jobs in progress",
			Action:  "Please wait a moment and try again",
			Code:    "JOB001",
		},
	},
	{
		pattern: "job not found",
		msg: UserMessage{
			Message: "Job not found",
			Action:  "The job may have expired. Please start a new one",
			Code:    "JOB002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "JOB003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller selection or try again later",
			Code:    "JOB004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller selection or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Sentinel errors are matched with errors.Is before falling back to
// case-insensitive pattern matching on the error text.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error maps to a specific message rather
// than the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
