// Package errors provides error handling for metagen.
//
// This package re-exports github.com/cockroachdb/errors so every package
// creates and wraps errors the same way:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints ("run `metagen targets` to list targets")
//   - Marks, so a cause can be matched against several sentinels
//
// Usage:
//
//	// Wrap with context
//	if err := tr.Translate(prog); err != nil {
//	    return errors.Wrapf(err, "translate %s", name)
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "check the Type.Default entry")
//
//	// Check errors
//	if errors.Is(err, target.ErrNotFound) {
//	    // handle missing target
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"strings"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New           = crdb.New
	Newf          = crdb.Newf
	Wrap          = crdb.Wrap
	Wrapf         = crdb.Wrapf
	WithStack     = crdb.WithStack
	WithMessage   = crdb.WithMessage
	WithMessagef  = crdb.WithMessagef
	Mark          = crdb.Mark
	CombineErrors = crdb.CombineErrors
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to an error, if any.
var GetStack = crdb.GetReportableStackTrace

// AssertionFailedf reports a broken internal invariant.
var AssertionFailedf = crdb.AssertionFailedf

// Common sentinel errors shared across packages.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates a requested file or definition does not exist
	ErrNotFound = New("not found")

	// ErrInvalidInput indicates a malformed document (AST, target, tags)
	ErrInvalidInput = New("invalid input")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidInputError checks if an error is or wraps ErrInvalidInput
func IsInvalidInputError(err error) bool {
	return err != nil && Is(err, ErrInvalidInput)
}

// UserMessage renders an error for terminal output: the message followed by
// any hints, one per line.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(err.Error())
	for _, hint := range GetAllHints(err) {
		sb.WriteString("\n  hint: ")
		sb.WriteString(hint)
	}
	return sb.String()
}
