package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/casedb/casedb"
	"github.com/arthur-debert/casedb/casedb/remote"
	"github.com/arthur-debert/casedb/types"
)

// CLIError represents a user-friendly CLI error with context and suggestions
type CLIError struct {
	Operation   string   // The operation that failed (e.g., "filter cases", "list cases")
	Cause       string   // The underlying cause (e.g., "case API rejected the request")
	Details     string   // Additional technical details
	Suggestions []string // Helpful suggestions for the user
	Underlying  error    // Original error for debugging
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var msg strings.Builder

	// Start with operation context
	if e.Operation != "" {
		msg.WriteString(fmt.Sprintf("Failed to %s", e.Operation))
	} else {
		msg.WriteString("Operation failed")
	}

	// Add the main cause
	if e.Cause != "" {
		msg.WriteString(fmt.Sprintf(": %s", e.Cause))
	}

	// Add technical details if available
	if e.Details != "" {
		msg.WriteString(fmt.Sprintf(" (%s)", e.Details))
	}

	// Add suggestions
	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return msg.String()
}

// Unwrap returns the underlying error for error chain compatibility
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewConfigError creates an error for configuration issues
func NewConfigError(operation, issue string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("configuration error: %s", issue),
		Suggestions: suggestions,
	}
}

// NewFilterError creates an error for a filter request the pipeline rejected
func NewFilterError(operation, message string, fatal bool) *CLIError {
	if fatal {
		return &CLIError{
			Operation: operation,
			Cause:     "case store is inconsistent",
			Details:   message,
			Suggestions: []string{
				"Retry the request; the case API may have changed during evaluation",
				CommonSuggestions.CheckLogs,
			},
		}
	}
	return &CLIError{
		Operation: operation,
		Cause:     message,
		Suggestions: []string{
			"Filters are predicates on a case, e.g. --expr \"[@case_type='patient']\"",
			CommonSuggestions.CheckAuth,
		},
	}
}

// WrapError wraps an existing error with CLI-friendly context
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}

	// If it's already a CLIError, just update the operation
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Operation == "" {
			cliErr.Operation = operation
		}
		return cliErr
	}

	e := &CLIError{
		Operation:  operation,
		Cause:      "case API request failed",
		Details:    err.Error(),
		Underlying: err,
	}

	var statusErr *remote.StatusError
	var payloadErr *types.PayloadError
	switch {
	case errors.Is(err, remote.ErrOAuthNotSupported), errors.Is(err, remote.ErrPasswordAuthNotSupported):
		e.Cause = "unsupported API auth"
		e.Suggestions = []string{"Use --auth-type cookie with a session key, or none"}
	case errors.As(err, &statusErr):
		e.Cause = fmt.Sprintf("case API answered %d", statusErr.StatusCode)
		e.Suggestions = []string{CommonSuggestions.CheckAuth, CommonSuggestions.CheckURL}
	case errors.As(err, &payloadErr):
		e.Cause = "case API returned a malformed case"
		e.Suggestions = []string{CommonSuggestions.CheckURL}
	case casedb.IsFatal(err):
		e.Cause = "case store is inconsistent"
		e.Suggestions = []string{CommonSuggestions.CheckLogs}
	default:
		e.Suggestions = []string{CommonSuggestions.CheckURL, CommonSuggestions.CheckConfig}
	}
	return e
}

// Common error messages and suggestions
var (
	CommonSuggestions = struct {
		CheckURL    string
		CheckAuth   string
		CheckConfig string
		CheckLogs   string
	}{
		CheckURL:    "Verify --case-url (or --fixture) points at the case API",
		CheckAuth:   "Check --auth-type and --auth-key (CASEDB_AUTH_KEY)",
		CheckConfig: "Check your configuration file or environment variables",
		CheckLogs:   "Run with --log-level debug and inspect the casedb log",
	}
)
