// SPDX-License-Identifier: MPL-2.0

package router

import (
	"fmt"
	"strings"
)

// ValidationError reports a missing required argument or an unmatched
// subcommand. It is terminal for the invocation; the dispatcher has
// already printed the one-line message and contextual help.
type ValidationError struct {
	CommandPath []string
	Message     string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// ExecutionError reports a failure from a command's Init or Run phase.
type ExecutionError struct {
	CommandPath []string
	Err         error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("command '%s' failed: %v", strings.Join(e.CommandPath, " "), e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ParseError reports a grammar-level rejection of the raw invocation,
// before any command-specific dispatch ran. Candidate is the first
// non-flag token, used for best-effort contextual help.
type ParseError struct {
	Candidate string
	Err       error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
