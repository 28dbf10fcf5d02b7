// pkg/eos_err/classification.go
//
// Error classification with exit codes for the autocommit pipeline.

package eos_err

import (
	"fmt"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// ErrorCategory classifies errors for appropriate handling
type ErrorCategory int

const (
	// CategorySystem - OS/filesystem issues (exit 1)
	CategorySystem ErrorCategory = iota
	// CategoryConfiguration - missing credentials or invalid settings (exit 2)
	CategoryConfiguration
	// CategoryRepository - git repository, staging, commit and push failures (exit 1)
	CategoryRepository
	// CategoryGeneration - message generation transport or parse failures (exit 1)
	CategoryGeneration
	// CategoryUser - User cancelled/interrupted (exit 130)
	CategoryUser
	// CategoryInternal - Bugs in autocommit itself (exit 3)
	CategoryInternal
	// CategoryDependency - Missing dependencies such as the git binary (exit 1)
	CategoryDependency
)

// String returns the label used in logs and telemetry.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryConfiguration:
		return "configuration"
	case CategoryRepository:
		return "repository"
	case CategoryGeneration:
		return "generation"
	case CategoryUser:
		return "user"
	case CategoryInternal:
		return "internal"
	case CategoryDependency:
		return "dependency"
	default:
		return "system"
	}
}

// ClassifiedError wraps an error with category and remediation info
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Remediation []string
}

// Error implements the error interface. The message stays on one line so it
// composes with wrapping; Describe renders the remediation steps.
func (e *ClassifiedError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// Describe renders the error with its remediation steps for terminal output.
func (e *ClassifiedError) Describe() string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}
	return sb.String()
}

// ExitCode returns the appropriate exit code for this error category
func (e *ClassifiedError) ExitCode() int {
	switch e.Category {
	case CategoryUser:
		return 130 // Standard for SIGINT (Ctrl-C)
	case CategoryConfiguration:
		return 2
	case CategoryInternal:
		return 3
	default:
		return 1
	}
}

// GetExitCode extracts exit code from any error
// Returns 0 for nil, appropriate code for classified errors, 1 for others
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var classified *ClassifiedError
	if cerr.As(err, &classified) {
		return classified.ExitCode()
	}

	return 1
}

// CategoryOf returns the category of the first classified error in the chain,
// or CategorySystem when none is present.
func CategoryOf(err error) ErrorCategory {
	var classified *ClassifiedError
	if cerr.As(err, &classified) {
		return classified.Category
	}
	return CategorySystem
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}
	return CategoryOf(err) == category
}

// Describe returns the remediation-aware rendering of err when it is
// classified, and err.Error() otherwise.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var classified *ClassifiedError
	if cerr.As(err, &classified) {
		msg := err.Error()
		if len(classified.Remediation) == 0 {
			return msg
		}
		var sb strings.Builder
		sb.WriteString(msg)
		sb.WriteString("\n\nHow to fix:")
		for i, step := range classified.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
		return sb.String()
	}
	return err.Error()
}

// NewConfigurationError creates an error for missing or invalid settings
func NewConfigurationError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryConfiguration,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewRepositoryError creates an error for git repository operations
func NewRepositoryError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryRepository,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewGenerationError creates an error for commit message generation failures
func NewGenerationError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryGeneration,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

// NewDependencyError creates an error for missing dependencies
func NewDependencyError(dependency, operation string, remediation ...string) error {
	return &ClassifiedError{
		Category: CategoryDependency,
		Message: fmt.Sprintf("%s is required for %s but not found",
			dependency, operation),
		Remediation: remediation,
	}
}

// NewInternalError creates an error for autocommit bugs
func NewInternalError(message string, cause error) error {
	return &ClassifiedError{
		Category: CategoryInternal,
		Message:  message,
		Cause:    cause,
		Remediation: []string{
			"This is likely a bug in autocommit",
			"Rerun with --log-level debug and include the log when reporting it",
		},
	}
}

// NewUserCancelledError creates an error for user-initiated cancellation
func NewUserCancelledError(operation string) error {
	return &ClassifiedError{
		Category:    CategoryUser,
		Message:     fmt.Sprintf("operation cancelled by user: %s", operation),
		Remediation: []string{"Run the command again to retry"},
	}
}

// IsRetryable determines if an error represents a transient condition
// that might succeed on retry
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var classified *ClassifiedError
	if cerr.As(err, &classified) {
		switch classified.Category {
		case CategoryGeneration:
			return true
		case CategoryConfiguration, CategoryDependency, CategoryUser, CategoryInternal:
			return false
		}
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "try again") {
		return true
	}

	// Default to not retryable (fail-fast principle)
	return false
}
