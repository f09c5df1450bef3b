package streamledger

import (
	"errors"
	"fmt"

	"github.com/xraph/streamledger/batch"
	"github.com/xraph/streamledger/plugin"
	"github.com/xraph/streamledger/settlement"
	"github.com/xraph/streamledger/stream"
	"github.com/xraph/streamledger/types"
)

// Sentinel errors for common failure scenarios. Domain errors are
// declared in their owning packages and aliased here so callers can
// match everything through the root import; aliasing preserves
// errors.Is identity.
var (
	// General errors
	ErrNotFound      = errors.New("streamledger: not found")
	ErrAlreadyExists = errors.New("streamledger: already exists")
	ErrInvalidInput  = errors.New("streamledger: invalid input")

	// Arithmetic errors (fatal: configuration or data problem, retrying
	// cannot help)
	ErrAmountOverflow = types.ErrAmountOverflow
	ErrAmountNegative = types.ErrAmountNegative
	ErrInvalidAmount  = types.ErrInvalidAmount

	// Stream errors
	ErrStreamNotFound  = errors.New("streamledger: stream not found")
	ErrInvalidRate     = stream.ErrInvalidRate
	ErrInvalidWindow   = stream.ErrInvalidWindow
	ErrInvalidParty    = stream.ErrInvalidParty
	ErrInvariantBreach = stream.ErrInvariantBreach

	// Settlement errors (recoverable: the stream state is unchanged and
	// the same call may succeed later)
	ErrReceiptNotFound   = errors.New("streamledger: receipt not found")
	ErrNothingDue        = settlement.ErrNothingDue
	ErrStreamPaused      = settlement.ErrStreamPaused
	ErrInvalidTransition = settlement.ErrInvalidTransition

	// Batch errors
	ErrBatchEmpty    = batch.ErrBatchEmpty
	ErrBatchTooLarge = batch.ErrBatchTooLarge

	// Transfer provider errors
	ErrInsufficientAllowance = plugin.ErrInsufficientAllowance
	ErrTransferFailed        = plugin.ErrTransferFailed

	// Store errors
	ErrStoreNotReady     = errors.New("streamledger: store not ready")
	ErrStoreClosed       = errors.New("streamledger: store is closed")
	ErrTransactionFailed = errors.New("streamledger: transaction failed")
	ErrMigrationFailed   = errors.New("streamledger: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("streamledger: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "streamledger: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("streamledger: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrStreamNotFound) ||
		errors.Is(err, ErrReceiptNotFound)
}

// IsValidation returns true if the error is a creation or input
// validation failure.
func IsValidation(err error) bool {
	var ve ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidParty) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsFatal returns true for errors that indicate corrupted state or an
// unrepresentable computation. A fatal error must surface to the caller
// unchanged; retrying the operation cannot succeed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAmountOverflow) ||
		errors.Is(err, ErrAmountNegative) ||
		errors.Is(err, ErrInvariantBreach)
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried. Settlement state errors qualify: the stream was left
// unchanged and conditions may change.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNothingDue) ||
		errors.Is(err, ErrStreamPaused) ||
		errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrTransferFailed)
}
