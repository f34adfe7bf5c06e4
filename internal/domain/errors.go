package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means no enabled indicator produced a score.
	ErrInsufficientData = errors.New("insufficient data: no indicator produced a score")

	// ErrMarketDataUnavailable is a transient market-data failure. Callers
	// degrade the signal instead of failing.
	ErrMarketDataUnavailable = errors.New("market data temporarily unavailable")

	// ErrUnknownAsset means the provider does not know the asset; it is a
	// configuration problem on the bot.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrStateCorrupted is returned by stores when a persisted confirmation
	// record cannot be decoded.
	ErrStateCorrupted = errors.New("persisted state corrupted")

	// ErrBotNotFound is returned when a bot ID has no configuration.
	ErrBotNotFound = errors.New("bot not found")

	// ErrEvaluationInProgress is returned when a second trigger arrives for a
	// bot whose evaluation is still running. The trigger is dropped.
	ErrEvaluationInProgress = errors.New("evaluation already in progress")
)

// ConfigurationError reports invalid bot or indicator configuration. It is
// raised at configuration time and never reaches evaluation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigurationError with a formatted reason.
func NewConfigError(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ExecutionFailureKind classifies a failed execution call.
type ExecutionFailureKind string

const (
	// ExecRejected is a definitive rejection before any capital moved.
	ExecRejected ExecutionFailureKind = "rejected"
	// ExecExchangeError is an exchange-side error with unknown fill state.
	ExecExchangeError ExecutionFailureKind = "exchange_error"
	// ExecTimeout is a timed-out call with unknown fill state.
	ExecTimeout ExecutionFailureKind = "timeout"
)

// ExecutionError is the typed failure returned by executors.
type ExecutionError struct {
	Kind    ExecutionFailureKind
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution %s: %s", e.Kind, e.Message)
}

// NeedsReconciliation reports whether the order may have been filled despite
// the failure.
func (e *ExecutionError) NeedsReconciliation() bool {
	return e.Kind != ExecRejected
}

// AsExecutionError extracts an ExecutionError from err. Untyped errors are
// reported as exchange errors since their fill state is unknown.
func AsExecutionError(err error) *ExecutionError {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ExecutionError{Kind: ExecTimeout, Message: err.Error()}
	}
	return &ExecutionError{Kind: ExecExchangeError, Message: err.Error()}
}
