package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them.
var (
	// ErrUnsupportedEnvironment indicates the host lacks a feature the variant needs.
	ErrUnsupportedEnvironment = errors.New("engine not supported on this host")

	// ErrProtocolDesync indicates an engine line that matches no pending request.
	ErrProtocolDesync = errors.New("engine protocol desync")

	// ErrInvalidState indicates a session operation illegal in its current state.
	ErrInvalidState = errors.New("invalid engine session state")

	// ErrAnalysisTimeout indicates a search produced no bestmove within its bound.
	ErrAnalysisTimeout = errors.New("engine analysis timed out")

	// ErrEngineUnavailable indicates worker spawn, handshake or process failure.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrSearchCanceled is the terminal error of a search ended by Stop or Shutdown.
	ErrSearchCanceled = errors.New("engine search canceled")

	// ErrSuperseded is returned to a selection that lost to a later one.
	ErrSuperseded = errors.New("engine selection superseded")

	// ErrUnknownEngine indicates an engine name with no variant.
	ErrUnknownEngine = errors.New("unknown engine")
)

// UnsupportedEnvironmentError names the variant the host cannot run.
type UnsupportedEnvironmentError struct {
	Engine string
}

func (e *UnsupportedEnvironmentError) Error() string {
	return fmt.Sprintf("engine %s requires a CPU feature this host lacks", e.Engine)
}

// Is returns true if the target error is ErrUnsupportedEnvironment
func (e *UnsupportedEnvironmentError) Is(target error) bool {
	return target == ErrUnsupportedEnvironment
}

// InvalidStateError records which operation was refused and why.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("engine session: %s not allowed while %s", e.Op, e.State)
}

// Is returns true if the target error is ErrInvalidState
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// OpError wraps an I/O failure with the operation that hit it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %w", ErrEngineUnavailable, &OpError{Op: op, Err: err})
}
