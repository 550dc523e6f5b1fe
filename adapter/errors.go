package adapter

import "errors"

var (
	// ErrBusProbeFailed means the post-init OBD "0100" probe returned
	// NO DATA/UNABLE/ERROR — initialize fails and the phase becomes Errored.
	ErrBusProbeFailed = errors.New("adapter: bus probe failed")

	// ErrAdapterRejected means the adapter answered a configuration
	// command (ATCRA/ATFCSH/...) with ERROR or ?.
	ErrAdapterRejected = errors.New("adapter: configuration command rejected")

	// ErrForbiddenAfterBusActive means the caller asked for ATZ/ATD/ATWS/
	// ATH0/ATS0 once canBusActive is true. Answered locally, no I/O.
	ErrForbiddenAfterBusActive = errors.New("adapter: command forbidden once bus is active")

	// ErrNotReady means an operation needing the adapter was called while
	// no transport is open (before Connect, or after Disconnect), or after
	// the controller was stopped.
	ErrNotReady = errors.New("adapter: not ready")
)
