package engine

import "errors"

var (
	errUnknownEcu   = errors.New("engine: unknown ecu code")
	errNotConnected = errors.New("engine: not connected")
)
