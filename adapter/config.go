package adapter

import (
	"context"
	"time"

	"github.com/haverlund/elmdiag/transport"
)

// SppUUID is the standard Bluetooth Serial Port Profile UUID ELM327
// adapters register under. Platform discovery/socket-opening is an
// external collaborator (spec.md §6); this core only names the constant
// it expects that collaborator to connect with.
const SppUUID = "00001101-0000-1000-8000-00805F9B34FB"

// Opener opens the transport for a given device handle. The concrete
// implementation — a serial port path, a platform Bluetooth socket — is
// injected; AdapterController never constructs one itself.
type Opener func(ctx context.Context, deviceHandle string) (transport.Transport, error)

// Timing constants from spec.md §4.2's initialize sequence.
const (
	postResetDelay  = 1000 * time.Millisecond
	interStepDelay  = 100 * time.Millisecond
	preCommandDelay = 50 * time.Millisecond
)

// Forbidden commands once the bus is active (spec.md §4.2).
var forbiddenAfterBusActive = map[string]bool{
	"ATZ":  true,
	"ATD":  true,
	"ATWS": true,
	"ATH0": true,
	"ATS0": true,
}
