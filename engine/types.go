package engine

import (
	"context"

	"github.com/haverlund/elmdiag/adapter"
	"github.com/haverlund/elmdiag/catalog"
)

// DeviceRef names one adapter the platform layer has discovered — a
// paired Bluetooth SPP device or a serial port path. The core treats it
// as an opaque handle; PlatformOpener is what turns it into bytes.
type DeviceRef struct {
	Handle string
	Name   string
}

// PlatformOpener opens the transport for a device handle. It's the same
// shape as adapter.Opener because that's exactly what it is — the
// platform Bluetooth/serial layer is an external collaborator (spec.md
// §6) injected at this single seam.
type PlatformOpener = adapter.Opener

// PlatformDiscoverer lists the adapters the platform currently sees
// paired or plugged in. Also an external collaborator.
type PlatformDiscoverer func(ctx context.Context) ([]DeviceRef, error)

// EngineData is the engine DID group (0xD4xx) snapshot.
type EngineData struct {
	RPM             float64
	CoolantTempC    float64
	BatteryVoltageV float64
}

// DpfData is the diesel particulate filter snapshot.
type DpfData struct {
	SootLoadingGPerL float64
	RegenStatus      string
}

// EcuIdentification is the ASCII identification read from DIDs 0xF080,
// 0xF0FE, 0xF091. Fields default to "N/A" per spec.md §4.5.
type EcuIdentification struct {
	PartNumber  string
	Calibration string
	HardwareNum string
}

// GroupScanResult is one entry of a DID group scan (0xD0..0xDF).
type GroupScanResult struct {
	GroupPrefix byte
	Active      bool
}

// EcuError reports a failure resolving or selecting an ECU by its
// catalog code.
type EcuError struct {
	Code string
	Err  error
}

func (e *EcuError) Error() string { return "engine: ecu " + e.Code + ": " + e.Err.Error() }
func (e *EcuError) Unwrap() error { return e.Err }

func ecuByCode(code string) (catalog.EcuAddress, error) {
	ecu, ok := catalog.ByCode(code)
	if !ok {
		return catalog.EcuAddress{}, &EcuError{Code: code, Err: errUnknownEcu}
	}
	return ecu, nil
}
