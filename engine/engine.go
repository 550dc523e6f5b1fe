// Package engine is the DiagnosticEngine: the orchestration layer callers
// use directly. It owns an AdapterController and a UdsClient strictly
// downward and exposes the core API surface of spec.md §6 — ECU
// discovery/selection, session management, the TesterPresent keep-alive,
// and the decoded read/write operations built on the DID and DTC
// catalogs.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/haverlund/elmdiag/adapter"
	"github.com/haverlund/elmdiag/catalog"
	"github.com/haverlund/elmdiag/isotp"
	"github.com/haverlund/elmdiag/uds"
)

const (
	defaultDeadline = 2000 * time.Millisecond
	slowDeadline    = 5000 * time.Millisecond // for 0x19/0x14, per spec.md §4.1
	connectAttempts = 3
	connectBackoff  = 300 * time.Millisecond
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithOnStateChanged forwards AdapterController phase transitions.
func WithOnStateChanged(fn func(adapter.Phase)) Option {
	return func(e *Engine) { e.onStateChanged = fn }
}

// WithOnLog forwards human-readable trace lines from the adapter layer
// and the engine's own best-effort operations (failed keep-alive ticks).
func WithOnLog(fn func(string)) Option {
	return func(e *Engine) { e.onLog = fn }
}

// Engine is the DiagnosticEngine.
type Engine struct {
	discoverer PlatformDiscoverer
	opener     PlatformOpener

	onStateChanged func(adapter.Phase)
	onLog          func(string)

	mu       sync.Mutex
	ctrl     *adapter.Controller
	client   *uds.Client
	detected []catalog.EcuAddress
	selected catalog.EcuAddress

	keepaliveCancel context.CancelFunc
	keepaliveDone   chan struct{}
}

// New builds an Engine. opener is required; discoverer may be nil if the
// caller always supplies a DeviceRef directly instead of listing.
func New(opener PlatformOpener, discoverer PlatformDiscoverer, opts ...Option) *Engine {
	e := &Engine{opener: opener, discoverer: discoverer}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) log(line string) {
	if e.onLog != nil {
		e.onLog(line)
	}
}

func (e *Engine) warn(format string, args ...any) {
	e.log("warn: " + fmt.Sprintf(format, args...))
}

// ListPairedDevices delegates to the injected platform discoverer.
func (e *Engine) ListPairedDevices(ctx context.Context) ([]DeviceRef, error) {
	if e.discoverer == nil {
		return nil, errors.New("engine: no platform discoverer configured")
	}
	return e.discoverer(ctx)
}

// Connect opens the adapter and runs its init sequence, retrying the
// whole attempt with backoff — clone adapters frequently need a second
// try at the baud handshake (SPEC_FULL.md's reconnect-with-backoff
// supplement).
func (e *Engine) Connect(ctx context.Context, ref DeviceRef) error {
	ctrl := adapter.New(e.opener,
		adapter.WithOnStateChanged(e.onStateChanged),
		adapter.WithOnLog(e.onLog),
		adapter.WithOnWarn(func(s string) { e.log("warn: " + s) }),
	)

	var detected []catalog.EcuAddress
	err := retry.Do(
		func() error {
			d, err := ctrl.Connect(ctx, ref.Handle)
			if err != nil {
				return err
			}
			detected = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(connectBackoff),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		ctrl.Stop()
		return err
	}

	e.mu.Lock()
	e.ctrl = ctrl
	e.client = uds.New(&controllerExchanger{ctrl: ctrl}, e.warn)
	e.detected = detected
	if len(detected) > 0 {
		e.selected = detected[0]
		for _, ecu := range detected {
			if ecu.Code == "ECM" {
				e.selected = ecu
				break
			}
		}
	}
	e.mu.Unlock()
	return nil
}

// Disconnect stops the keep-alive task, then tears down the controller.
func (e *Engine) Disconnect(ctx context.Context) error {
	e.stopKeepAlive()
	e.mu.Lock()
	ctrl := e.ctrl
	e.ctrl = nil
	e.client = nil
	e.mu.Unlock()
	if ctrl == nil {
		return nil
	}
	err := ctrl.Disconnect(ctx)
	ctrl.Stop()
	return err
}

// DetectedEcus returns the ECU set found during the last connect.
func (e *Engine) DetectedEcus() []catalog.EcuAddress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.detected
}

// SelectedEcu returns the ECU currently programmed into the adapter.
func (e *Engine) SelectedEcu() catalog.EcuAddress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

func (e *Engine) controllerAndClient() (*adapter.Controller, *uds.Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctrl == nil || e.client == nil {
		return nil, nil, errNotConnected
	}
	return e.ctrl, e.client, nil
}

// SelectEcu resolves code in the catalog and programs the adapter for
// that ECU's tx/rx pair. Idempotent — AdapterController.SelectEcu is.
func (e *Engine) SelectEcu(ctx context.Context, code string) error {
	ctrl, _, err := e.controllerAndClient()
	if err != nil {
		return err
	}
	ecu, err := ecuByCode(code)
	if err != nil {
		return err
	}
	if err := ctrl.SelectEcu(ctx, ecu.Tx, ecu.Rx); err != nil {
		return &EcuError{Code: code, Err: err}
	}
	e.mu.Lock()
	e.selected = ecu
	e.mu.Unlock()
	return nil
}

func (e *Engine) selectByCode(ctx context.Context, code string) error {
	return e.SelectEcu(ctx, code)
}

// ensureExtendedSession requests the extended session before any
// operation that needs one. A NoData or ProtocolMismatch reply is
// tolerated — some clones answer sparsely or malformed — everything else
// propagates (spec.md §4.5, §7). The echoed sub-function is not checked.
func (e *Engine) ensureExtendedSession(ctx context.Context, client *uds.Client) error {
	_, err := client.DiagnosticSessionControl(ctx, uds.SessionExtended, defaultDeadline)
	if err != nil && !isBenignSessionError(err) {
		return err
	}
	e.startKeepAlive()
	return nil
}

// isBenignSessionError reports the recoverable, treat-as-NoData subset of
// spec.md §7's error taxonomy: NoData (some clones answer sparsely) and
// ProtocolMismatch (a reply with the wrong service echo or no sub-function
// byte is still evidence the ECU is there and talking, just not cleanly).
func isBenignSessionError(err error) bool {
	return errors.Is(err, isotp.ErrNoData) || errors.Is(err, uds.ErrProtocolMismatch)
}

type controllerExchanger struct {
	ctrl *adapter.Controller
}

func (c *controllerExchanger) Exchange(ctx context.Context, command string, deadline time.Duration) ([]byte, error) {
	return c.ctrl.Exchange(ctx, command, deadline)
}
