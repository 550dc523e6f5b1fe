// Package adapter owns the ELM327's programmed configuration — protocol,
// headers, filters, flow control — and is the only component allowed to
// touch a Transport. Every public operation runs on a single owned
// goroutine that services a request queue (spec.md §9's message-passing
// recommendation over re-exporting a mutex), so cancellation is just
// "stop waiting on the response channel" rather than lock surgery.
package adapter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/haverlund/elmdiag/catalog"
	"github.com/haverlund/elmdiag/transport"
)

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithOnStateChanged registers an observer for phase transitions. Unset by
// default; implemented as an injected function-style sink per spec.md §9,
// never a back-pointer.
func WithOnStateChanged(fn func(Phase)) Option {
	return func(c *Controller) { c.onStateChanged = fn }
}

// WithOnLog registers a sink for human-readable trace lines (AT commands
// sent, replies received).
func WithOnLog(fn func(string)) Option {
	return func(c *Controller) { c.onLog = fn }
}

// WithOnWarn registers a sink for non-fatal protocol warnings, notably
// isotp's permissive Single Frame fallback.
func WithOnWarn(fn func(string)) Option {
	return func(c *Controller) { c.onWarn = fn }
}

type job struct {
	run  func() (any, error)
	resp chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// Controller is the AdapterController. Build one with New and Connect it
// before issuing any other operation.
type Controller struct {
	opener         Opener
	onStateChanged func(Phase)
	onLog          func(string)
	onWarn         func(string)

	jobs chan job
	quit chan struct{}

	mu sync.RWMutex
	tr transport.Transport
	state State
}

// New builds a Controller and starts its worker goroutine. opener must be
// non-nil; it is how Connect obtains a Transport without this package
// knowing whether that's a serial port or a platform Bluetooth socket.
func New(opener Opener, opts ...Option) *Controller {
	c := &Controller{
		opener: opener,
		jobs:   make(chan job),
		quit:   make(chan struct{}),
		state:  State{Phase: Disconnected},
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	for {
		select {
		case j := <-c.jobs:
			value, err := j.run()
			j.resp <- jobResult{value: value, err: err}
		case <-c.quit:
			return
		}
	}
}

// enqueue is the gate: every public operation funnels its work through
// here, so the worker goroutine executes at most one at a time, in
// submission order.
func (c *Controller) enqueue(ctx context.Context, fn func() (any, error)) (any, error) {
	j := job{run: fn, resp: make(chan jobResult, 1)}
	select {
	case c.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.quit:
		return nil, ErrNotReady
	}
	select {
	case r := <-j.resp:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop terminates the worker goroutine. Disconnect should be called
// first; Stop is for final teardown when the Controller itself is being
// discarded.
func (c *Controller) Stop() {
	close(c.quit)
}

// State returns a snapshot of the current AdapterState.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.state.Phase = p
	c.mu.Unlock()
	if c.onStateChanged != nil {
		c.onStateChanged(p)
	}
}

func (c *Controller) log(format string, args ...any) {
	if c.onLog != nil {
		c.onLog(fmt.Sprintf(format, args...))
	}
}

func (c *Controller) warn(format string, args ...any) {
	if c.onWarn != nil {
		c.onWarn(fmt.Sprintf(format, args...))
	}
}

// Connect opens the transport for deviceHandle and runs initialize.
func (c *Controller) Connect(ctx context.Context, deviceHandle string) ([]catalog.EcuAddress, error) {
	c.setPhase(Connecting)
	tr, err := c.opener(ctx, deviceHandle)
	if err != nil {
		c.setPhase(Errored)
		return nil, err
	}
	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()
	c.setPhase(Connected)
	return c.Initialize(ctx)
}

// rawExchange performs one write/read-until-prompt cycle and cleans the
// reply: strip the echoed command if present, split CR/LF, drop empty
// lines, drop "OK", drop lines beginning with "SEARCHING" (spec.md §4.2,
// §8 boundary behavior). Must only be called from the worker goroutine.
func (c *Controller) rawExchange(ctx context.Context, cmd string, deadline time.Duration) ([]byte, error) {
	if c.tr == nil {
		return nil, ErrNotReady
	}
	c.log(">> %s", cmd)
	if err := c.tr.WriteLine(ctx, cmd); err != nil {
		return nil, err
	}
	raw, err := c.tr.ReadUntilPrompt(ctx, deadline)
	if err != nil {
		return nil, err
	}
	cleaned := cleanReply(raw, cmd)
	c.log("<< %s", string(cleaned))
	return cleaned, nil
}

func cleanReply(raw []byte, cmd string) []byte {
	text := strings.ReplaceAll(string(raw), "\r", "\n")
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if l == cmd {
			continue // echoed command
		}
		if l == "OK" {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(l), "SEARCHING") {
			continue
		}
		kept = append(kept, l)
	}
	return []byte(strings.Join(kept, "\r"))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const (
	initReplyDeadline = 1000 * time.Millisecond
	probeDeadline     = 2000 * time.Millisecond
)

// Initialize issues the adapter init sequence exactly once, probes the
// bus with OBD 0100, and switches into broadcast mode for the ECU the
// probe detected (preferring ECM). Normally called once, by Connect;
// exposed directly for callers that already own an opened Transport.
func (c *Controller) Initialize(ctx context.Context) ([]catalog.EcuAddress, error) {
	c.setPhase(Initializing)
	v, err := c.enqueue(ctx, func() (any, error) {
		return c.doInitialize(ctx)
	})
	if err != nil {
		c.setPhase(Errored)
		return nil, err
	}
	ecus, _ := v.([]catalog.EcuAddress)
	c.mu.Lock()
	c.state.CanBusActive = true
	c.mu.Unlock()
	c.setPhase(Ready)
	return ecus, nil
}

func (c *Controller) doInitialize(ctx context.Context) ([]catalog.EcuAddress, error) {
	zReply, err := c.rawExchange(ctx, "ATZ", initReplyDeadline)
	if err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, postResetDelay); err != nil {
		return nil, err
	}

	version := parseAdapterVersion(zReply)
	c.mu.Lock()
	c.state.AdapterVersion = version
	c.mu.Unlock()

	steps := []struct {
		cmd     string
		applyTo func()
	}{
		{"ATE0", func() { c.state.Echo = false }},
		{"ATL0", func() { c.state.Linefeed = false }},
		{"ATH1", func() { c.state.HeadersShown = true }},
		{"ATS1", func() { c.state.SpacesShown = true }},
		{"ATSP6", nil},
		{"ATST64", nil},
		{"ATAT1", nil},
	}
	for _, s := range steps {
		if _, err := c.rawExchange(ctx, s.cmd, initReplyDeadline); err != nil {
			return nil, err
		}
		if s.applyTo != nil {
			c.mu.Lock()
			s.applyTo()
			c.mu.Unlock()
		}
		if err := sleepCtx(ctx, interStepDelay); err != nil {
			return nil, err
		}
	}

	probeReply, err := c.rawExchange(ctx, "0100", probeDeadline)
	if err != nil {
		return nil, err
	}
	upper := strings.ToUpper(string(probeReply))
	if strings.Contains(upper, "NO DATA") || strings.Contains(upper, "UNABLE") || strings.Contains(upper, "ERROR") {
		return nil, ErrBusProbeFailed
	}

	detected := parseDetectedEcus(probeReply)
	if len(detected) == 0 {
		return detected, nil
	}

	preferred := detected[0]
	for _, e := range detected {
		if e.Code == "ECM" {
			preferred = e
			break
		}
	}
	if _, err := c.programBroadcastMode(ctx, preferred.Tx, preferred.Rx); err != nil {
		return nil, err
	}
	return detected, nil
}

// programBroadcastMode issues the five-step ATCRA/ATFCSH/ATFCSD/ATFCSM/
// ATSH7DF sequence, updates AdapterState, and returns the cleaned reply
// of the final ATSH7DF step. Must run on the worker.
func (c *Controller) programBroadcastMode(ctx context.Context, tx, rx string) ([]byte, error) {
	steps := []string{
		"ATCRA" + rx,
		"ATFCSH" + tx,
		"ATFCSD300000",
		"ATFCSM1",
		"ATSH7DF",
	}
	var reply []byte
	for i, cmd := range steps {
		var err error
		reply, err = c.rawExchange(ctx, cmd, initReplyDeadline)
		if err != nil {
			return nil, err
		}
		if i < 2 && isAdapterRejection(reply) {
			return nil, fmt.Errorf("%w: %s", ErrAdapterRejected, cmd)
		}
	}
	c.mu.Lock()
	c.state.RxFilter = rx
	c.state.FlowControlHeader = tx
	c.state.HeaderMode = HeaderBroadcast
	c.mu.Unlock()
	return reply, nil
}

func isAdapterRejection(reply []byte) bool {
	u := strings.ToUpper(string(reply))
	return strings.Contains(u, "ERROR") || strings.Contains(u, "?")
}

func parseAdapterVersion(reply []byte) string {
	for _, l := range strings.Split(strings.ReplaceAll(string(reply), "\r", "\n"), "\n") {
		l = strings.TrimSpace(l)
		if strings.Contains(l, "ELM327") {
			return l
		}
	}
	return ""
}

// parseDetectedEcus scans probe reply lines for a leading 3-hex-char CAN
// id and matches each against the ECU address table, deduplicating.
func parseDetectedEcus(reply []byte) []catalog.EcuAddress {
	seen := map[string]bool{}
	var out []catalog.EcuAddress
	for _, l := range strings.Split(strings.ReplaceAll(string(reply), "\r", "\n"), "\n") {
		fields := strings.Fields(l)
		if len(fields) == 0 {
			continue
		}
		id := fields[0]
		if len(id) != 3 {
			continue
		}
		ecu, ok := catalog.ByRx(id)
		if !ok || seen[ecu.Code] {
			continue
		}
		seen[ecu.Code] = true
		out = append(out, ecu)
	}
	return out
}

// Exchange is the general-purpose operation every higher layer funnels
// through. It intercepts any addressed ATSH (other than ATSH7DF) and
// rewrites it into a broadcast-plus-filter sequence (spec.md §4.2), and
// refuses ATZ/ATD/ATWS/ATH0/ATS0 locally once the bus is active.
func (c *Controller) Exchange(ctx context.Context, command string, deadline time.Duration) ([]byte, error) {
	cmd := strings.ToUpper(strings.TrimSpace(command))
	v, err := c.enqueue(ctx, func() (any, error) {
		return c.exchangeLocked(ctx, cmd, deadline)
	})
	if err != nil {
		return nil, err
	}
	reply, _ := v.([]byte)
	return reply, nil
}

// exchangeLocked is the single enforcement point for the forbidden-after-
// bus-active gate and the ATSH interception rule; every entry point that
// can put a command on the wire (Exchange, SendPayload's pre-commands)
// runs through here so neither can smuggle ATZ/ATD/ATWS/ATH0/ATS0 past it.
func (c *Controller) exchangeLocked(ctx context.Context, cmd string, deadline time.Duration) ([]byte, error) {
	c.mu.RLock()
	busActive := c.state.CanBusActive
	c.mu.RUnlock()
	if busActive && forbiddenAfterBusActive[cmd] {
		return nil, fmt.Errorf("%w: %s", ErrForbiddenAfterBusActive, cmd)
	}

	if strings.HasPrefix(cmd, "ATSH") && cmd != "ATSH7DF" {
		suffix := strings.TrimPrefix(cmd, "ATSH")
		rx := catalog.TxToRx(suffix)
		return c.programBroadcastMode(ctx, suffix, rx)
	}
	return c.rawExchange(ctx, cmd, deadline)
}

// SelectEcu programs the adapter's filters for the given tx/rx pair. It
// is a no-op if that pair is already programmed.
func (c *Controller) SelectEcu(ctx context.Context, tx, rx string) error {
	c.mu.RLock()
	already := c.state.FlowControlHeader == tx && c.state.RxFilter == rx
	c.mu.RUnlock()
	if already {
		return nil
	}
	_, err := c.enqueue(ctx, func() (any, error) {
		_, err := c.programBroadcastMode(ctx, tx, rx)
		return nil, err
	})
	return err
}

// SendPayload runs each pre-command (applying the same ATSH interception
// rule as Exchange), then sends the payload line and returns its cleaned
// reply.
func (c *Controller) SendPayload(ctx context.Context, dataHex string, preCommands []string, deadline time.Duration) ([]byte, error) {
	v, err := c.enqueue(ctx, func() (any, error) {
		for _, pre := range preCommands {
			if _, err := c.exchangeLocked(ctx, strings.ToUpper(strings.TrimSpace(pre)), deadline); err != nil {
				return nil, err
			}
			if err := sleepCtx(ctx, preCommandDelay); err != nil {
				return nil, err
			}
		}
		return c.rawExchange(ctx, dataHex, deadline)
	})
	if err != nil {
		return nil, err
	}
	reply, _ := v.([]byte)
	return reply, nil
}

// Disconnect closes the transport and resets AdapterState. Any in-flight
// exchange is allowed to finish first since it runs through the same
// queue. The caller is responsible for cancelling the TesterPresent task
// before calling this.
func (c *Controller) Disconnect(ctx context.Context) error {
	_, err := c.enqueue(ctx, func() (any, error) {
		c.mu.Lock()
		tr := c.tr
		c.tr = nil
		c.state = State{Phase: Disconnected}
		c.mu.Unlock()
		if tr != nil {
			return nil, tr.Close()
		}
		return nil, nil
	})
	c.setPhase(Disconnected)
	return err
}
