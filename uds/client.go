// Package uds encodes ISO 14229 requests as the ASCII hex strings the
// adapter expects, classifies the reassembled reply, and exposes the five
// services the rest of the core needs (spec.md §4.4). It never touches a
// Transport or an adapter directly — every exchange goes through an
// Exchanger, so in tests that's a scripted stub, not a live ELM327.
package uds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haverlund/elmdiag/isotp"
)

// ErrProtocolMismatch is returned when a positive reply doesn't echo what
// the request named — a ReadDataByIdentifier reply carrying a different
// DID than the one asked for, for example.
var ErrProtocolMismatch = errors.New("uds: protocol mismatch")

// NegativeResponse is the decoded form of a `7F <service> <nrc>` reply.
type NegativeResponse struct {
	Service byte
	NRC     byte
}

func (e NegativeResponse) Error() string {
	return fmt.Sprintf("uds: negative response to %s: %s", ServiceLabel(e.Service), NRCLabel(e.NRC))
}

// Exchanger is the one operation UdsClient needs from the layer below —
// AdapterController.Exchange in production, a scripted stub in tests.
type Exchanger interface {
	Exchange(ctx context.Context, command string, deadline time.Duration) ([]byte, error)
}

// WarnFunc receives non-fatal diagnostics forwarded from isotp.Parse's
// permissive Single Frame fallback.
type WarnFunc func(format string, args ...any)

// Client is the UDS layer over one ECU connection. It holds no session
// state of its own; DiagnosticEngine tracks which session is active.
type Client struct {
	exchanger Exchanger
	warn      WarnFunc
}

// New builds a Client over the given Exchanger. warn may be nil.
func New(exchanger Exchanger, warn WarnFunc) *Client {
	return &Client{exchanger: exchanger, warn: warn}
}

// request sends one request and returns its decoded payload with the
// echoed service byte stripped, or a NegativeResponse/protocol error.
func (c *Client) request(ctx context.Context, hexCmd string, deadline time.Duration, wantService byte) ([]byte, error) {
	reply, err := c.exchanger.Exchange(ctx, hexCmd, deadline)
	if err != nil {
		return nil, err
	}
	payload, err := isotp.Parse(reply, isotp.Warnf(c.warn))
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty reply to %s", ErrProtocolMismatch, hexCmd)
	}
	if payload[0] == 0x7F {
		if len(payload) < 3 {
			return nil, fmt.Errorf("%w: short negative response", ErrProtocolMismatch)
		}
		return nil, NegativeResponse{Service: payload[1], NRC: payload[2]}
	}
	if payload[0] != wantService+0x40 {
		return nil, fmt.Errorf("%w: want service echo 0x%02X, got 0x%02X", ErrProtocolMismatch, wantService+0x40, payload[0])
	}
	return payload[1:], nil
}

// DiagnosticSessionControl requests the named session (uds.SessionDefault
// or uds.SessionExtended) and returns the echoed sub-function.
func (c *Client) DiagnosticSessionControl(ctx context.Context, session byte, deadline time.Duration) (byte, error) {
	cmd := fmt.Sprintf("%02X%02X", ServiceDiagnosticSessionControl, session)
	data, err := c.request(ctx, cmd, deadline, ServiceDiagnosticSessionControl)
	if err != nil {
		return 0, err
	}
	if len(data) < 1 {
		return 0, fmt.Errorf("%w: session control reply missing sub-function", ErrProtocolMismatch)
	}
	return data[0], nil
}

// ReadDataByIdentifier reads one DID and returns its raw data bytes, with
// both the echoed service byte and the echoed DID stripped.
func (c *Client) ReadDataByIdentifier(ctx context.Context, did uint16, deadline time.Duration) ([]byte, error) {
	cmd := fmt.Sprintf("%02X%04X", ServiceReadDataByIdentifier, did)
	data, err := c.request(ctx, cmd, deadline, ServiceReadDataByIdentifier)
	if err != nil {
		return nil, err
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: read data by identifier reply missing DID echo", ErrProtocolMismatch)
	}
	gotDid := uint16(data[0])<<8 | uint16(data[1])
	if gotDid != did {
		return nil, fmt.Errorf("%w: want DID echo 0x%04X, got 0x%04X", ErrProtocolMismatch, did, gotDid)
	}
	return data[2:], nil
}

// DtcRecord is one raw (hi, lo, status) triple from a ReadDTCInformation
// reply, undecoded — catalog.DecodeDtc turns it into a Dtc.
type DtcRecord struct {
	High, Low, Status byte
}

// ReadDtcInformation issues reportDTCByStatusMask with the given mask and
// returns every (hi, lo, status) triple in the reply.
func (c *Client) ReadDtcInformation(ctx context.Context, statusMask byte, deadline time.Duration) ([]DtcRecord, error) {
	cmd := fmt.Sprintf("%02X%02X%02X", ServiceReadDTCInformation, SubFunctionReportDTCByStatusMask, statusMask)
	data, err := c.request(ctx, cmd, deadline, ServiceReadDTCInformation)
	if err != nil {
		return nil, err
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: read DTC information reply missing sub-function/mask", ErrProtocolMismatch)
	}
	records := data[2:] // sub-function and availability mask echoed first
	if len(records)%3 != 0 {
		return nil, fmt.Errorf("%w: DTC record list not a multiple of 3 bytes (%d)", ErrProtocolMismatch, len(records))
	}
	out := make([]DtcRecord, 0, len(records)/3)
	for i := 0; i < len(records); i += 3 {
		out = append(out, DtcRecord{High: records[i], Low: records[i+1], Status: records[i+2]})
	}
	return out, nil
}

// ClearDiagnosticInformation clears all DTC groups.
func (c *Client) ClearDiagnosticInformation(ctx context.Context, deadline time.Duration) error {
	cmd := fmt.Sprintf("%02X%02X%02X%02X", ServiceClearDiagnosticInformation, ClearAllDTCs[0], ClearAllDTCs[1], ClearAllDTCs[2])
	_, err := c.request(ctx, cmd, deadline, ServiceClearDiagnosticInformation)
	return err
}

// TesterPresent sends the keep-alive heartbeat. Its positive response
// starts with the service echo 0x7E; any bytes after it are ignored.
func (c *Client) TesterPresent(ctx context.Context, deadline time.Duration) error {
	cmd := fmt.Sprintf("%02X00", ServiceTesterPresent)
	reply, err := c.exchanger.Exchange(ctx, cmd, deadline)
	if err != nil {
		return err
	}
	payload, err := isotp.Parse(reply, isotp.Warnf(c.warn))
	if err != nil {
		return err
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty reply to tester present", ErrProtocolMismatch)
	}
	if payload[0] == 0x7F {
		if len(payload) < 3 {
			return fmt.Errorf("%w: short negative response", ErrProtocolMismatch)
		}
		return NegativeResponse{Service: payload[1], NRC: payload[2]}
	}
	if payload[0] != ServiceTesterPresent+0x40 {
		return fmt.Errorf("%w: want service echo 0x%02X, got 0x%02X", ErrProtocolMismatch, ServiceTesterPresent+0x40, payload[0])
	}
	return nil
}
