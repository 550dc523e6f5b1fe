package transport

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialConfig describes how to open the physical (or Bluetooth SPP,
// exposed to the OS as a serial device) port to the adapter.
type SerialConfig struct {
	Port     string
	BaudRate int
}

// SerialTransport is the production Transport, backed by go.bug.st/serial.
// The read loop polls the port the way the teacher's adapter recvManagers
// do (adapter_scantool.go): a short SetReadTimeout plus a cooperative
// sleep when a read comes back empty, rather than blocking indefinitely.
type SerialTransport struct {
	port serial.Port
}

// OpenSerial opens the named port in the 8N1 mode ELM327 clones expect.
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, &IOError{Op: "open " + cfg.Port, Err: err}
	}
	if err := p.SetReadTimeout(10 * time.Millisecond); err != nil {
		p.Close()
		return nil, &IOError{Op: "set read timeout", Err: err}
	}
	p.ResetInputBuffer()
	p.ResetOutputBuffer()
	return &SerialTransport{port: p}, nil
}

// WrapPort adapts an already-open serial.Port (e.g. a Bluetooth SPP
// socket exposed by the platform as a serial device) into a Transport.
func WrapPort(p serial.Port) (*SerialTransport, error) {
	if err := p.SetReadTimeout(10 * time.Millisecond); err != nil {
		return nil, &IOError{Op: "set read timeout", Err: err}
	}
	return &SerialTransport{port: p}, nil
}

func (t *SerialTransport) WriteLine(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.port.Write([]byte(cmd + "\r")); err != nil {
		return &IOError{Op: fmt.Sprintf("write %q", cmd), Err: err}
	}
	return nil
}

func (t *SerialTransport) ReadUntilPrompt(ctx context.Context, deadline time.Duration) ([]byte, error) {
	if deadline <= 0 {
		deadline = DefaultReadDeadline
	}
	cutoff := time.Now().Add(deadline)
	buf := bytes.NewBuffer(nil)
	readBuf := make([]byte, 64)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if time.Now().After(cutoff) {
			return nil, ErrReadTimeout
		}

		n, err := t.port.Read(readBuf)
		if err != nil {
			return nil, &IOError{Op: "read", Err: err}
		}
		if n == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		for _, b := range readBuf[:n] {
			if b == Prompt {
				return buf.Bytes(), nil
			}
			buf.WriteByte(b)
		}
	}
}

func (t *SerialTransport) Close() error {
	if err := t.port.Close(); err != nil {
		return &IOError{Op: "close", Err: err}
	}
	return nil
}
