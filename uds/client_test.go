package uds

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeExchanger struct {
	want  string
	reply []byte
	err   error
}

func (f *fakeExchanger) Exchange(ctx context.Context, command string, deadline time.Duration) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.want != "" && command != f.want {
		return nil, errors.New("unexpected command: " + command)
	}
	return f.reply, nil
}

func TestDiagnosticSessionControl(t *testing.T) {
	c := New(&fakeExchanger{want: "1003", reply: []byte("7E8 02 50 03")}, nil)
	got, err := c.DiagnosticSessionControl(context.Background(), SessionExtended, time.Second)
	if err != nil {
		t.Fatalf("DiagnosticSessionControl: %v", err)
	}
	if got != SessionExtended {
		t.Fatalf("got sub-function 0x%02X, want 0x%02X", got, SessionExtended)
	}
}

func TestReadDataByIdentifierRoundTrip(t *testing.T) {
	c := New(&fakeExchanger{want: "22D41F", reply: []byte("7E8 06 62 D4 1F 0B B8")}, nil)
	got, err := c.ReadDataByIdentifier(context.Background(), 0xD41F, time.Second)
	if err != nil {
		t.Fatalf("ReadDataByIdentifier: %v", err)
	}
	want := []byte{0x0B, 0xB8}
	if string(got) != string(want) {
		t.Fatalf("got %X, want %X", got, want)
	}
}

func TestReadDataByIdentifierDidMismatch(t *testing.T) {
	c := New(&fakeExchanger{reply: []byte("7E8 06 62 D4 00 0B B8")}, nil)
	_, err := c.ReadDataByIdentifier(context.Background(), 0xD41F, time.Second)
	if !errors.Is(err, ErrProtocolMismatch) {
		t.Fatalf("got %v, want ErrProtocolMismatch", err)
	}
}

func TestReadDtcInformation(t *testing.T) {
	reply := []byte("7E8 10 09 59 02 FF 04 20 09\r7E8 21 01 34 08")
	c := New(&fakeExchanger{want: "1902FF", reply: reply}, nil)
	got, err := c.ReadDtcInformation(context.Background(), 0xFF, time.Second)
	if err != nil {
		t.Fatalf("ReadDtcInformation: %v", err)
	}
	want := []DtcRecord{{0x04, 0x20, 0x09}, {0x01, 0x34, 0x08}}
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestClearDiagnosticInformation(t *testing.T) {
	c := New(&fakeExchanger{want: "14FFFFFF", reply: []byte("7E8 01 54")}, nil)
	if err := c.ClearDiagnosticInformation(context.Background(), time.Second); err != nil {
		t.Fatalf("ClearDiagnosticInformation: %v", err)
	}
}

func TestClearDiagnosticInformationNegative(t *testing.T) {
	c := New(&fakeExchanger{reply: []byte("7E8 03 7F 14 22")}, nil)
	err := c.ClearDiagnosticInformation(context.Background(), time.Second)
	var neg NegativeResponse
	if !errors.As(err, &neg) {
		t.Fatalf("got %v, want NegativeResponse", err)
	}
	if neg.Service != ServiceClearDiagnosticInformation || neg.NRC != NRCConditionsNotCorrect {
		t.Fatalf("got %+v, want service 0x14 nrc 0x22", neg)
	}
}

func TestTesterPresent(t *testing.T) {
	c := New(&fakeExchanger{want: "3E00", reply: []byte("7E8 01 7E")}, nil)
	if err := c.TesterPresent(context.Background(), time.Second); err != nil {
		t.Fatalf("TesterPresent: %v", err)
	}
}
