package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haverlund/elmdiag/transport"
)

func newTestController(t *testing.T, ft *transport.FakeTransport) *Controller {
	t.Helper()
	opener := func(ctx context.Context, deviceHandle string) (transport.Transport, error) {
		return ft, nil
	}
	c := New(opener)
	t.Cleanup(c.Stop)
	return c
}

func TestInitializeDetectsEcusAndProgramsBroadcastMode(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "7E8 06 41 00 BE 3F A8 13\n7E9 06 41 00 88 18 00 01")
	c := newTestController(t, ft)

	ecus, err := c.Connect(context.Background(), "/dev/ttyUSB0")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if len(ecus) != 2 {
		t.Fatalf("got %d detected ECUs, want 2", len(ecus))
	}
	if ecus[0].Code != "ECM" || ecus[1].Code != "TCM" {
		t.Fatalf("got %+v, want ECM then TCM", ecus)
	}

	st := c.State()
	if st.Phase != Ready {
		t.Fatalf("got phase %s, want Ready", st.Phase)
	}
	if !st.CanBusActive {
		t.Fatal("want CanBusActive true")
	}
	if st.RxFilter != "7E8" || st.FlowControlHeader != "7E0" {
		t.Fatalf("got RxFilter=%s FlowControlHeader=%s, want 7E8/7E0", st.RxFilter, st.FlowControlHeader)
	}
	if st.AdapterVersion != "ELM327 v1.5" {
		t.Fatalf("got AdapterVersion %q", st.AdapterVersion)
	}
}

func TestInitializeBusProbeFailed(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "NO DATA")
	c := newTestController(t, ft)

	_, err := c.Connect(context.Background(), "/dev/ttyUSB0")
	if !errors.Is(err, ErrBusProbeFailed) {
		t.Fatalf("got %v, want ErrBusProbeFailed", err)
	}
	if c.State().Phase != Errored {
		t.Fatalf("got phase %s, want Errored", c.State().Phase)
	}
}

func TestExchangeInterceptsAddressedHeader(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "7E8 06 41 00 BE 3F A8 13")
	c := newTestController(t, ft)
	if _, err := c.Connect(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	before := len(ft.Sent)
	if _, err := c.Exchange(context.Background(), "ATSH7E0", time.Second); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	got := ft.Sent[before:]
	want := []string{"ATCRA7E8", "ATFCSH7E0", "ATFCSD300000", "ATFCSM1", "ATSH7DF"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExchangePassesThroughAtsh7df(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "7E8 06 41 00 BE 3F A8 13")
	c := newTestController(t, ft)
	if _, err := c.Connect(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	before := len(ft.Sent)
	if _, err := c.Exchange(context.Background(), "ATSH7DF", time.Second); err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	got := ft.Sent[before:]
	if len(got) != 1 || got[0] != "ATSH7DF" {
		t.Fatalf("got %v, want a single verbatim ATSH7DF", got)
	}
}

func TestExchangeForbidsResetAfterBusActive(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "7E8 06 41 00 BE 3F A8 13")
	c := newTestController(t, ft)
	if _, err := c.Connect(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	before := len(ft.Sent)
	for _, cmd := range []string{"ATZ", "ATD", "ATWS", "ATH0", "ATS0"} {
		_, err := c.Exchange(context.Background(), cmd, time.Second)
		if !errors.Is(err, ErrForbiddenAfterBusActive) {
			t.Fatalf("command %s: got %v, want ErrForbiddenAfterBusActive", cmd, err)
		}
	}
	if len(ft.Sent) != before {
		t.Fatalf("forbidden commands reached the transport: %v", ft.Sent[before:])
	}
}

func TestSendPayloadRunsPreCommandsThenPayload(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "7E8 06 41 00 BE 3F A8 13").
		On("221234", "7E8 04 62 12 34 56")
	c := newTestController(t, ft)
	if _, err := c.Connect(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	before := len(ft.Sent)
	reply, err := c.SendPayload(context.Background(), "221234", []string{"atsh7e0"}, time.Second)
	if err != nil {
		t.Fatalf("SendPayload: %v", err)
	}
	if string(reply) != "7E8 04 62 12 34 56" {
		t.Fatalf("got reply %q, want %q", reply, "7E8 04 62 12 34 56")
	}
	got := ft.Sent[before:]
	want := []string{"ATCRA7E8", "ATFCSH7E0", "ATFCSD300000", "ATFCSM1", "ATSH7DF", "221234"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSendPayloadForbidsResetPreCommandAfterBusActive(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "7E8 06 41 00 BE 3F A8 13")
	c := newTestController(t, ft)
	if _, err := c.Connect(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	before := len(ft.Sent)
	_, err := c.SendPayload(context.Background(), "221234", []string{"ATZ"}, time.Second)
	if !errors.Is(err, ErrForbiddenAfterBusActive) {
		t.Fatalf("got %v, want ErrForbiddenAfterBusActive", err)
	}
	if len(ft.Sent) != before {
		t.Fatalf("forbidden pre-command reached the transport: %v", ft.Sent[before:])
	}
}

func TestSelectEcuIsIdempotent(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "7E8 06 41 00 BE 3F A8 13")
	c := newTestController(t, ft)
	if _, err := c.Connect(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	before := len(ft.Sent)
	if err := c.SelectEcu(context.Background(), "7E0", "7E8"); err != nil {
		t.Fatalf("SelectEcu: %v", err)
	}
	if len(ft.Sent) != before {
		t.Fatalf("expected no-op, but sent %v", ft.Sent[before:])
	}
}

func TestSelectBsiEmitsExactSequence(t *testing.T) {
	ft := transport.NewFake().
		On("ATZ", "ELM327 v1.5").
		On("0100", "7E8 06 41 00 BE 3F A8 13")
	c := newTestController(t, ft)
	if _, err := c.Connect(context.Background(), "/dev/ttyUSB0"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	before := len(ft.Sent)
	if err := c.SelectEcu(context.Background(), "765", "76D"); err != nil {
		t.Fatalf("SelectEcu: %v", err)
	}
	got := ft.Sent[before:]
	want := []string{"ATCRA76D", "ATFCSH765", "ATFCSD300000", "ATFCSM1", "ATSH7DF"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("step %d: got %s, want %s", i, got[i], want[i])
		}
	}
}
