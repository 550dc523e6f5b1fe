package isotp

import (
	"errors"
	"testing"
)

func TestParseSingleFramePermissive(t *testing.T) {
	// 7E8 06 62 D4 1F 0B B8: declared length nibble (6) exceeds the 5
	// bytes actually present after it, so the permissive fallback takes
	// the whole remainder — this is the ELM327 clone quirk SPEC_FULL.md
	// §9 decided to tolerate rather than reject.
	var warned string
	warn := func(format string, args ...any) { warned = format }
	got, err := Parse([]byte("7E8 06 62 D4 1F 0B B8\r>"), warn)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []byte{0x62, 0xD4, 0x1F, 0x0B, 0xB8}
	if string(got) != string(want) {
		t.Fatalf("got %X, want %X", got, want)
	}
	if warned == "" {
		t.Fatal("expected a permissive-accept warning")
	}
}

func TestParseSingleFrameExact(t *testing.T) {
	got, err := Parse([]byte("7E8 01 54"), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(got) != "\x54" {
		t.Fatalf("got %X, want 54", got)
	}
}

func TestParseMultiFrameDtcReply(t *testing.T) {
	// First Frame carries 6 payload bytes, Consecutive Frame the
	// remaining 3, reconstructing the 0x19 0x02 reply for two DTCs:
	// P0420 status 0x09 and P0134 status 0x08.
	reply := []byte("7E8 10 09 59 02 FF 04 20 09\r7E8 21 01 34 08\r>")
	got, err := Parse(reply, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []byte{0x59, 0x02, 0xFF, 0x04, 0x20, 0x09, 0x01, 0x34, 0x08}
	if string(got) != string(want) {
		t.Fatalf("got %X, want %X", got, want)
	}
}

func TestParseConsecutiveFrameSequenceGap(t *testing.T) {
	// second line claims sequence 2 when 1 was expected.
	reply := []byte("7E8 10 09 59 02 FF 04 20 09\r7E8 22 01 34 08\r>")
	_, err := Parse(reply, nil)
	if !errors.Is(err, ErrProtocolMismatch) {
		t.Fatalf("got %v, want ErrProtocolMismatch", err)
	}
}

func TestParseTruncatedMultiFrame(t *testing.T) {
	reply := []byte("7E8 10 09 59 02 FF 04 20 09\r>")
	_, err := Parse(reply, nil)
	if !errors.Is(err, ErrProtocolMismatch) {
		t.Fatalf("got %v, want ErrProtocolMismatch", err)
	}
}

func TestParseNoData(t *testing.T) {
	for _, line := range []string{"NO DATA", "ERROR", "UNABLE TO CONNECT", "?"} {
		_, err := Parse([]byte(line), nil)
		if !errors.Is(err, ErrNoData) {
			t.Fatalf("line %q: got %v, want ErrNoData", line, err)
		}
	}
}

func TestParseIgnoresHeaderlessCanId(t *testing.T) {
	// without a CAN id token (3 hex chars) every field is treated as data.
	got, err := Parse([]byte("06 62 D4 1F 0B B8"), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []byte{0x62, 0xD4, 0x1F, 0x0B, 0xB8}
	if string(got) != string(want) {
		t.Fatalf("got %X, want %X", got, want)
	}
}
