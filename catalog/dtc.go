package catalog

import "fmt"

// Dtc is a decoded diagnostic trouble code.
type Dtc struct {
	Code        string // four-char form, e.g. "P0420"
	RawHigh     byte
	RawLow      byte
	Status      byte
	Description string
}

// TestFailed reports the status bit for "test failed" (bit 0).
func (d Dtc) TestFailed() bool { return d.Status&0x01 != 0 }

// Pending reports the status bit for "pending" (bit 2).
func (d Dtc) Pending() bool { return d.Status&0x04 != 0 }

// Confirmed reports the status bit for "confirmed" (bit 3).
func (d Dtc) Confirmed() bool { return d.Status&0x08 != 0 }

// DtcDescriptions is the read-only description table, keyed by code.
var DtcDescriptions = map[string]string{
	"P0101": "Mass air flow circuit range/performance",
	"P0102": "Mass air flow circuit low input",
	"P0103": "Mass air flow circuit high input",
	"P0134": "O2 sensor circuit no activity detected (Bank 1 Sensor 1)",
	"P0171": "System too lean (Bank 1)",
	"P0172": "System too rich (Bank 1)",
	"P0300": "Random/multiple cylinder misfire detected",
	"P0301": "Cylinder 1 misfire detected",
	"P0401": "Exhaust gas recirculation flow insufficient",
	"P0420": "Catalyst system efficiency below threshold (Bank 1)",
	"P0440": "Evaporative emission control system malfunction",
	"P2002": "Diesel particulate filter efficiency below threshold (Bank 1)",
	"C1201": "ABS control module internal fault",
	"B1342": "ECU defective",
	"U0100": "Lost communication with ECM/PCM",
}

// decodeDTCCode renders (hi, lo) into the four-character P/C/B/U form of
// spec.md §4.5: the top two bits of hi select the prefix, the next two
// bits form the second character, the low nibble of hi the third, and
// lo's nibbles the fourth and fifth.
func decodeDTCCode(hi, lo byte) string {
	var prefix byte
	switch hi >> 6 {
	case 0:
		prefix = 'P'
	case 1:
		prefix = 'C'
	case 2:
		prefix = 'B'
	case 3:
		prefix = 'U'
	}
	second := (hi >> 4) & 0x03
	third := hi & 0x0F
	fourth := lo >> 4
	fifth := lo & 0x0F
	return fmt.Sprintf("%c%X%X%X%X", prefix, second, third, fourth, fifth)
}

// DecodeDtc decodes one (hi, lo, status) triple from a 0x19 0x02 reply,
// attaching a catalog description and defaulting to "Unknown DTC".
func DecodeDtc(hi, lo, status byte) Dtc {
	code := decodeDTCCode(hi, lo)
	desc, ok := DtcDescriptions[code]
	if !ok {
		desc = "Unknown DTC"
	}
	return Dtc{Code: code, RawHigh: hi, RawLow: lo, Status: status, Description: desc}
}
