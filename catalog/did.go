package catalog

import "fmt"

// Decoder turns the raw payload bytes following a positive 0x62 reply
// (DID echo already stripped) into a scalar application value.
type Decoder func(data []byte) (float64, error)

// Did is a single entry in the read-only DID catalog.
type Did struct {
	ID              uint16
	Name            string
	Unit            string
	Group           byte // high byte of ID: 0xD0..0xDF or 0xF0..0xFF
	ExpectedDataLen int
	Decode          Decoder // nil for non-scalar (ASCII identification) DIDs
}

// DIDs is the read-only catalog, indexed by identifier.
var DIDs = map[uint16]Did{
	0xD41F: {
		ID: 0xD41F, Name: "Engine speed", Unit: "rpm", Group: 0xD4,
		ExpectedDataLen: 2,
		Decode: func(d []byte) (float64, error) {
			if len(d) < 2 {
				return 0, fmt.Errorf("engine speed: want 2 bytes, got %d", len(d))
			}
			return float64(uint16(d[0])<<8|uint16(d[1])) / 4.0, nil
		},
	},
	0xD400: {
		ID: 0xD400, Name: "Coolant temperature", Unit: "°C", Group: 0xD4,
		ExpectedDataLen: 1,
		Decode: func(d []byte) (float64, error) {
			if len(d) < 1 {
				return 0, fmt.Errorf("coolant temperature: want 1 byte, got %d", len(d))
			}
			return float64(d[0]) - 40, nil
		},
	},
	0xD410: {
		ID: 0xD410, Name: "Battery voltage", Unit: "V", Group: 0xD4,
		ExpectedDataLen: 2,
		Decode: func(d []byte) (float64, error) {
			if len(d) < 2 {
				return 0, fmt.Errorf("battery voltage: want 2 bytes, got %d", len(d))
			}
			return float64(uint16(d[0])<<8|uint16(d[1])) * 0.001, nil
		},
	},
	0xD482: {
		ID: 0xD482, Name: "Injector corrections", Unit: "mm³", Group: 0xD4,
		ExpectedDataLen: 8,
		// decoded specially by the engine into four scalars; no single
		// Decode makes sense here.
	},
	0xD546: {
		ID: 0xD546, Name: "DPF soot loading", Unit: "g/l", Group: 0xD5,
		ExpectedDataLen: 2,
		Decode: func(d []byte) (float64, error) {
			if len(d) < 2 {
				return 0, fmt.Errorf("dpf soot loading: want 2 bytes, got %d", len(d))
			}
			return float64(uint16(d[0])<<8|uint16(d[1])) * 0.01, nil
		},
	},
	0xD7C4: {
		ID: 0xD7C4, Name: "DPF regeneration status", Unit: "", Group: 0xD7,
		ExpectedDataLen: 1,
		Decode: func(d []byte) (float64, error) {
			if len(d) < 1 {
				return 0, fmt.Errorf("dpf regeneration status: want 1 byte, got %d", len(d))
			}
			return float64(d[0]), nil
		},
	},
	0xF080: {ID: 0xF080, Name: "Part number", Unit: "", Group: 0xF0, ExpectedDataLen: 0},
	0xF0FE: {ID: 0xF0FE, Name: "Calibration identification", Unit: "", Group: 0xF0, ExpectedDataLen: 0},
	0xF091: {ID: 0xF091, Name: "Hardware number", Unit: "", Group: 0xF0, ExpectedDataLen: 0},
}

// ByID looks up a DID, returning ok=false for anything not catalogued.
func ByID(id uint16) (Did, bool) {
	d, ok := DIDs[id]
	return d, ok
}

// Format renders a decoded scalar according to its unit's decimal
// precision: zero decimals for rpm/km/unitless, one for °C/%/general,
// two for V/mm³ (spec.md §4.5).
func Format(unit string, value float64) string {
	var decimals int
	switch unit {
	case "rpm", "km", "":
		decimals = 0
	case "V", "mm³":
		decimals = 2
	default: // °C, %, and general
		decimals = 1
	}
	if unit == "" {
		return fmt.Sprintf("%.*f", decimals, value)
	}
	return fmt.Sprintf("%.*f %s", decimals, value, unit)
}
