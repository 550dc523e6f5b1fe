// Package catalog holds the static, read-only tables the rest of the core
// is built around: ECU addresses, DID definitions and decoders, DTC
// descriptions, and the DPF regeneration status table. All of it is
// initialized once at package load and never mutated, matching spec.md
// §9's "treat catalogs as program-wide constants" guidance.
package catalog

import "fmt"

// EcuAddress identifies one ECU on the bus by its tx/rx CAN identifier
// pair. tx and rx are fixed-width uppercase 3-hex-digit strings; neither
// is ever the 0x7DF broadcast id.
type EcuAddress struct {
	Code string // short tag, e.g. "ECM"
	Name string
	Tx   string // 11-bit CAN id, 3 hex nibbles, uppercase
	Rx   string
}

// ECUs is the fixed ECU address table. The canonical rx for a standard tx
// in the 0x7Ex range is tx+8; BSI is the manufacturer-specific 0x765/0x76D
// pair called out in spec.md §3.
var ECUs = []EcuAddress{
	{Code: "ECM", Name: "Engine Control Module", Tx: "7E0", Rx: "7E8"},
	{Code: "TCM", Name: "Transmission Control Module", Tx: "7E1", Rx: "7E9"},
	{Code: "BSI", Name: "Built-In Systems Interface", Tx: "765", Rx: "76D"},
}

// ByCode looks up an ECU address by its short tag.
func ByCode(code string) (EcuAddress, bool) {
	for _, e := range ECUs {
		if e.Code == code {
			return e, true
		}
	}
	return EcuAddress{}, false
}

// ByRx looks up an ECU address by its rx (response) CAN id.
func ByRx(rx string) (EcuAddress, bool) {
	for _, e := range ECUs {
		if e.Rx == rx {
			return e, true
		}
	}
	return EcuAddress{}, false
}

// TxToRx resolves the receive filter for a transmit header, consulting the
// table first and falling back to the tx+8 mod 0x1000 convention spec.md
// §4.2 describes for the AdapterController's ATSH interception.
func TxToRx(tx string) string {
	for _, e := range ECUs {
		if e.Tx == tx {
			return e.Rx
		}
	}
	var v uint64
	fmt.Sscanf(tx, "%X", &v)
	return fmt.Sprintf("%03X", (v+8)%0x1000)
}
