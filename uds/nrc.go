package uds

import "fmt"

// Negative response codes this core is expected to see (spec.md §4.4);
// anything else still decodes, it just falls back to its hex form.
const (
	NRCGeneralReject                          byte = 0x10
	NRCServiceNotSupported                    byte = 0x11
	NRCSubFunctionNotSupported                byte = 0x12
	NRCIncorrectMessageLengthOrInvalidFormat  byte = 0x13
	NRCConditionsNotCorrect                   byte = 0x22
	NRCRequestOutOfRange                      byte = 0x31
	NRCSubFunctionNotSupportedInActiveSession byte = 0x7E
	NRCServiceNotSupportedInActiveSession     byte = 0x7F
)

var nrcNames = map[byte]string{
	NRCGeneralReject:                          "General Reject",
	NRCServiceNotSupported:                    "Service Not Supported",
	NRCSubFunctionNotSupported:                "SubFunction Not Supported",
	NRCIncorrectMessageLengthOrInvalidFormat:  "Incorrect Message Length Or Invalid Format",
	NRCConditionsNotCorrect:                   "Conditions Not Correct",
	NRCRequestOutOfRange:                      "Request Out Of Range",
	NRCSubFunctionNotSupportedInActiveSession: "SubFunction Not Supported In Active Session",
	NRCServiceNotSupportedInActiveSession:     "Service Not Supported In Active Session",
}

// NRCLabel renders an NRC byte as a name, falling back to its hex form.
func NRCLabel(nrc byte) string {
	if name, ok := nrcNames[nrc]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", nrc)
}
