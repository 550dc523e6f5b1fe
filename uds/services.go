package uds

import "fmt"

// UDS service identifiers (ISO 14229-1), limited to the subset this core
// speaks (spec.md §4.4). Services the host never sends — security access,
// routine control, memory/transfer services — are deliberately absent.
const (
	ServiceDiagnosticSessionControl   byte = 0x10
	ServiceClearDiagnosticInformation byte = 0x14
	ServiceReadDTCInformation         byte = 0x19
	ServiceReadDataByIdentifier       byte = 0x22
	ServiceTesterPresent              byte = 0x3E
)

var serviceNames = map[byte]string{
	ServiceDiagnosticSessionControl:   "Diagnostic Session Control",
	ServiceClearDiagnosticInformation: "Clear Diagnostic Information",
	ServiceReadDTCInformation:         "Read DTC Information",
	ServiceReadDataByIdentifier:       "Read Data By Identifier",
	ServiceTesterPresent:              "Tester Present",
}

// ServiceLabel renders a service byte as a name, falling back to its hex
// form for anything outside the subset above.
func ServiceLabel(service byte) string {
	if name, ok := serviceNames[service]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", service)
}

// Diagnostic session sub-functions for service 0x10. Programming session
// (0x02) is a non-goal and deliberately absent.
const (
	SessionDefault  byte = 0x01
	SessionExtended byte = 0x03
)

// ReadDTCInformation sub-function used throughout: reportDTCByStatusMask.
const SubFunctionReportDTCByStatusMask byte = 0x02

// ClearDiagnosticInformation's group-of-DTC parameter: all groups.
var ClearAllDTCs = [3]byte{0xFF, 0xFF, 0xFF}
