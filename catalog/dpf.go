package catalog

// DpfStatusTable maps the low nibble of DID 0xD7C4's payload byte to a
// human-readable DPF regeneration state. The shape of this table is not
// pinned down by spec.md §3/§4 beyond naming it as a Catalogs
// responsibility; decided in SPEC_FULL.md §9.
var DpfStatusTable = map[byte]string{
	0x0: "Inactive",
	0x1: "Requested",
	0x2: "Active",
	0x3: "Completed",
	0x4: "Interrupted",
}

// DpfStatusName resolves a raw status byte to its table entry, defaulting
// to "Unknown" for anything not catalogued.
func DpfStatusName(raw byte) string {
	if name, ok := DpfStatusTable[raw&0x0F]; ok {
		return name
	}
	return "Unknown"
}
