package adapter

// Phase is the connection lifecycle state of an AdapterController.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
	Initializing
	Ready
	Errored
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Initializing:
		return "Initializing"
	case Ready:
		return "Ready"
	case Errored:
		return "Errored"
	default:
		return "Unknown"
	}
}

// HeaderMode is the programmed source-address header. Once the bus is
// active it is always Broadcast (spec.md §3) — the controller never lets
// a caller's ATSH leave it any other way.
type HeaderMode int

const (
	HeaderUnset HeaderMode = iota
	HeaderBroadcast
)

// State is a read-only snapshot of AdapterState. The controller mutates it
// only under its own lock; callers get copies.
type State struct {
	Phase             Phase
	HeaderMode        HeaderMode
	RxFilter          string // last ATCRA value
	FlowControlHeader string // last ATFCSH value
	Echo              bool
	Linefeed          bool
	HeadersShown      bool
	SpacesShown       bool
	CanBusActive      bool
	AdapterVersion    string // parsed from the ATZ reply, e.g. "ELM327 v1.5"
}
