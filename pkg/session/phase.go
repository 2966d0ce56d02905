package session

// Phase is the state of one session's transfer state machine.
type Phase int

const (
	// Idle is the state before a connection and after a reset.
	Idle Phase = iota
	// Connecting only exists on the sender, between the connect request
	// and the channel opening.
	Connecting
	// Connected means the channel is open and no offer is pending.
	Connected
	WaitingApproval
	Transferring
	Completed
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case WaitingApproval:
		return "waiting_approval"
	case Transferring:
		return "transferring"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether p ends the current file's lifecycle. A
// terminal session only leaves it through Reset.
func (p Phase) IsTerminal() bool {
	return p == Completed || p == Failed
}

type Role int

const (
	Sender Role = iota
	Receiver
)

func (r Role) String() string {
	switch r {
	case Sender:
		return "sender"
	case Receiver:
		return "receiver"
	default:
		return "unknown"
	}
}
