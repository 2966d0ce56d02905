package sender

import (
	appevents "github.com/rescp17/dropline/internal/app_events"
	"github.com/rescp17/dropline/pkg/discovery"
)

// --- App Events (from TUI to App) ---

// SendFileMsg asks the app to send Path to Target, either a host:port or
// a receiver id to look up.
type SendFileMsg struct {
	appevents.Event
	Target string
	Path   string
}

// ForceStartMsg starts sending without waiting for the receiver's approval.
type ForceStartMsg struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = (*SendFileMsg)(nil)
	_ appevents.AppEvent = (*ForceStartMsg)(nil)
)

// --- UI Messages (from App to TUI) ---

type FoundServicesMsg struct {
	Services []discovery.ServiceInfo
}

// TransferFinishedMsg is sent once SendFile returns. Err is nil when the
// receiver got the whole file.
type TransferFinishedMsg struct {
	Err error
}
