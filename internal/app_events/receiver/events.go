package receiver

import (
	appevents "github.com/rescp17/dropline/internal/app_events"
)

// --- UI to App Events ---

// AcceptFileRequestEvent is sent when the user agrees to receive the file.
type AcceptFileRequestEvent struct {
	appevents.Event
}

// RejectFileRequestEvent is sent when the user rejects the file.
type RejectFileRequestEvent struct {
	appevents.Event
}

// --- App to UI Messages ---

// ListeningMsg is sent once the receiver is reachable.
type ListeningMsg struct {
	ID   string
	Addr string
}

type PeerConnectedMsg struct{}

type PeerDisconnectedMsg struct{}

// FileSavedMsg reports where a completed file was written.
type FileSavedMsg struct {
	Name string
	Path string
	Size int64
}
