// Package channel defines the message-framed transport the transfer engine
// runs on, plus an in-memory implementation.
package channel

// Channel is a reliable, ordered, message-framed, bidirectional link.
// Send must be safe for concurrent use. Handlers registered with the On*
// methods replace any previous handler.
type Channel interface {
	IsOpen() bool
	Send(frame []byte) error
	// BufferedAmount approximates the bytes queued for sending but not yet
	// handed to the network.
	BufferedAmount() uint64

	OnOpen(f func())
	OnClose(f func())
	OnError(f func(err error))
	OnMessage(f func(frame []byte))

	Close() error
}
