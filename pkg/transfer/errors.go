package transfer

import "errors"

var (
	// ErrMalformedFrame marks a frame that could not be decoded. It never
	// closes the channel; the frame is dropped.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrConnectionTimeout means the channel did not open within the connect timeout.
	ErrConnectionTimeout = errors.New("connection timed out")

	// ErrConnectionLost means an open channel closed or errored.
	ErrConnectionLost = errors.New("connection lost")

	// ErrProtocolViolation means a well-formed frame arrived that the current
	// phase cannot accept.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrInvalidOperation is returned for caller operations that the current
	// phase does not allow. No state changes when it is returned.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrRejected reports that the peer declined the offer.
	ErrRejected = errors.New("offer rejected by peer")

	// ErrCancelled reports that a running transfer was cancelled by either side.
	ErrCancelled = errors.New("transfer cancelled")

	ErrUnknownSerializer = errors.New("unknown serializer")
)
