package transfer

import (
	"fmt"
)

// Every frame starts with one kind byte. Control frames carry a serialized
// envelope, chunk frames carry raw file bytes.
const (
	frameControl byte = 0x01
	frameChunk   byte = 0x02
)

// Codec turns messages into data channel frames and back.
type Codec struct {
	serializer   MessageSerializer
	maxChunkSize int
}

func NewCodec(serializer MessageSerializer, maxChunkSize int) *Codec {
	if serializer == nil {
		serializer = NewJSONSerializer()
	}
	return &Codec{
		serializer:   serializer,
		maxChunkSize: maxChunkSize,
	}
}

func (c *Codec) Serializer() MessageSerializer {
	return c.serializer
}

func (c *Codec) Encode(msg *Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	if msg.Type == ChunkData {
		if len(msg.Data) == 0 {
			return nil, fmt.Errorf("encode: empty chunk")
		}
		if len(msg.Data) > c.maxChunkSize {
			return nil, fmt.Errorf("encode: chunk of %d bytes exceeds %d", len(msg.Data), c.maxChunkSize)
		}
		frame := make([]byte, 1+len(msg.Data))
		frame[0] = frameChunk
		copy(frame[1:], msg.Data)
		return frame, nil
	}
	if !msg.Type.IsControl() {
		return nil, fmt.Errorf("encode: unknown message type %q", msg.Type)
	}
	payload, err := c.serializer.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return append([]byte{frameControl}, payload...), nil
}

// Decode parses one frame. Every failure wraps ErrMalformedFrame.
func (c *Codec) Decode(frame []byte) (*Message, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedFrame)
	}
	payload := frame[1:]
	switch frame[0] {
	case frameChunk:
		if len(payload) == 0 {
			return nil, fmt.Errorf("%w: chunk without data", ErrMalformedFrame)
		}
		if len(payload) > c.maxChunkSize {
			return nil, fmt.Errorf("%w: chunk of %d bytes exceeds %d", ErrMalformedFrame, len(payload), c.maxChunkSize)
		}
		data := make([]byte, len(payload))
		copy(data, payload)
		return NewChunk(data), nil
	case frameControl:
		msg, err := c.serializer.Unmarshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if err := validateControl(msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame kind 0x%02x", ErrMalformedFrame, frame[0])
	}
}

func validateControl(msg *Message) error {
	if !msg.Type.IsControl() {
		return fmt.Errorf("%w: unknown message type %q", ErrMalformedFrame, msg.Type)
	}
	if msg.Type == FileOffer {
		if msg.File == nil {
			return fmt.Errorf("%w: file offer without descriptor", ErrMalformedFrame)
		}
		if err := msg.File.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
	}
	return nil
}

// Validate checks the fields a receiver relies on.
func (d FileDescriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	if d.Size < 0 {
		return fmt.Errorf("descriptor has negative size %d", d.Size)
	}
	return nil
}
