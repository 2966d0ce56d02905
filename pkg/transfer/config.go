package transfer

import (
	"errors"
	"fmt"
	"time"
)

// TransferConfig holds the tuning constants of the transfer engine. Both
// endpoints must use compatible values; nothing here is negotiated.
type TransferConfig struct {
	ChunkSize int `json:"chunk_size"` // Size of each data chunk

	// HighWaterMark is the outbound backlog, in bytes, above which the
	// sender stops producing chunks until the channel drains.
	HighWaterMark uint64 `json:"high_water_mark"`

	BackpressureRetry time.Duration `json:"backpressure_retry"`
	StartDelay        time.Duration `json:"start_delay"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	ConnectTimeout    time.Duration `json:"connect_timeout"`

	// Serializer names the control message encoding: "json" or "msgpack".
	Serializer string `json:"serializer"`

	EventBufferSize int `json:"event_buffer_size"`
}

const (
	DefaultChunkSize = 32 * 1024
	MaxChunkSize     = 256 * 1024
	MinChunkSize     = 1024

	DefaultHighWaterMark = 1024 * 1024
)

// DefaultTransferConfig returns a configuration with sensible defaults
func DefaultTransferConfig() *TransferConfig {
	return &TransferConfig{
		ChunkSize:         DefaultChunkSize,
		HighWaterMark:     DefaultHighWaterMark,
		BackpressureRetry: 50 * time.Millisecond,
		StartDelay:        200 * time.Millisecond,
		HeartbeatInterval: 2 * time.Second,
		ConnectTimeout:    10 * time.Second,
		Serializer:        "json",
		EventBufferSize:   64,
	}
}

// Validate checks if the configuration values are valid
func (tc *TransferConfig) Validate() error {
	if tc.ChunkSize < MinChunkSize || tc.ChunkSize > MaxChunkSize {
		return fmt.Errorf("chunk_size must be between %d and %d", MinChunkSize, MaxChunkSize)
	}
	if tc.HighWaterMark < uint64(tc.ChunkSize) {
		return errors.New("high_water_mark cannot be less than chunk_size")
	}
	if tc.BackpressureRetry <= 0 {
		return errors.New("backpressure_retry must be positive")
	}
	if tc.StartDelay < 0 {
		return errors.New("start_delay cannot be negative")
	}
	if tc.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval must be positive")
	}
	if tc.ConnectTimeout <= 0 {
		return errors.New("connect_timeout must be positive")
	}
	if tc.EventBufferSize <= 0 {
		return errors.New("event_buffer_size must be positive")
	}
	if _, err := tc.NewSerializer(); err != nil {
		return err
	}
	return nil
}

// NewSerializer returns the control message serializer named by the config.
func (tc *TransferConfig) NewSerializer() (MessageSerializer, error) {
	switch tc.Serializer {
	case "", "json":
		return NewJSONSerializer(), nil
	case "msgpack":
		return NewMsgpackSerializer(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSerializer, tc.Serializer)
	}
}

// NewCodec builds the frame codec described by the config.
func (tc *TransferConfig) NewCodec() (*Codec, error) {
	serializer, err := tc.NewSerializer()
	if err != nil {
		return nil, err
	}
	return NewCodec(serializer, tc.ChunkSize), nil
}
