package transfer

type MessageType string

const (
	// Handshake is reserved for capability negotiation. Nothing produces it yet.
	Handshake     MessageType = "handshake"
	FileOffer     MessageType = "file_offer"
	Approve       MessageType = "approve"
	Reject        MessageType = "reject"
	TransferBegin MessageType = "transfer_begin"
	ChunkData     MessageType = "chunk"
	TransferEnd   MessageType = "transfer_end"
	Heartbeat     MessageType = "heartbeat"
)

var controlTypes = map[MessageType]bool{
	Handshake:     true,
	FileOffer:     true,
	Approve:       true,
	Reject:        true,
	TransferBegin: true,
	TransferEnd:   true,
	Heartbeat:     true,
}

// IsControl reports whether t is a structured (non-chunk) message type.
func (t MessageType) IsControl() bool {
	return controlTypes[t]
}

// FileDescriptor describes the single file offered in a session.
// Size is the exact number of bytes that will be sent as chunks.
type FileDescriptor struct {
	Name      string `json:"name" msgpack:"name"`
	Size      int64  `json:"size" msgpack:"size"`
	MediaType string `json:"media_type" msgpack:"media_type"`
	// Checksum is an optional hex SHA-256 of the content.
	Checksum string `json:"checksum,omitempty" msgpack:"checksum,omitempty"`
}

// Message is one protocol message. File is set for FileOffer, Data for
// ChunkData and Reason, optionally, for Reject.
type Message struct {
	Type   MessageType
	File   *FileDescriptor
	Data   []byte
	Reason string
}

// envelope is the serialized form of a control message.
type envelope struct {
	Type   MessageType     `json:"type" msgpack:"type"`
	File   *FileDescriptor `json:"file,omitempty" msgpack:"file,omitempty"`
	Reason string          `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

type MessageSerializer interface {
	Marshal(message *Message) ([]byte, error)
	Unmarshal(data []byte) (*Message, error)
	Name() string
	IsBinary() bool
}

func NewControl(t MessageType) *Message {
	return &Message{Type: t}
}

func NewFileOffer(desc FileDescriptor) *Message {
	return &Message{Type: FileOffer, File: &desc}
}

func NewReject(reason string) *Message {
	return &Message{Type: Reject, Reason: reason}
}

func NewChunk(data []byte) *Message {
	return &Message{Type: ChunkData, Data: data}
}
