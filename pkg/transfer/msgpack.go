package transfer

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgpackSerializer encodes control messages as MessagePack, which keeps
// them compact on the data channel.
type MsgpackSerializer struct{}

func NewMsgpackSerializer() *MsgpackSerializer {
	return &MsgpackSerializer{}
}

func (m *MsgpackSerializer) Marshal(msg *Message) ([]byte, error) {
	return msgpack.Marshal(&envelope{
		Type:   msg.Type,
		File:   msg.File,
		Reason: msg.Reason,
	})
}

func (m *MsgpackSerializer) Unmarshal(data []byte) (*Message, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &Message{
		Type:   env.Type,
		File:   env.File,
		Reason: env.Reason,
	}, nil
}

func (m *MsgpackSerializer) Name() string {
	return "msgpack"
}

func (m *MsgpackSerializer) IsBinary() bool {
	return true
}
