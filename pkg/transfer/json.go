package transfer

import (
	"encoding/json"
)

type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (j *JSONSerializer) Marshal(msg *Message) ([]byte, error) {
	return json.Marshal(envelope{
		Type:   msg.Type,
		File:   msg.File,
		Reason: msg.Reason,
	})
}

func (j *JSONSerializer) Unmarshal(data []byte) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &Message{
		Type:   env.Type,
		File:   env.File,
		Reason: env.Reason,
	}, nil
}

func (j *JSONSerializer) Name() string {
	return "json"
}

func (j *JSONSerializer) IsBinary() bool {
	return false
}
