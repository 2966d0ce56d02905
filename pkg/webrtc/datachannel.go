package webrtc

import (
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/dropline/pkg/channel"
)

// DataChannel adapts a pion data channel to channel.Channel. Frames are
// sent as binary messages.
type DataChannel struct {
	dc *webrtc.DataChannel
}

var _ channel.Channel = (*DataChannel)(nil)

func NewDataChannel(dc *webrtc.DataChannel) *DataChannel {
	return &DataChannel{dc: dc}
}

func (d *DataChannel) Label() string {
	return d.dc.Label()
}

func (d *DataChannel) IsOpen() bool {
	return d.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (d *DataChannel) Send(frame []byte) error {
	return d.dc.Send(frame)
}

func (d *DataChannel) BufferedAmount() uint64 {
	return d.dc.BufferedAmount()
}

func (d *DataChannel) OnOpen(f func()) {
	d.dc.OnOpen(f)
}

func (d *DataChannel) OnClose(f func()) {
	d.dc.OnClose(f)
}

func (d *DataChannel) OnError(f func(err error)) {
	d.dc.OnError(f)
}

func (d *DataChannel) OnMessage(f func(frame []byte)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		// Frames are handled on another goroutine after this returns.
		frame := make([]byte, len(msg.Data))
		copy(frame, msg.Data)
		f(frame)
	})
}

func (d *DataChannel) Close() error {
	return d.dc.Close()
}
