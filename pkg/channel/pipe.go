package channel

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("channel closed")

type pipeState int

const (
	pipeConnecting pipeState = iota
	pipeOpen
	pipeClosed
)

// Pipe joins two Endpoints in memory. Frames are delivered in order on a
// per-endpoint goroutine, and the bytes still waiting for delivery count
// as the sender's BufferedAmount.
type Pipe struct {
	mu    sync.Mutex
	state pipeState
	a, b  *Endpoint
}

// NewPipe returns a connecting pipe. Call Open to open both ends.
func NewPipe() *Pipe {
	p := &Pipe{}
	p.a = newEndpoint(p)
	p.b = newEndpoint(p)
	p.a.peer = p.b
	p.b.peer = p.a
	return p
}

func (p *Pipe) A() *Endpoint { return p.a }
func (p *Pipe) B() *Endpoint { return p.b }

// Open opens both endpoints and fires their open handlers.
func (p *Pipe) Open() {
	p.mu.Lock()
	if p.state != pipeConnecting {
		p.mu.Unlock()
		return
	}
	p.state = pipeOpen
	p.mu.Unlock()

	go p.a.deliver()
	go p.b.deliver()
	p.a.fireOpen()
	p.b.fireOpen()
}

// Close closes both endpoints, drops undelivered frames and fires the close
// handlers.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.state == pipeClosed {
		p.mu.Unlock()
		return nil
	}
	p.state = pipeClosed
	p.mu.Unlock()

	for _, e := range []*Endpoint{p.a, p.b} {
		e.mu.Lock()
		e.inbox = nil
		e.inboxBytes = 0
		e.mu.Unlock()
		close(e.done)
	}
	p.a.fireClose()
	p.b.fireClose()
	return nil
}

func (p *Pipe) isOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == pipeOpen
}

// Endpoint is one side of a Pipe and implements Channel.
type Endpoint struct {
	pipe *Pipe
	peer *Endpoint

	mu         sync.Mutex
	onOpen     func()
	onClose    func()
	onError    func(error)
	onMessage  func([]byte)
	inbox      [][]byte
	inboxBytes uint64
	paused     bool
	sent       int

	wake chan struct{}
	done chan struct{}
}

var _ Channel = (*Endpoint)(nil)

func newEndpoint(p *Pipe) *Endpoint {
	return &Endpoint{
		pipe: p,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (e *Endpoint) IsOpen() bool {
	return e.pipe.isOpen()
}

// Send queues a copy of frame for delivery to the peer.
func (e *Endpoint) Send(frame []byte) error {
	if !e.pipe.isOpen() {
		return ErrClosed
	}
	data := make([]byte, len(frame))
	copy(data, frame)

	e.mu.Lock()
	e.sent++
	e.mu.Unlock()

	p := e.peer
	p.mu.Lock()
	p.inbox = append(p.inbox, data)
	p.inboxBytes += uint64(len(data))
	p.mu.Unlock()
	p.signal()
	return nil
}

// BufferedAmount is the number of bytes sent by e that the peer has not
// consumed yet.
func (e *Endpoint) BufferedAmount() uint64 {
	p := e.peer
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inboxBytes
}

// Sent is the number of frames sent from this endpoint.
func (e *Endpoint) Sent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sent
}

// PauseDelivery stops handing frames to this endpoint's message handler.
// Frames keep queuing, which raises the peer's BufferedAmount.
func (e *Endpoint) PauseDelivery() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *Endpoint) ResumeDelivery() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.signal()
}

// Fail reports err on this endpoint and then closes the pipe, the way a
// transport error tears down a data channel.
func (e *Endpoint) Fail(err error) {
	e.mu.Lock()
	f := e.onError
	e.mu.Unlock()
	if f != nil {
		f(err)
	}
	e.pipe.Close()
}

func (e *Endpoint) Close() error {
	return e.pipe.Close()
}

func (e *Endpoint) OnOpen(f func()) {
	e.mu.Lock()
	e.onOpen = f
	e.mu.Unlock()
}

func (e *Endpoint) OnClose(f func()) {
	e.mu.Lock()
	e.onClose = f
	e.mu.Unlock()
}

func (e *Endpoint) OnError(f func(err error)) {
	e.mu.Lock()
	e.onError = f
	e.mu.Unlock()
}

func (e *Endpoint) OnMessage(f func(frame []byte)) {
	e.mu.Lock()
	e.onMessage = f
	e.mu.Unlock()
	e.signal()
}

func (e *Endpoint) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Endpoint) fireOpen() {
	e.mu.Lock()
	f := e.onOpen
	e.mu.Unlock()
	if f != nil {
		f()
	}
}

func (e *Endpoint) fireClose() {
	e.mu.Lock()
	f := e.onClose
	e.mu.Unlock()
	if f != nil {
		f()
	}
}

// deliver hands queued frames to the message handler, one at a time, in order.
func (e *Endpoint) deliver() {
	for {
		select {
		case <-e.done:
			return
		case <-e.wake:
		}

		for {
			e.mu.Lock()
			if e.paused || len(e.inbox) == 0 || e.onMessage == nil {
				e.mu.Unlock()
				break
			}
			frame := e.inbox[0]
			e.inbox[0] = nil
			e.inbox = e.inbox[1:]
			f := e.onMessage
			e.mu.Unlock()

			select {
			case <-e.done:
				return
			default:
			}
			f(frame)

			// The frame counts as buffered until the handler has taken it.
			e.mu.Lock()
			e.inboxBytes -= min(e.inboxBytes, uint64(len(frame)))
			e.mu.Unlock()
		}
	}
}
