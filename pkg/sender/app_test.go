package sender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	senderEvent "github.com/rescp17/dropline/internal/app_events/sender"
	"github.com/rescp17/dropline/pkg/channel"
	"github.com/rescp17/dropline/pkg/discovery"
	"github.com/rescp17/dropline/pkg/session"
	"github.com/rescp17/dropline/pkg/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockDiscoveryAdapter for testing
type MockDiscoveryAdapter struct {
	services []discovery.ServiceInfo
}

func (m *MockDiscoveryAdapter) Announce(ctx context.Context, service discovery.ServiceInfo) error {
	return nil // Not used in sender tests
}

func (m *MockDiscoveryAdapter) Discover(ctx context.Context, service string) <-chan discovery.DiscoveryResult {
	ch := make(chan discovery.DiscoveryResult, 1)
	if m.services != nil {
		ch <- discovery.DiscoveryResult{Services: m.services}
	}
	go func() {
		defer close(ch)
		<-ctx.Done() // Wait for context cancellation
	}()
	return ch
}

// pipeLink stands in for a WebRTC connection: Establish opens the pipe.
type pipeLink struct {
	pipe *channel.Pipe
	err  error
}

func (l *pipeLink) Channel() channel.Channel { return l.pipe.A() }

func (l *pipeLink) Establish(context.Context) error {
	if l.err != nil {
		return l.err
	}
	l.pipe.Open()
	return nil
}

func (l *pipeLink) Close() error { return l.pipe.Close() }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Transfer.StartDelay = 5 * time.Millisecond
	cfg.Transfer.BackpressureRetry = 5 * time.Millisecond
	cfg.Transfer.HeartbeatInterval = time.Hour
	cfg.Transfer.ConnectTimeout = 2 * time.Second
	cfg.ResolveTimeout = time.Second
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

// peer is the receiving end of a pipeLink.
type peer struct {
	session *session.Session
	dialed  []string
	mu      sync.Mutex
}

// withPeer wires app to a fresh pipe per dial and runs a receiver session on
// the far end that answers every offer with accept.
func withPeer(t *testing.T, app *App, accept bool) *peer {
	t.Helper()
	p := &peer{}
	app.SetDialer(func(receiverURL string) (Link, error) {
		pipe := channel.NewPipe()
		s, err := session.Open(session.Receiver, pipe.B(), testConfig().Transfer,
			session.WithLogger(testConfig().Logger))
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { s.Close() })

		p.mu.Lock()
		p.session = s
		p.dialed = append(p.dialed, receiverURL)
		p.mu.Unlock()

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := s.WaitPhase(ctx, session.WaitingApproval); err == nil {
				s.RespondToOffer(accept)
			}
		}()
		return &pipeLink{pipe: pipe}, nil
	})
	return p
}

func (p *peer) Session() *session.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func TestSendFile_Delivers(t *testing.T) {
	app := NewApp(nil, testConfig())
	p := withPeer(t, app, true)
	data := testData(100_000)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.SendFile(ctx, "127.0.0.1:8988", writeFile(t, data)))

	receiver := p.Session()
	phase, err := receiver.WaitPhase(ctx, session.Completed)
	require.NoError(t, err)
	require.Equal(t, session.Completed, phase)

	artifact, err := receiver.Artifact()
	require.NoError(t, err)
	assert.Equal(t, "report.bin", artifact.Name)
	got, err := io.ReadAll(artifact.Reader())
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, []string{"http://127.0.0.1:8988"}, p.dialed)
}

func TestSendFile_Rejected(t *testing.T) {
	app := NewApp(nil, testConfig())
	withPeer(t, app, false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := app.SendFile(ctx, "127.0.0.1:8988", writeFile(t, testData(4096)))
	assert.ErrorIs(t, err, transfer.ErrRejected)
}

func TestSendFile_EstablishFails(t *testing.T) {
	app := NewApp(nil, testConfig())
	busy := errors.New("receiver is busy")
	app.SetDialer(func(string) (Link, error) {
		return &pipeLink{pipe: channel.NewPipe(), err: busy}, nil
	})

	err := app.SendFile(context.Background(), "127.0.0.1:8988", writeFile(t, testData(10)))
	assert.ErrorIs(t, err, busy)

	app.mu.Lock()
	defer app.mu.Unlock()
	assert.Nil(t, app.active)
}

func TestSendFile_MissingFile(t *testing.T) {
	app := NewApp(nil, testConfig())
	dialed := false
	app.SetDialer(func(string) (Link, error) {
		dialed = true
		return nil, errors.New("unexpected dial")
	})

	err := app.SendFile(context.Background(), "127.0.0.1:8988", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.False(t, dialed)
}

func TestResolveURL(t *testing.T) {
	adapter := &MockDiscoveryAdapter{services: []discovery.ServiceInfo{
		{Name: "3f2a9c1b", Addr: net.ParseIP("192.168.1.20"), Port: 8988},
	}}
	app := NewApp(adapter, testConfig())

	url, err := app.ResolveURL(context.Background(), "10.0.0.2:9000")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9000", url)

	url, err = app.ResolveURL(context.Background(), "3f2a9c1b")
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:8988", url)

	_, err = app.ResolveURL(context.Background(), "nobody")
	assert.ErrorIs(t, err, discovery.ErrNotFound)

	_, err = NewApp(nil, testConfig()).ResolveURL(context.Background(), "3f2a9c1b")
	assert.ErrorIs(t, err, discovery.ErrNotFound)
}

func TestRun_ForwardsDiscoveryAndTransfers(t *testing.T) {
	adapter := &MockDiscoveryAdapter{services: []discovery.ServiceInfo{
		{Name: "3f2a9c1b", Addr: net.ParseIP("127.0.0.1"), Port: 8988},
	}}
	app := NewApp(adapter, testConfig())
	withPeer(t, app, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	var found senderEvent.FoundServicesMsg
	require.Eventually(t, func() bool {
		select {
		case msg := <-app.UIMessages():
			var ok bool
			found, ok = msg.(senderEvent.FoundServicesMsg)
			return ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	require.Len(t, found.Services, 1)

	app.AppEvents() <- senderEvent.SendFileMsg{Target: found.Services[0].Address(), Path: writeFile(t, testData(5000))}

	var finished senderEvent.TransferFinishedMsg
	require.Eventually(t, func() bool {
		select {
		case msg := <-app.UIMessages():
			var ok bool
			finished, ok = msg.(senderEvent.TransferFinishedMsg)
			return ok
		default:
			return false
		}
	}, 5*time.Second, 5*time.Millisecond)
	assert.NoError(t, finished.Err)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Error("App did not shut down within 3 seconds")
	}
}

func TestGracefulShutdown(t *testing.T) {
	app := NewApp(&MockDiscoveryAdapter{}, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	// Cancel the main context to trigger shutdown
	cancel()

	// Wait for the app to shut down gracefully
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Error("App did not shut down within 3 seconds")
	}
}

func TestDialWebRTC_Concurrent(t *testing.T) {
	app := NewApp(&MockDiscoveryAdapter{}, testConfig())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link, err := app.dialWebRTC("http://127.0.0.1:1")
			if assert.NoError(t, err) {
				assert.NotNil(t, link.Channel())
				assert.NoError(t, link.Close())
			}
		}()
	}
	wg.Wait()
}
