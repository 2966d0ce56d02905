package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rescp17/dropline/api"
	appevents "github.com/rescp17/dropline/internal/app_events"
	senderEvent "github.com/rescp17/dropline/internal/app_events/sender"
	"github.com/rescp17/dropline/pkg/channel"
	"github.com/rescp17/dropline/pkg/discovery"
	"github.com/rescp17/dropline/pkg/fileInfo"
	"github.com/rescp17/dropline/pkg/session"
	"github.com/rescp17/dropline/pkg/transfer"
	webrtcPkg "github.com/rescp17/dropline/pkg/webrtc"
	"golang.org/x/sync/errgroup"
)

// Link is a transport being brought up for one transfer.
type Link interface {
	Channel() channel.Channel
	Establish(ctx context.Context) error
	Close() error
}

// Dialer prepares a link to the receiver API at receiverURL. The link's
// channel is not open until Establish succeeds.
type Dialer func(receiverURL string) (Link, error)

type Config struct {
	Transfer *transfer.TransferConfig
	WebRTC   webrtcPkg.Config
	// ResolveTimeout bounds the discovery lookup when the target is a
	// receiver id.
	ResolveTimeout time.Duration
	// DrainTimeout bounds the wait for the last frames to leave after the
	// transfer completes.
	DrainTimeout time.Duration
	Logger       *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		Transfer:       transfer.DefaultTransferConfig(),
		ResolveTimeout: 10 * time.Second,
		DrainTimeout:   5 * time.Second,
	}
}

// App is the main application logic controller for the sender.
type App struct {
	serviceID  string
	cfg        Config
	discoverer discovery.Adapter
	webrtcAPI  *webrtcPkg.WebRTCAPI
	dial       Dialer
	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
	logger     *slog.Logger

	mu         sync.Mutex
	active     *session.Session
	transferWG sync.WaitGroup // Track active transfer goroutines
}

// NewApp creates a new sender application instance.
func NewApp(adapter discovery.Adapter, cfg Config) *App {
	if cfg.Transfer == nil {
		cfg.Transfer = transfer.DefaultTransferConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	a := &App{
		serviceID:  uuid.New().String(),
		cfg:        cfg,
		discoverer: adapter,
		webrtcAPI:  webrtcPkg.NewWebRTCAPI(cfg.Logger),
		uiMessages: make(chan tea.Msg, 64),
		appEvents:  make(chan appevents.AppEvent),
		logger:     cfg.Logger.With("app", "sender"),
	}
	a.dial = a.dialWebRTC
	return a
}

// SetDialer replaces the WebRTC transport.
func (a *App) SetDialer(d Dialer) {
	a.dial = d
}

// UIMessages returns the channel for the UI to listen on for updates.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run lists receivers for the UI and serves its requests until ctx ends.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.runDiscovery(ctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				// Wait for any active transfers to complete gracefully
				a.transferWG.Wait()
				return nil
			case event := <-a.appEvents:
				a.handleEvent(ctx, event)
			}
		}
	})
	return g.Wait()
}

func (a *App) handleEvent(ctx context.Context, event appevents.AppEvent) {
	switch e := event.(type) {
	case senderEvent.SendFileMsg:
		a.transferWG.Add(1)
		go func() {
			defer a.transferWG.Done()
			err := a.SendFile(ctx, e.Target, e.Path)
			a.notify(senderEvent.TransferFinishedMsg{Err: err})
		}()
	case senderEvent.ForceStartMsg:
		a.withActive("force start", (*session.Session).ForceStart)
	case appevents.CancelEvent:
		a.withActive("cancel", (*session.Session).Cancel)
	default:
		a.logger.Warn("Received unhandled app event", "event", event)
	}
}

// withActive runs op on the current session, reporting failures to the UI.
func (a *App) withActive(name string, op func(*session.Session) error) {
	a.mu.Lock()
	s := a.active
	a.mu.Unlock()
	if s == nil {
		a.sendAndLogError("Cannot "+name, errors.New("no active transfer"))
		return
	}
	if err := op(s); err != nil {
		a.sendAndLogError("Cannot "+name, err)
	}
}

// runDiscovery begins the process of finding receivers on the network.
func (a *App) runDiscovery(ctx context.Context) error {
	if a.discoverer == nil {
		return nil
	}
	results := a.discoverer.Discover(ctx, discovery.ServiceType())
	for {
		select {
		case <-ctx.Done():
			return nil
		case result, ok := <-results:
			if !ok {
				return nil
			}
			if result.Error != nil {
				a.sendAndLogError("Discovery failed", result.Error)
				continue
			}
			a.notify(senderEvent.FoundServicesMsg{Services: result.Services})
		}
	}
}

func (a *App) notify(msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	default:
		a.logger.Warn("UI message queue full, dropping message", "msg", msg)
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(baseMessage string, err error) {
	a.logger.Error(baseMessage, "error", err)
	a.notify(appevents.Error{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

// ResolveURL turns a target into the receiver's API URL. A host:port target
// is used as is; anything else is looked up as a receiver id over mDNS.
func (a *App) ResolveURL(ctx context.Context, target string) (string, error) {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return "http://" + target, nil
	}
	if a.discoverer == nil {
		return "", fmt.Errorf("%w: %s (discovery disabled)", discovery.ErrNotFound, target)
	}

	a.notify(appevents.StatusMsg{Message: "Looking for " + target + "..."})
	ctx, cancel := context.WithTimeout(ctx, a.cfg.ResolveTimeout)
	defer cancel()
	svc, err := discovery.Resolve(ctx, a.discoverer, target)
	if err != nil {
		return "", err
	}
	return "http://" + svc.Address(), nil
}

// Connection is a sender session together with the link it runs on.
type Connection struct {
	Session *session.Session
	link    Link
	app     *App
}

// Close tears down the session and then the link.
func (c *Connection) Close() error {
	c.app.clearActive(c.Session)
	c.Session.Close()
	return c.link.Close()
}

// Connect resolves target, opens a sender session and brings the link up.
// The session starts in Connecting; it reaches Connected when the channel
// opens, or Failed after the connect timeout.
func (a *App) Connect(ctx context.Context, target string) (*Connection, error) {
	receiverURL, err := a.ResolveURL(ctx, target)
	if err != nil {
		return nil, err
	}

	link, err := a.dial(receiverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}

	s, err := session.Open(session.Sender, link.Channel(), a.cfg.Transfer,
		session.WithLogger(a.cfg.Logger),
		session.WithListener(appevents.NewForwarder(session.Sender, a.uiMessages)),
	)
	if err != nil {
		link.Close()
		return nil, err
	}
	conn := &Connection{Session: s, link: link, app: a}

	a.notify(appevents.StatusMsg{Message: "Establishing connection..."})
	if err := link.Establish(ctx); err != nil {
		s.Close()
		link.Close()
		return nil, fmt.Errorf("could not establish connection: %w", err)
	}

	a.mu.Lock()
	a.active = s
	a.mu.Unlock()
	return conn, nil
}

func (a *App) clearActive(s *session.Session) {
	a.mu.Lock()
	if a.active == s {
		a.active = nil
	}
	a.mu.Unlock()
}

// SendFile runs one whole transfer: connect, offer, wait for the outcome.
// It returns nil only when the file was sent completely.
func (a *App) SendFile(ctx context.Context, target, path string) error {
	src, err := fileInfo.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	conn, err := a.Connect(ctx, target)
	if err != nil {
		return err
	}
	defer conn.Close()
	s := conn.Session

	phase, err := s.WaitPhase(ctx, session.Connected, session.Failed)
	if err != nil {
		return err
	}
	if phase == session.Failed {
		return s.Snapshot().Cause
	}

	if err := s.OfferFile(src.Descriptor, src); err != nil {
		return err
	}
	a.logger.Info("Waiting for receiver", "file", src.Descriptor.Name, "size", src.Descriptor.Size)

	phase, err = s.WaitPhase(ctx, session.Completed, session.Failed, session.Connected, session.Idle)
	if err != nil {
		if cerr := s.Cancel(); cerr != nil {
			a.logger.Debug("Cancel on shutdown", "error", cerr)
		}
		return err
	}

	switch phase {
	case session.Completed:
		a.drain(ctx, conn.link.Channel())
		return nil
	default:
		if cause := s.Snapshot().Cause; cause != nil {
			return cause
		}
		return fmt.Errorf("transfer ended in phase %s", phase)
	}
}

// drain waits for the channel's send buffer to empty so closing the link
// does not cut off the tail of the file.
func (a *App) drain(ctx context.Context, ch channel.Channel) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DrainTimeout)
	defer cancel()
	ticker := time.NewTicker(a.cfg.Transfer.BackpressureRetry)
	defer ticker.Stop()

	for ch.IsOpen() && ch.BufferedAmount() > 0 {
		select {
		case <-ctx.Done():
			a.logger.Warn("Closing with data still buffered", "bytes", ch.BufferedAmount())
			return
		case <-ticker.C:
		}
	}
}

type webrtcLink struct {
	conn *webrtcPkg.SenderConn
	dc   *webrtcPkg.DataChannel
}

func (l *webrtcLink) Channel() channel.Channel            { return l.dc }
func (l *webrtcLink) Establish(ctx context.Context) error { return l.conn.Establish(ctx) }
func (l *webrtcLink) Close() error                        { return l.conn.Close() }

func (a *App) dialWebRTC(receiverURL string) (Link, error) {
	client := api.NewClient(a.serviceID)
	client.SetReceiverURL(receiverURL)

	conn, err := a.webrtcAPI.NewSenderConnection(a.cfg.WebRTC, api.NewAPISignaler(client))
	if err != nil {
		return nil, err
	}
	dc, err := conn.CreateTransferChannel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &webrtcLink{conn: conn, dc: dc}, nil
}
