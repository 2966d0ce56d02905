package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	dnssdlog "github.com/brutella/dnssd/log"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rescp17/dropline/api"
	appevents "github.com/rescp17/dropline/internal/app_events"
	receiverEvent "github.com/rescp17/dropline/internal/app_events/receiver"
	"github.com/rescp17/dropline/pkg/channel"
	"github.com/rescp17/dropline/pkg/concurrency"
	"github.com/rescp17/dropline/pkg/discovery"
	"github.com/rescp17/dropline/pkg/session"
	"github.com/rescp17/dropline/pkg/transfer"
	webrtcPkg "github.com/rescp17/dropline/pkg/webrtc"
	"golang.org/x/sync/errgroup"
)

// DefaultPort is where the signaling API listens unless configured.
const DefaultPort = 8988

type Config struct {
	// Port for the signaling API. 0 picks a free port.
	Port int
	// OutDir receives completed files.
	OutDir string
	// AutoAccept approves every offer without asking the UI.
	AutoAccept bool
	Transfer   *transfer.TransferConfig
	WebRTC     webrtcPkg.Config
	Logger     *slog.Logger
}

// App is the main application logic controller for the receiver.
type App struct {
	id         string
	cfg        Config
	guard      *concurrency.ConcurrencyGuard
	registrar  discovery.Adapter
	webrtcAPI  *webrtcPkg.WebRTCAPI
	uiMessages chan tea.Msg
	appEvents  chan appevents.AppEvent
	logger     *slog.Logger

	mu         sync.Mutex
	active     *session.Session
	activeConn *webrtcPkg.ReceiverConn
}

// NewApp creates a new receiver application instance. A nil registrar
// disables the mDNS announcement.
func NewApp(registrar discovery.Adapter, cfg Config) *App {
	if cfg.Transfer == nil {
		cfg.Transfer = transfer.DefaultTransferConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "."
	}

	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)

	return &App{
		id:         uuid.New().String()[:8],
		cfg:        cfg,
		guard:      concurrency.NewConcurrencyGuard(),
		registrar:  registrar,
		webrtcAPI:  webrtcPkg.NewWebRTCAPI(cfg.Logger),
		uiMessages: make(chan tea.Msg, 64),
		appEvents:  make(chan appevents.AppEvent),
		logger:     cfg.Logger.With("app", "receiver"),
	}
}

// ID is the short id senders can address this receiver by.
func (a *App) ID() string {
	return a.id
}

func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// Run serves the signaling API and announces it until ctx ends or one of
// the services fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Port))
	if err != nil {
		return fmt.Errorf("could not listen on port %d: %w", a.cfg.Port, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	g, ctx := errgroup.WithContext(ctx)

	handler := api.NewAPI(a.guard, func(rctx context.Context, offer webrtc.SessionDescription, release func()) (*webrtc.SessionDescription, error) {
		return a.handleOffer(ctx, rctx, offer, release)
	}, a.logger)
	server := &http.Server{Handler: handler}

	g.Go(func() error {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.sendAndLogError("HTTP server failed", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP server shutdown error", "error", err)
		}
		a.closeActiveConnection()
		return nil
	})

	if a.registrar != nil {
		g.Go(func() error {
			info := discovery.ServiceInfo{
				Name:   a.id,
				Type:   discovery.DefaultServerType,
				Domain: discovery.DefaultDomain,
				Port:   port,
			}
			if err := a.registrar.Announce(ctx, info); err != nil {
				// exit the app if we can't announce
				a.sendAndLogError("Failed to start mDNS announcement", err)
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-a.appEvents:
				a.handleEvent(event)
			}
		}
	})

	a.logger.Info("Receiver listening", "id", a.id, "addr", ln.Addr().String())
	a.notify(receiverEvent.ListeningMsg{ID: a.id, Addr: ln.Addr().String()})
	return g.Wait()
}

func (a *App) handleEvent(event appevents.AppEvent) {
	s := a.Active()
	if s == nil {
		a.logger.Warn("No active session for event", "event", event)
		return
	}

	var err error
	switch event.(type) {
	case receiverEvent.AcceptFileRequestEvent:
		a.logger.Info("User accepted file transfer")
		err = s.RespondToOffer(true)
	case receiverEvent.RejectFileRequestEvent:
		a.logger.Info("User rejected file transfer")
		err = s.RespondToOffer(false)
	case appevents.CancelEvent:
		err = s.Cancel()
	case appevents.ResetEvent:
		err = a.resume(s)
	default:
		a.logger.Warn("Received unhandled app event", "event", event)
	}
	if err != nil {
		a.sendAndLogError("Request failed", err)
	}
}

// handleOffer admits one sender: it answers the offer and serves the
// transfer channel once it arrives. The guard is released when the peer
// connection goes away.
func (a *App) handleOffer(runCtx, rctx context.Context, offer webrtc.SessionDescription, release func()) (*webrtc.SessionDescription, error) {
	conn, err := a.webrtcAPI.NewReceiverConnection(a.cfg.WebRTC)
	if err != nil {
		return nil, fmt.Errorf("failed to create receiver connection: %w", err)
	}

	peerCtx, cancelPeer := context.WithCancel(runCtx)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			cancelPeer()
			a.clearActiveConn(conn)
			conn.Close()
			release()
			a.notify(receiverEvent.PeerDisconnectedMsg{})
		})
	}

	conn.OnStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			a.logger.Info("Peer connection ended", "state", state.String())
			go cleanup()
		}
	})
	conn.OnTransferChannel(func(dc *webrtcPkg.DataChannel) {
		a.notify(receiverEvent.PeerConnectedMsg{})
		if _, err := a.Serve(peerCtx, dc); err != nil {
			a.sendAndLogError("Could not start session", err)
			go cleanup()
		}
	})

	answer, err := conn.HandleOfferAndCreateAnswer(rctx, offer)
	if err != nil {
		cancelPeer()
		conn.Close()
		return nil, err
	}
	a.setActiveConn(conn)
	return answer, nil
}

// Serve runs a receiver session on ch until ctx ends. Completed files are
// saved to the output directory, after which the session goes back to
// waiting for the next offer on the same channel.
func (a *App) Serve(ctx context.Context, ch channel.Channel) (*session.Session, error) {
	s, err := session.Open(session.Receiver, ch, a.cfg.Transfer,
		session.WithLogger(a.cfg.Logger),
		session.WithListener(appevents.NewForwarder(session.Receiver, a.uiMessages)),
	)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.active != nil {
		a.logger.Warn("Replacing active session", "session", a.active.ID())
		a.active.Close()
	}
	a.active = s
	a.mu.Unlock()

	go a.supervise(ctx, s)
	return s, nil
}

func (a *App) supervise(ctx context.Context, s *session.Session) {
	defer func() {
		// The peer may hang up right after the last chunk.
		if s.Phase() == session.Completed {
			a.save(s)
		}
		s.Close()
		a.clearActive(s)
	}()

	for {
		phase, err := s.WaitPhase(ctx, session.WaitingApproval, session.Completed, session.Failed)
		if err != nil {
			return
		}

		switch phase {
		case session.WaitingApproval:
			if a.cfg.AutoAccept {
				if err := s.RespondToOffer(true); err != nil {
					a.sendAndLogError("Could not accept offer", err)
				}
			}
			next, err := s.WaitPhase(ctx, session.Transferring, session.Completed, session.Connected, session.Idle, session.Failed)
			if err != nil {
				return
			}
			// A declined offer leaves the session Idle on a still-open channel.
			if next == session.Idle {
				if err := s.Connect(); err != nil {
					a.logger.Warn("Could not reconnect session", "error", err)
				}
			}
		case session.Completed:
			a.save(s)
			if err := a.resume(s); err != nil {
				a.logger.Warn("Could not reset session", "error", err)
			}
		case session.Failed:
			cause := s.Snapshot().Cause
			a.sendAndLogError("Transfer failed", cause)
			if err := a.resume(s); err != nil {
				a.logger.Warn("Could not reset session", "error", err)
			}
		}
	}
}

// resume returns s to Idle and reconnects it if the channel is still open.
func (a *App) resume(s *session.Session) error {
	if err := s.Reset(); err != nil {
		return err
	}
	return s.Connect()
}

func (a *App) save(s *session.Session) {
	artifact, err := s.Artifact()
	if err != nil {
		a.sendAndLogError("No file to save", err)
		return
	}
	path, err := artifact.SaveTo(a.cfg.OutDir)
	if err != nil {
		a.sendAndLogError("Could not save file", err)
		return
	}
	a.logger.Info("File saved", "name", artifact.Name, "path", path, "size", artifact.Size())
	a.notify(receiverEvent.FileSavedMsg{Name: artifact.Name, Path: path, Size: artifact.Size()})
}

// Active is the session currently serving a sender, if any.
func (a *App) Active() *session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *App) clearActive(s *session.Session) {
	a.mu.Lock()
	if a.active == s {
		a.active = nil
	}
	a.mu.Unlock()
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

func (a *App) closeActiveConnection() {
	a.mu.Lock()
	conn := a.activeConn
	a.activeConn = nil
	a.mu.Unlock()

	if conn != nil {
		a.logger.Info("Closing active connection")
		conn.Close()
	}
}

func (a *App) setActiveConn(conn *webrtcPkg.ReceiverConn) {
	a.mu.Lock()
	old := a.activeConn
	a.activeConn = conn
	a.mu.Unlock()
	if old != nil {
		a.logger.Warn("An active connection already exists. Closing it before using the new one.")
		old.Close()
	}
}

func (a *App) clearActiveConn(conn *webrtcPkg.ReceiverConn) {
	a.mu.Lock()
	if a.activeConn == conn {
		a.activeConn = nil
	}
	a.mu.Unlock()
}
