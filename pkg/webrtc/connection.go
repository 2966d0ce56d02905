package webrtc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/ice/v4"
	"github.com/pion/webrtc/v4"
)

const (
	MTU uint = 1400

	// TransferChannelLabel names the data channel sessions run on.
	TransferChannelLabel = "file-transfer"
)

// Connection wraps a single WebRTC peer connection and its state.
type Connection struct {
	peerConnection *webrtc.PeerConnection
	logger         *slog.Logger
}

type SenderConn struct {
	*Connection
	signaler Signaler // Used to send signals to the remote peer
}

type ReceiverConn struct {
	*Connection
}

type WebRTCAPI struct {
	api    *webrtc.API
	logger *slog.Logger
}

// Config holds the configuration for creating a new Connection.
type Config struct {
	ICEServers []webrtc.ICEServer
	// LANOnly skips the default STUN server, leaving host and mDNS
	// candidates only.
	LANOnly bool
}

func NewWebRTCAPI(logger *slog.Logger) *WebRTCAPI {
	if logger == nil {
		logger = slog.Default()
	}

	settings := webrtc.SettingEngine{}
	settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	settings.SetReceiveMTU(MTU)
	settings.LoggerFactory = NewLoggerFactory(logger)

	// Using NewAPI is crucial for managing multiple PeerConnections in one application.
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))
	return &WebRTCAPI{
		api:    api,
		logger: logger,
	}
}

func (a *WebRTCAPI) createPeerconnection(config Config) (*webrtc.PeerConnection, error) {
	if len(config.ICEServers) == 0 && !config.LANOnly {
		config.ICEServers = append(config.ICEServers, webrtc.ICEServer{
			URLs: []string{"stun:stun.l.google.com:19302"},
		})
	}
	return a.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICEServers,
	})
}

func (a *WebRTCAPI) NewSenderConnection(config Config, signaler Signaler) (*SenderConn, error) {
	if signaler == nil {
		return nil, errors.New("signaler is not configured")
	}

	pc, err := a.createPeerconnection(config)
	if err != nil {
		return nil, fmt.Errorf("create sender peer connection: %w", err)
	}

	return &SenderConn{
		Connection: &Connection{
			peerConnection: pc,
			logger:         a.logger.With("peer", "sender"),
		},
		signaler: signaler,
	}, nil
}

func (a *WebRTCAPI) NewReceiverConnection(config Config) (*ReceiverConn, error) {
	pc, err := a.createPeerconnection(config)
	if err != nil {
		return nil, fmt.Errorf("create receiver peer connection: %w", err)
	}

	return &ReceiverConn{
		Connection: &Connection{
			peerConnection: pc,
			logger:         a.logger.With("peer", "receiver"),
		},
	}, nil
}

// CreateTransferChannel creates the ordered, reliable data channel a sender
// session runs on. Call it before Establish so the offer carries it.
func (c *SenderConn) CreateTransferChannel() (*DataChannel, error) {
	ordered := true
	dc, err := c.peerConnection.CreateDataChannel(TransferChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	return NewDataChannel(dc), nil
}

// Establish runs the offer/answer exchange. Candidates are gathered before
// the offer is sent, so one round trip through the signaler is enough.
func (c *SenderConn) Establish(ctx context.Context) error {
	offer, err := c.peerConnection.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("fail to createOffer: %w", err)
	}
	if err := c.setLocalAndGather(ctx, offer); err != nil {
		return err
	}

	if err := c.signaler.SendOffer(ctx, *c.peerConnection.LocalDescription()); err != nil {
		return fmt.Errorf("fail to send offer: %w", err)
	}

	answer, err := c.signaler.WaitForAnswer(ctx)
	if err != nil {
		return fmt.Errorf("fail to receive answer: %w", err)
	}
	if err := c.peerConnection.SetRemoteDescription(*answer); err != nil {
		return fmt.Errorf("fail to set remote description: %w", err)
	}
	c.logger.Info("Answer applied, waiting for data channel")
	return nil
}

// HandleOfferAndCreateAnswer is called by the receiver to process an incoming offer.
func (c *ReceiverConn) HandleOfferAndCreateAnswer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.peerConnection.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := c.peerConnection.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	if err := c.setLocalAndGather(ctx, answer); err != nil {
		return nil, err
	}
	return c.peerConnection.LocalDescription(), nil
}

// OnTransferChannel registers f for the sender's transfer data channel.
// Channels with other labels are closed.
func (c *ReceiverConn) OnTransferChannel(f func(*DataChannel)) {
	c.peerConnection.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != TransferChannelLabel {
			c.logger.Warn("Ignoring unexpected data channel", "label", dc.Label())
			dc.Close()
			return
		}
		f(NewDataChannel(dc))
	})
}

func (c *Connection) setLocalAndGather(ctx context.Context, desc webrtc.SessionDescription) error {
	gathered := webrtc.GatheringCompletePromise(c.peerConnection)
	if err := c.peerConnection.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("fail to set local description: %w", err)
	}
	select {
	case <-gathered:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("gathering ICE candidates: %w", ctx.Err())
	}
}

func (c *Connection) OnStateChange(f func(webrtc.PeerConnectionState)) {
	c.peerConnection.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Debug("Peer connection state changed", "state", state.String())
		f(state)
	})
}

// Close gracefully shuts down the WebRTC connection.
func (c *Connection) Close() error {
	if c.peerConnection != nil {
		c.logger.Info("Closing webrtc connection")
		return c.peerConnection.Close()
	}
	return nil
}
