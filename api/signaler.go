package api

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"
	webrtcPkg "github.com/rescp17/dropline/pkg/webrtc"
)

// APISignaler is the client-side implementation of the Signaler interface.
// It exchanges the offer and answer with the receiver's /signal endpoint.
type APISignaler struct {
	apiClient  *Client
	answerChan chan *webrtc.SessionDescription
}

var _ webrtcPkg.Signaler = (*APISignaler)(nil)

func NewAPISignaler(apiClient *Client) *APISignaler {
	return &APISignaler{
		apiClient:  apiClient,
		answerChan: make(chan *webrtc.SessionDescription, 1),
	}
}

// SendOffer posts the offer. The answer comes back on the same request and
// is handed to WaitForAnswer.
func (s *APISignaler) SendOffer(ctx context.Context, offer webrtc.SessionDescription) error {
	slog.Info("Sending offer to receiver", "url", s.apiClient.ReceiverURL())
	answer, err := s.apiClient.Signal(ctx, offer)
	if err != nil {
		return err
	}
	s.answerChan <- answer
	return nil
}

// WaitForAnswer blocks until the answer is received or the context is cancelled.
func (s *APISignaler) WaitForAnswer(ctx context.Context) (*webrtc.SessionDescription, error) {
	select {
	case answer := <-s.answerChan:
		return answer, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
