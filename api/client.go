package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const serviceIDHeader = "X-Service-ID"

// ErrReceiverBusy is returned when the receiver is already serving a peer.
var ErrReceiverBusy = errors.New("receiver is busy")

// serviceIDInjector is a custom http.RoundTripper that injects a service ID into each request.
type serviceIDInjector struct {
	serviceID string
	next      http.RoundTripper
}

// RoundTrip intercepts the request, adds the service ID header, and passes it to the next transport.
func (t *serviceIDInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set(serviceIDHeader, t.serviceID)
	return t.next.RoundTrip(req)
}

// Client is a stateless HTTP client for communicating with the receiver's API.
type Client struct {
	HttpClient  *http.Client
	receiverURL string
}

// NewClient creates a new API client, configured to automatically inject the provided serviceID.
func NewClient(serviceID string) *Client {
	transport := &serviceIDInjector{
		serviceID: serviceID,
		next:      http.DefaultTransport,
	}

	return &Client{
		HttpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (c *Client) SetReceiverURL(receiverURL string) {
	c.receiverURL = strings.TrimSuffix(receiverURL, "/")
}

func (c *Client) ReceiverURL() string {
	return c.receiverURL
}

// Signal posts the sender's offer and returns the receiver's answer.
func (c *Client) Signal(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if c.receiverURL == "" {
		return nil, errors.New("receiver URL is not set")
	}

	body, err := json.Marshal(SignalRequest{Offer: offer})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.receiverURL+"/signal", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create /signal request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach /signal endpoint: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, ErrReceiverBusy
	default:
		var e ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return nil, fmt.Errorf("/signal responded with %s: %s", resp.Status, e.Error)
		}
		return nil, fmt.Errorf("/signal responded with non-OK status: %s", resp.Status)
	}

	var out SignalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode answer: %w", err)
	}
	return &out.Answer, nil
}
