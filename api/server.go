package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pion/webrtc/v4"
	"github.com/rescp17/dropline/pkg/concurrency"
)

// SignalRequest is the request body of POST /signal.
type SignalRequest struct {
	Offer webrtc.SessionDescription `json:"offer"`
}

type SignalResponse struct {
	Answer webrtc.SessionDescription `json:"answer"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// OfferHandler turns a sender's offer into an answer. It owns release from
// the moment it is called: the guard stays held until release runs, which
// should be when the peer it admitted is gone. The server releases on the
// handler's behalf when it returns an error.
type OfferHandler func(ctx context.Context, offer webrtc.SessionDescription, release func()) (*webrtc.SessionDescription, error)

// API is the main entry point for the receiver API.
type API struct {
	guard   *concurrency.ConcurrencyGuard
	onOffer OfferHandler
	logger  *slog.Logger
	mux     *http.ServeMux
}

func NewAPI(guard *concurrency.ConcurrencyGuard, onOffer OfferHandler, logger *slog.Logger) *API {
	if guard == nil {
		guard = concurrency.NewConcurrencyGuard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	api := &API{
		guard:   guard,
		onOffer: onOffer,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	api.registerRoutes()
	return api
}

// ServeHTTP allows the API struct to satisfy the http.Handler interface.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) registerRoutes() {
	a.mux.Handle("POST /signal", a.concurrencyControl(http.HandlerFunc(a.signalHandler)))
}

type releaseKey struct{}

// concurrencyControl admits one peer at a time and answers 503 otherwise.
func (a *API) concurrencyControl(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release, err := a.guard.TryAcquire()
		if errors.Is(err, concurrency.ErrBusy) {
			a.logger.Info("Request rejected, receiver is busy", "sender", r.Header.Get(serviceIDHeader))
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), releaseKey{}, release)))
	})
}

func (a *API) signalHandler(w http.ResponseWriter, r *http.Request) {
	release, _ := r.Context().Value(releaseKey{}).(func())
	if release == nil {
		release = func() {}
	}

	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Offer.SDP == "" {
		release()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid offer payload"})
		return
	}
	if req.Offer.Type != webrtc.SDPTypeOffer {
		release()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "expected an SDP offer"})
		return
	}
	a.logger.Info("Offer received", "sender", r.Header.Get(serviceIDHeader))

	answer, err := a.onOffer(r.Context(), req.Offer, release)
	if err != nil {
		release()
		a.logger.Error("Failed to answer offer", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, SignalResponse{Answer: *answer})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
