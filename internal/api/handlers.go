// Package api exposes HTTP handlers for subscriber intake and the intro reveal.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/TalentedProger/Preloader-Animate/internal/auth"
	"github.com/TalentedProger/Preloader-Animate/internal/domain"
	"github.com/TalentedProger/Preloader-Animate/internal/preloader"
)

const maxBodyBytes = 1 << 16

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service      *domain.Service
	logger       *zap.Logger
	introTotal   time.Duration
	introTick    time.Duration
	maxIntro     time.Duration
	sequencerOpt []preloader.Option
}

// Option configures optional Handler behaviour.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithIntroTiming sets the default reveal duration and tick interval.
func WithIntroTiming(total, tick time.Duration) Option {
	return func(h *Handler) {
		if total > 0 {
			h.introTotal = total
		}
		if tick > 0 {
			h.introTick = tick
		}
	}
}

// WithSequencerOptions passes extra options to every streamed Sequencer.
func WithSequencerOptions(opts ...preloader.Option) Option {
	return func(h *Handler) {
		h.sequencerOpt = append(h.sequencerOpt, opts...)
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service:    service,
		logger:     zap.NewNop(),
		introTotal: preloader.DefaultDuration,
		introTick:  preloader.DefaultTickInterval,
		maxIntro:   time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/subscribers", h.subscribers)
	mux.HandleFunc("/v1/intro", h.intro)
	mux.HandleFunc("/v1/intro/stream", h.introStream)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) subscribers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSubscriber(w, r)
	case http.MethodGet:
		h.listSubscribers(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createSubscriber(w http.ResponseWriter, r *http.Request) {
	var req CreateSubscriberRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "unable to parse body")
		return
	}

	sub, err := h.service.CreateSubscriber(r.Context(), domain.CreateSubscriberInput{Email: req.Email})
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeFieldError(w, http.StatusBadRequest, "validation_failed", verr.Field+" "+verr.Message, verr.Field)
		case errors.Is(err, domain.ErrStorageUnavailable):
			writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "subscriptions are temporarily unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", "unable to save subscription")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toSubscriberView(*sub))
}

func (h *Handler) listSubscribers(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	if !claims.HasScope(auth.ScopeSubscribersRead) {
		writeError(w, http.StatusForbidden, "forbidden", "scope subscribers:read required")
		return
	}

	limit := domain.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeFieldError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer", "limit")
			return
		}
		limit = parsed
	}

	subs, err := h.service.ListSubscribers(r.Context(), limit)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	total, err := h.service.CountSubscribers(r.Context())
	if err != nil {
		writeStorageError(w, err)
		return
	}

	items := make([]SubscriberView, 0, len(subs))
	for _, sub := range subs {
		items = append(items, toSubscriberView(sub))
	}
	writeJSON(w, http.StatusOK, ListSubscribersResponse{Items: items, Total: total})
}

func (h *Handler) intro(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	writeJSON(w, http.StatusOK, IntroResponse{
		Stages:     preloader.Stages[:],
		StepCount:  preloader.StepCount,
		DurationMS: h.introTotal.Milliseconds(),
		TickMS:     h.introTick.Milliseconds(),
	})
}

// CreateSubscriberRequest is the payload for POST /v1/subscribers.
type CreateSubscriberRequest struct {
	Email string `json:"email"`
}

// SubscriberView is the public representation of a subscriber.
type SubscriberView struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// ListSubscribersResponse packages list results.
type ListSubscribersResponse struct {
	Items []SubscriberView `json:"items"`
	Total int              `json:"total"`
}

// IntroResponse describes the reveal sequence to clients.
type IntroResponse struct {
	Stages     []preloader.Stage `json:"stages"`
	StepCount  int               `json:"step_count"`
	DurationMS int64             `json:"duration_ms"`
	TickMS     int64             `json:"tick_ms"`
}

func writeStorageError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "subscriber storage is temporarily unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", "unable to read subscribers")
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeFieldError(w, status, code, detail, "")
}

func writeFieldError(w http.ResponseWriter, status int, code, detail, field string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	if field != "" {
		payload["field"] = field
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toSubscriberView(sub domain.Subscriber) SubscriberView {
	return SubscriberView{
		ID:        sub.ID,
		Email:     sub.Email,
		CreatedAt: sub.CreatedAt,
		IsActive:  sub.IsActive,
	}
}
