package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hearthside/mailroom/internal/activity"
	"github.com/hearthside/mailroom/internal/automation"
	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/pkg/httputil"
	"github.com/hearthside/mailroom/internal/queue"
	"github.com/hearthside/mailroom/internal/segment"
)

// SubscriberLookup resolves a subscriber by address. Optional: handlers that
// use it tolerate a nil lookup and a nil result.
type SubscriberLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
}

// Handlers bundles the services the HTTP layer exposes.
type Handlers struct {
	segments    *segment.Service
	automations *automation.Service
	dispatcher  *automation.Dispatcher
	processor   *queue.Processor
	subscribers SubscriberLookup
	activityLog activity.Reader
}

// NewHandlers creates the handler set. subscribers and activityLog may be nil.
func NewHandlers(
	segments *segment.Service,
	automations *automation.Service,
	dispatcher *automation.Dispatcher,
	processor *queue.Processor,
	subscribers SubscriberLookup,
	activityLog activity.Reader,
) *Handlers {
	return &Handlers{
		segments:    segments,
		automations: automations,
		dispatcher:  dispatcher,
		processor:   processor,
		subscribers: subscribers,
		activityLog: activityLog,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// GetActivity returns the most recent audit entries.
func (h *Handlers) GetActivity(w http.ResponseWriter, r *http.Request) {
	if h.activityLog == nil {
		httputil.OK(w, []activity.Entry{})
		return
	}
	limit := queryInt(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}
	entries, err := h.activityLog.Recent(r.Context(), limit)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	httputil.OK(w, entries)
}

// respondError maps service sentinel errors onto HTTP statuses.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, segment.ErrNotFound),
		errors.Is(err, automation.ErrNotFound),
		errors.Is(err, queue.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, segment.ErrValidation),
		errors.Is(err, automation.ErrValidation):
		httputil.BadRequest(w, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
