package api

import (
	"net/http"
	"time"

	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/pkg/httputil"
	"github.com/hearthside/mailroom/internal/queue"
)

// ListQueue pages through queue items, newest first. Supports
// ?status=scheduled&page=1&limit=50.
func (h *Handlers) ListQueue(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	items, total, err := h.processor.List(r.Context(), queue.ListFilter{
		Status: domain.QueueStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	if items == nil {
		items = []domain.AutomationQueueItem{}
	}
	httputil.OK(w, map[string]any{
		"items": items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// GetQueueStats aggregates the queue by status, including due-now counts.
func (h *Handlers) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.processor.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// ProcessQueue runs one synchronous processing pass over due items and
// returns the counts. External cron hits this (or cmd/process-queue).
func (h *Handlers) ProcessQueue(w http.ResponseWriter, r *http.Request) {
	result, err := h.processor.ProcessDue(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, result)
}
