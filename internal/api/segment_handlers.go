package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/pkg/httputil"
	"github.com/hearthside/mailroom/internal/segment"
)

// ListSegments returns all segments with cached counts.
func (h *Handlers) ListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.segments.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if segments == nil {
		segments = []domain.Segment{}
	}
	httputil.OK(w, segments)
}

// GetSegment returns one segment with a freshly recomputed count.
func (h *Handlers) GetSegment(w http.ResponseWriter, r *http.Request) {
	seg, err := h.segments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, seg)
}

// CreateSegment validates, persists, and returns the new segment.
func (h *Handlers) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var input segment.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	seg, err := h.segments.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, seg)
}

// UpdateSegment replaces a segment's definition.
func (h *Handlers) UpdateSegment(w http.ResponseWriter, r *http.Request) {
	var input segment.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	seg, err := h.segments.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, seg)
}

// DeleteSegment removes a segment definition.
func (h *Handlers) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	if err := h.segments.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	httputil.NoContent(w)
}

// PreviewSegment pages through a stored segment's current matches.
func (h *Handlers) PreviewSegment(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 0)

	preview, err := h.segments.Preview(r.Context(), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, preview)
}

type evaluateRequest struct {
	Rules *domain.SegmentRules `json:"rules"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

// EvaluateRules runs an ad-hoc rule set for the interactive rule builder.
// Nothing is persisted.
func (h *Handlers) EvaluateRules(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Rules == nil {
		httputil.BadRequest(w, "rules are required")
		return
	}
	preview, err := h.segments.EvaluateRules(r.Context(), *req.Rules, req.Page, req.Limit)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, preview)
}

// GetSegmentFields lists the supported rule fields and operators so the rule
// builder UI stays in sync with the evaluator.
func (h *Handlers) GetSegmentFields(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"fields":    domain.Fields(),
		"operators": domain.Operators(),
	})
}
