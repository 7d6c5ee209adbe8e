package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hearthside/mailroom/internal/automation"
	"github.com/hearthside/mailroom/internal/domain"
	"github.com/hearthside/mailroom/internal/pkg/httputil"
)

// ListAutomations returns all automation definitions.
func (h *Handlers) ListAutomations(w http.ResponseWriter, r *http.Request) {
	automations, err := h.automations.List(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	if automations == nil {
		automations = []domain.EmailAutomation{}
	}
	httputil.OK(w, automations)
}

// GetAutomation returns one automation with its steps.
func (h *Handlers) GetAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := h.automations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, a)
}

// CreateAutomation persists a new automation. It always starts paused.
func (h *Handlers) CreateAutomation(w http.ResponseWriter, r *http.Request) {
	var input automation.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	a, err := h.automations.Create(r.Context(), input)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.Created(w, a)
}

// UpdateAutomation replaces an automation's definition. Status is unchanged.
func (h *Handlers) UpdateAutomation(w http.ResponseWriter, r *http.Request) {
	var input automation.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	a, err := h.automations.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, a)
}

type statusRequest struct {
	Status domain.AutomationStatus `json:"status"`
}

// UpdateAutomationStatus activates or pauses an automation.
func (h *Handlers) UpdateAutomationStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.automations.SetStatus(r.Context(), id, req.Status); err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]string{"id": id, "status": string(req.Status)})
}

// DeleteAutomation removes an automation and cancels its scheduled sends.
func (h *Handlers) DeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if err := h.automations.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	httputil.NoContent(w)
}

type triggerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// TriggerAutomation enqueues one automation's steps for a single recipient.
// Works on paused automations too; operators use it for one-off sends.
func (h *Handlers) TriggerAutomation(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" && h.subscribers != nil && req.Email != "" {
		if sub, err := h.subscribers.GetByEmail(r.Context(), req.Email); err == nil && sub != nil {
			req.Name = sub.Name
		}
	}

	enqueued, err := h.dispatcher.DispatchByID(r.Context(), chi.URLParam(r, "id"), req.Email, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"enqueued": enqueued})
}

type dispatchRequest struct {
	Trigger domain.TriggerType `json:"trigger"`
	Email   string             `json:"email"`
	Name    string             `json:"name"`
}

// DispatchTrigger fans a trigger event out to every matching active
// automation. This is the entry point site events (signup, purchase, contact
// form) call.
func (h *Handlers) DispatchTrigger(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	enqueued, err := h.dispatcher.Dispatch(r.Context(), req.Trigger, req.Email, req.Name)
	if err != nil {
		respondError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"enqueued": enqueued})
}
