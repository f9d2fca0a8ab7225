package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/microservices/tab/service"
)

type ApprovalHandler struct {
	service service.ApprovalServiceInterface
}

func NewApprovalHandler(s service.ApprovalServiceInterface) *ApprovalHandler {
	return &ApprovalHandler{service: s}
}

func (h *ApprovalHandler) RegisterRoutes(r chi.Router) {
	r.Post("/actions", h.RequestAction)
	r.Get("/approvals", h.ListPending)
	r.Post("/approvals/{request_id}/resolve", h.Resolve)
}

// RequestAction answers 200 when the action ran and 202 when it was queued.
func (h *ApprovalHandler) RequestAction(w http.ResponseWriter, r *http.Request) {
	var req domain.ActionRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.service.RequestAction(r.Context(), normalizeActor(req.Actor), req.Action)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	code := http.StatusOK
	if res.Queued {
		code = http.StatusAccepted
	}
	httpx.WriteJSON(w, code, res)
}

func (h *ApprovalHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPending(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"requests": pending})
}

func (h *ApprovalHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req domain.ResolveRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.service.ResolveRequest(r.Context(), normalizeActor(req.Approver), chi.URLParam(r, "request_id"), req.Decision)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
