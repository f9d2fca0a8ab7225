package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/microservices/tab/service"
)

type SettlementHandler struct {
	service service.SettlementServiceInterface
}

func NewSettlementHandler(s service.SettlementServiceInterface) *SettlementHandler {
	return &SettlementHandler{service: s}
}

func (h *SettlementHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders/{order_id}/settle", h.SettleFull)
	r.Post("/orders/{order_id}/settle/occupant", h.SettleOccupant)
	r.Post("/orders/{order_id}/settle/partial", h.SettlePartial)
	r.Get("/orders/{order_id}/settlements", h.List)
}

func (h *SettlementHandler) SettleFull(w http.ResponseWriter, r *http.Request) {
	var req domain.SettleRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.service.SettleFull(r.Context(), chi.URLParam(r, "order_id"), req.TipRecipientID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (h *SettlementHandler) SettleOccupant(w http.ResponseWriter, r *http.Request) {
	var req domain.SettleOccupantRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.service.SettleOccupant(r.Context(), chi.URLParam(r, "order_id"), req.OccupantID, req.TipRecipientID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (h *SettlementHandler) SettlePartial(w http.ResponseWriter, r *http.Request) {
	var req domain.PartialSettlementRequest
	if !decode(w, r, &req) {
		return
	}
	req.OrderID = chi.URLParam(r, "order_id")
	rec, err := h.service.SettlePartial(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rec)
}

func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	recs, err := h.service.ListSettlements(r.Context(), orderID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "settlements": recs})
}
