package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/microservices/tab/service"
)

type LoyaltyHandler struct {
	service service.LoyaltyServiceInterface
}

func NewLoyaltyHandler(s service.LoyaltyServiceInterface) *LoyaltyHandler {
	return &LoyaltyHandler{service: s}
}

func (h *LoyaltyHandler) RegisterRoutes(r chi.Router) {
	r.Post("/redemptions", h.Redeem)
}

func (h *LoyaltyHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req domain.RedeemRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.service.Redeem(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}
