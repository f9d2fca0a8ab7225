package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/microservices/reporting/service"
)

type Handler struct {
	ReportHandler *ReportHandler
}

func New(svc service.ReportingServiceInterface) *Handler {
	return &Handler{
		ReportHandler: NewReportHandler(svc),
	}
}

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1/reports", func(r chi.Router) {
		r.Get("/orders/{order_id}/settlements", h.ReportHandler.OrderSettlements)
		r.Get("/tips/{staff_id}", h.ReportHandler.Tips)
		r.Get("/workers", h.ReportHandler.Workers)
	})
	return r
}
