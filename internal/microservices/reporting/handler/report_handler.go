package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/microservices/reporting/service"
)

type ReportHandler struct {
	service service.ReportingServiceInterface
}

func NewReportHandler(svc service.ReportingServiceInterface) *ReportHandler {
	return &ReportHandler{service: svc}
}

func (h *ReportHandler) OrderSettlements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "order_id")
	limit := atoiDefault(r.URL.Query().Get("limit"), 0)
	offset := atoiDefault(r.URL.Query().Get("offset"), 0)
	out, err := h.service.OrderSettlements(r.Context(), id, limit, offset)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"order_id": id, "settlements": out})
}

func (h *ReportHandler) Tips(w http.ResponseWriter, r *http.Request) {
	from, err := timeParam(r, "from")
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "invalid_query", "from: "+err.Error())
		return
	}
	to, err := timeParam(r, "to")
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "invalid_query", "to: "+err.Error())
		return
	}
	sum, err := h.service.Tips(r.Context(), chi.URLParam(r, "staff_id"), from, to)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sum)
}

func (h *ReportHandler) Workers(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Workers(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"workers": out})
}

// timeParam reads an optional RFC 3339 query parameter.
func timeParam(r *http.Request, key string) (*time.Time, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}
