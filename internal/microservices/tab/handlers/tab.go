package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"restaurant-billing/internal/common/httpx"
	"restaurant-billing/internal/domain"
	"restaurant-billing/internal/microservices/tab/service"
)

const maxSampleBytes = 4 << 20

type TabHandler struct {
	service service.TabServiceInterface
}

func NewTabHandler(s service.TabServiceInterface) *TabHandler {
	return &TabHandler{service: s}
}

func (h *TabHandler) RegisterRoutes(r chi.Router) {
	r.Post("/tables", h.CreateTable)
	r.Get("/tables/{table_id}", h.GetTab)
	r.Post("/tables/{table_id}/occupants", h.SeatOccupant)
	r.Post("/tables/{table_id}/occupants/identify", h.SeatIdentified)
	r.Put("/tables/{table_id}/principal", h.SetPrincipal)
	r.Post("/tables/{table_id}/items", h.AddItem)
	r.Post("/occupants", h.RegisterOccupant)
	r.Get("/orders/{order_id}/groups", h.GroupLines)
	r.Get("/orders/{order_id}/totals", h.Totals)
	r.Put("/lines/{line_id}/served", h.MarkServed)
}

func (h *TabHandler) CreateTable(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTableRequest
	if !decode(w, r, &req) {
		return
	}
	tb, err := h.service.CreateTable(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, tb)
}

func (h *TabHandler) GetTab(w http.ResponseWriter, r *http.Request) {
	tab, err := h.service.GetTab(r.Context(), chi.URLParam(r, "table_id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tab)
}

func (h *TabHandler) RegisterOccupant(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterOccupantRequest
	if !decode(w, r, &req) {
		return
	}
	occ, err := h.service.RegisterOccupant(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, occ)
}

func (h *TabHandler) SeatOccupant(w http.ResponseWriter, r *http.Request) {
	var req domain.SeatRequest
	if !decode(w, r, &req) {
		return
	}
	occ, err := h.service.SeatOccupant(r.Context(), chi.URLParam(r, "table_id"), req.OccupantID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, occ)
}

// SeatIdentified takes the raw captured sample as the request body.
func (h *TabHandler) SeatIdentified(w http.ResponseWriter, r *http.Request) {
	sample, err := io.ReadAll(io.LimitReader(r.Body, maxSampleBytes))
	if err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	occ, err := h.service.SeatIdentified(r.Context(), chi.URLParam(r, "table_id"), sample)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, occ)
}

func (h *TabHandler) SetPrincipal(w http.ResponseWriter, r *http.Request) {
	var req domain.SeatRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.SetPrincipal(r.Context(), chi.URLParam(r, "table_id"), req.OccupantID); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TabHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddItemRequest
	if !decode(w, r, &req) {
		return
	}
	req.TableID = chi.URLParam(r, "table_id")
	line, err := h.service.AddItem(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, line)
}

func (h *TabHandler) GroupLines(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.GroupLines(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// Totals prices the open groups; ?tip=true adds the service charge.
func (h *TabHandler) Totals(w http.ResponseWriter, r *http.Request) {
	tip := r.URL.Query().Get("tip") == "true"
	totals, err := h.service.OrderTotals(r.Context(), chi.URLParam(r, "order_id"), tip)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, totals)
}

type servedRequest struct {
	StaffID string `json:"staff_id"`
}

func (h *TabHandler) MarkServed(w http.ResponseWriter, r *http.Request) {
	var req servedRequest
	if !decode(w, r, &req) {
		return
	}
	line, err := h.service.MarkServed(r.Context(), chi.URLParam(r, "line_id"), req.StaffID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, line)
}
