package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"restaurant-billing/internal/domain"
)

type Server struct{ *http.Server }

func New(port int, h http.Handler) *Server {
	return &Server{Server: &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}}
}

// Run serves until ctx is done, then shuts down with a 5s grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()
	select {
	case <-ctx.Done():
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(ctx2)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteProblem renders a simplified RFC 7807 body.
func WriteProblem(w http.ResponseWriter, code int, typ, detail string) {
	WriteJSON(w, code, map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	})
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:         http.StatusBadRequest,
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindCapacityExceeded:   http.StatusConflict,
	domain.KindInsufficientPoints: http.StatusUnprocessableEntity,
	domain.KindAmbiguousPartial:   http.StatusUnprocessableEntity,
	domain.KindIncompleteOrder:    http.StatusConflict,
	domain.KindNotPrivileged:      http.StatusForbidden,
	domain.KindAlreadyResolved:    http.StatusConflict,
	domain.KindConflict:           http.StatusConflict,
	domain.KindStoreUnavailable:   http.StatusServiceUnavailable,
}

// WriteError maps a domain error to its status and adds kind, field and id
// to the problem body. Anything else is a 500.
func WriteError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		WriteProblem(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	code, ok := kindStatus[de.Kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	WriteJSON(w, code, map[string]any{
		"type":   string(de.Kind),
		"title":  http.StatusText(code),
		"status": code,
		"detail": de.Error(),
		"kind":   de.Kind,
		"field":  de.Field,
		"id":     de.ID,
	})
}
