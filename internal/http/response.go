package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"rashody/internal/core"
	applog "rashody/internal/log"
)

// expenseJSON is the wire shape of an expense.
type expenseJSON struct {
	ID        int64      `json:"id"`
	User      int64      `json:"user"`
	Amount    core.Money `json:"amount"`
	Category  string     `json:"category"`
	CreatedAt time.Time  `json:"created_at"`
}

func toExpenseJSON(e core.Expense) expenseJSON {
	return expenseJSON{
		ID:        e.ID,
		User:      e.UserID,
		Amount:    e.Amount,
		Category:  e.Category,
		CreatedAt: e.CreatedAt,
	}
}

type errorJSON struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorJSON{Error: msg})
}

// writeServiceError maps domain errors to status codes. Anything unknown is a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case core.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.internalError(w, r, "Request failed", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	fields := applog.NewFields()
	fields[applog.FieldMethod] = r.Method
	fields[applog.FieldPath] = r.URL.Path
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogError(r.Context(), msg, err, applog.ComponentHTTP, applog.ErrorTypeInternal, fields)
	writeError(w, http.StatusInternalServerError, "internal error")
}
