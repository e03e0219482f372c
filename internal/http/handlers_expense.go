package http

import (
	"fmt"
	"net/http"

	applog "rashody/internal/log"
	"rashody/internal/services"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := parseExpenseFilter(r.URL.Query(), s.loc)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	expenses, err := s.deps.Expenses.ListExpenses(r.Context(), caller(r).ID, f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]expenseJSON, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseJSON(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	in, err := decodeExpense(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if in.Amount == nil || in.Category == nil {
		writeError(w, http.StatusBadRequest, "amount and category are required")
		return
	}

	e, err := s.deps.Expenses.CreateExpense(r.Context(), caller(r).ID, *in.Category, *in.Amount)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogExpenseCreated(r.Context(), e.UserID, e.ID, e.Category, e.Amount.Cents())
	w.Header().Set("Location", fmt.Sprintf("/api/expenses/%d", e.ID))
	writeJSON(w, http.StatusCreated, toExpenseJSON(e))
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	e, err := s.deps.Expenses.GetExpense(r.Context(), caller(r).ID, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseJSON(e))
}

// handleUpdateExpense serves PUT and PATCH. PUT requires both writable
// fields, PATCH any subset.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	in, err := decodeExpense(w, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if r.Method == http.MethodPut && (in.Amount == nil || in.Category == nil) {
		writeError(w, http.StatusBadRequest, "amount and category are required")
		return
	}

	e, err := s.deps.Expenses.UpdateExpense(r.Context(), caller(r).ID, id, services.ExpenseUpdate{
		Amount:   in.Amount,
		Category: in.Category,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseJSON(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if err := s.deps.Expenses.DeleteExpense(r.Context(), caller(r).ID, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonthReport(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ov, err := s.deps.Reports.MonthOverview(r.Context(), caller(r).ID, p)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}
