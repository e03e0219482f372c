package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rashody/internal/core"
	"rashody/internal/storage"
)

const (
	maxBodyBytes = 1 << 16
	maxPageSize  = 500
)

var errBadRequest = errors.New("bad request")

// expenseInput is the writable part of an expense. Unknown and read-only
// fields such as user and created_at are ignored.
type expenseInput struct {
	Amount   *core.Money `json:"amount"`
	Category *string     `json:"category"`
}

// decodeExpense reads an expense body. Money validation errors keep their
// identity so they map to 422.
func decodeExpense(w http.ResponseWriter, r *http.Request) (expenseInput, error) {
	var in expenseInput
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return in, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(body, &in); err != nil {
		if core.IsValidation(err) {
			return in, err
		}
		return in, fmt.Errorf("%w: malformed JSON body", errBadRequest)
	}
	return in, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid expense id", errBadRequest)
	}
	return id, nil
}

// parseExpenseFilter reads category, from, to, limit and offset.
func parseExpenseFilter(q url.Values, loc *time.Location) (storage.ExpenseFilter, error) {
	var f storage.ExpenseFilter
	var err error

	f.Category = q.Get("category")
	if f.From, err = parseBound(q.Get("from"), loc); err != nil {
		return f, fmt.Errorf("%w: from: %v", errBadRequest, err)
	}
	if f.To, err = parseBound(q.Get("to"), loc); err != nil {
		return f, fmt.Errorf("%w: to: %v", errBadRequest, err)
	}
	if f.Limit, err = parseNonNegative(q.Get("limit")); err != nil {
		return f, fmt.Errorf("%w: limit: %v", errBadRequest, err)
	}
	if f.Limit == 0 || f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset, err = parseNonNegative(q.Get("offset")); err != nil {
		return f, fmt.Errorf("%w: offset: %v", errBadRequest, err)
	}
	return f, nil
}

// parseBound accepts RFC3339 or a calendar date, which means midnight in loc.
func parseBound(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD, got %q", v)
	}
	return t, nil
}

func parseNonNegative(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("expected a non-negative integer, got %q", v)
	}
	return n, nil
}

func parsePeriod(r *http.Request) (core.MonthPeriod, error) {
	year, yerr := strconv.Atoi(r.PathValue("year"))
	month, merr := strconv.Atoi(r.PathValue("month"))
	if yerr != nil || merr != nil {
		return core.MonthPeriod{}, fmt.Errorf("%w: year and month must be numbers", errBadRequest)
	}
	return core.NewMonthPeriod(year, month)
}
