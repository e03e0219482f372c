package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rashody/internal/core"
	"rashody/internal/services"
	"rashody/internal/storage/memory"
)

type harness struct {
	t      *testing.T
	store  *memory.Store
	srv    *Server
	tokens map[int64]string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.NewStore()
	accounts := services.NewAccountResolver(store, nil, nil)
	h := &harness{t: t, store: store, tokens: map[int64]string{}}
	h.srv = NewServer(Config{Addr: ":0", RateLimitPerMinute: 1000, Location: time.UTC}, Deps{
		Auth:     accounts,
		Expenses: services.NewExpenseService(store, nil, nil),
		Reports:  services.NewReportService(store, time.UTC, nil),
		Store:    store,
	}, nil)

	for _, external := range []int64{1, 2} {
		u, err := accounts.Resolve(context.Background(), core.Identity{ExternalID: external})
		require.NoError(t, err)
		token, err := accounts.IssueToken(context.Background(), u.ID)
		require.NoError(t, err)
		h.tokens[external] = token
	}
	return h
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := h.do(http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	}
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadyReportsStoreFailure(t *testing.T) {
	srv := NewServer(Config{}, Deps{Store: downStore{}}, nil)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection refused")
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	rr := h.do(http.MethodGet, "/api/expenses", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "missing bearer token", decode[errorJSON](t, rr).Error)

	rr = h.do(http.MethodGet, "/api/expenses", "nope", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = h.do(http.MethodGet, "/api/expenses", h.tokens[1], "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestExpenseLifecycle(t *testing.T) {
	h := newHarness(t)
	tok := h.tokens[1]

	rr := h.do(http.MethodPost, "/api/expenses", tok, `{"amount":"12.5","category":"еда","user":999}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[map[string]any](t, rr)
	assert.Equal(t, "12.50", created["amount"])
	assert.Equal(t, "еда", created["category"])
	assert.NotEqual(t, float64(999), created["user"], "owner is always the caller")
	assert.Contains(t, created, "created_at")
	id := int64(created["id"].(float64))
	assert.Equal(t, "/api/expenses/"+itoa(id), rr.Header().Get("Location"))

	rr = h.do(http.MethodGet, "/api/expenses/"+itoa(id), tok, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = h.do(http.MethodPatch, "/api/expenses/"+itoa(id), tok, `{"amount":20}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	patched := decode[expenseJSON](t, rr)
	assert.Equal(t, "20.00", patched.Amount.String())
	assert.Equal(t, "еда", patched.Category)

	rr = h.do(http.MethodPut, "/api/expenses/"+itoa(id), tok, `{"category":"кафе"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "PUT needs every writable field")

	rr = h.do(http.MethodPut, "/api/expenses/"+itoa(id), tok, `{"amount":"7","category":"кафе","created_at":"2000-01-01T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	put := decode[expenseJSON](t, rr)
	assert.Equal(t, "кафе", put.Category)
	assert.Equal(t, patched.CreatedAt, put.CreatedAt, "created_at is read-only")

	rr = h.do(http.MethodDelete, "/api/expenses/"+itoa(id), tok, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = h.do(http.MethodGet, "/api/expenses/"+itoa(id), tok, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestOtherUsersExpensesAreHidden(t *testing.T) {
	h := newHarness(t)
	rr := h.do(http.MethodPost, "/api/expenses", h.tokens[1], `{"amount":"1","category":"a"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := itoa(decode[expenseJSON](t, rr).ID)

	other := h.tokens[2]
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/expenses/"+id, other, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPatch, "/api/expenses/"+id, other, `{"amount":"2"}`).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/api/expenses/"+id, other, "").Code)
	assert.JSONEq(t, `[]`, h.do(http.MethodGet, "/api/expenses", other, "").Body.String())
}

func TestCreateExpenseValidation(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"amount":`, http.StatusBadRequest},
		{"missing category", `{"amount":"1"}`, http.StatusBadRequest},
		{"negative amount", `{"amount":"-1","category":"a"}`, http.StatusUnprocessableEntity},
		{"too many decimals", `{"amount":"1.005","category":"a"}`, http.StatusUnprocessableEntity},
		{"comma separator", `{"amount":"1,5","category":"a"}`, http.StatusUnprocessableEntity},
		{"blank category", `{"amount":"1","category":"  "}`, http.StatusUnprocessableEntity},
		{"category too long", `{"amount":"1","category":"` + strings.Repeat("я", 101) + `"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(http.MethodPost, "/api/expenses", h.tokens[1], tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
		})
	}
}

func TestListExpensesFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner, err := h.store.GetUserByUsername(ctx, "tg_1")
	require.NoError(t, err)

	seed := func(category string, cents int64, at time.Time) {
		_, err := h.store.CreateExpense(ctx, core.Expense{
			UserID: owner.ID, Amount: core.MoneyFromCents(cents), Category: category, CreatedAt: at,
		})
		require.NoError(t, err)
	}
	seed("еда", 100, time.Date(2025, 6, 30, 23, 0, 0, 0, time.UTC))
	seed("еда", 200, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	seed("такси", 300, time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC))
	seed("еда", 400, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))

	list := func(query string) []expenseJSON {
		rr := h.do(http.MethodGet, "/api/expenses"+query, h.tokens[1], "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		return decode[[]expenseJSON](t, rr)
	}

	all := list("")
	require.Len(t, all, 4)
	assert.Equal(t, "4.00", all[0].Amount.String(), "newest first")

	july := list("?from=2025-07-01&to=2025-08-01")
	require.Len(t, july, 2)
	assert.Equal(t, "3.00", july[0].Amount.String())
	assert.Equal(t, "2.00", july[1].Amount.String())

	food := list("?category=%D0%B5%D0%B4%D0%B0&from=2025-07-01T00:00:00Z")
	require.Len(t, food, 2)

	page := list("?limit=1&offset=1")
	require.Len(t, page, 1)
	assert.Equal(t, "3.00", page[0].Amount.String())

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/expenses?from=yesterday", h.tokens[1], "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/expenses?limit=-1", h.tokens[1], "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/expenses?from=2025-08-01&to=2025-07-01", h.tokens[1], "").Code)
}

func TestMonthReport(t *testing.T) {
	h := newHarness(t)
	tok := h.tokens[1]
	for _, body := range []string{
		`{"amount":"10","category":"еда"}`,
		`{"amount":"3","category":"еда"}`,
		`{"amount":"5","category":"такси"}`,
	} {
		require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/expenses", tok, body).Code)
	}
	now := time.Now().UTC()

	rr := h.do(http.MethodGet, "/api/reports/"+itoa(int64(now.Year()))+"/"+itoa(int64(now.Month())), tok, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	ov := decode[core.MonthOverview](t, rr)
	assert.Equal(t, "18.00", ov.Total.String())
	require.Len(t, ov.ByCategory, 2)
	assert.Equal(t, "еда", ov.ByCategory[0].Name)
	assert.Equal(t, "13.00", ov.ByCategory[0].Amount.String())

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/reports/2025/13", tok, "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/api/reports/x/1", tok, "").Code)
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	store := memory.NewStore()
	accounts := services.NewAccountResolver(store, nil, nil)
	u, err := accounts.Resolve(context.Background(), core.Identity{ExternalID: 7})
	require.NoError(t, err)
	token, err := accounts.IssueToken(context.Background(), u.ID)
	require.NoError(t, err)

	srv := NewServer(Config{RateLimitPerMinute: 1}, Deps{
		Auth:     accounts,
		Expenses: services.NewExpenseService(store, nil, nil),
		Store:    store,
	}, nil)
	send := func(method string) int {
		req := httptest.NewRequest(method, "/api/expenses", strings.NewReader(`{"amount":"1","category":"a"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusCreated, send(http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, send(http.MethodPost))
	assert.Equal(t, http.StatusOK, send(http.MethodGet))
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("bearer  abc ")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = bearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = bearerToken("Bearer")
	assert.False(t, ok)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
