package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/billbatista/acasinha-chores/category"
	"github.com/billbatista/acasinha-chores/database/dbtest"
	"github.com/billbatista/acasinha-chores/event"
	"github.com/billbatista/acasinha-chores/eventlogger"
	"github.com/billbatista/acasinha-chores/household"
	"github.com/billbatista/acasinha-chores/idempotency"
	"github.com/billbatista/acasinha-chores/item"
	"github.com/billbatista/acasinha-chores/ledger"
	"github.com/billbatista/acasinha-chores/metrics"
	"github.com/billbatista/acasinha-chores/middleware"
	"github.com/billbatista/acasinha-chores/session"
	"github.com/billbatista/acasinha-chores/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncActivity saves activity inline so tests can read it back at once.
type syncActivity struct {
	logger eventlogger.EventLogger
}

func (a syncActivity) Log(e eventlogger.Event) {
	_ = a.logger.Save(context.Background(), e)
}

type testServer struct {
	handler http.Handler
	users   map[string]user.User
	purch   *category.Category
	clean   *category.Category
	paper   *item.Item
	cookie  *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)

	users := user.NewRepository(db)
	categories := category.NewRepository(db)
	items := item.NewRepository(db)

	ts := &testServer{users: make(map[string]user.User)}
	for _, name := range []string{"Aldo", "Jaz", "Maia", "Simon"} {
		pin := ""
		if name == "Jaz" {
			pin = "1234"
		}
		u, err := users.Register(ctx, name, pin)
		require.NoError(t, err)
		ts.users[name] = *u
	}

	var err error
	ts.purch, err = categories.Create(ctx, "Purchases", "🛍️", category.KindOrdinary)
	require.NoError(t, err)
	ts.clean, err = categories.Create(ctx, "Room Cleaning", "🧹", category.KindRotation)
	require.NoError(t, err)
	ts.paper, err = items.Create(ctx, "Toilet paper", "🧻")
	require.NoError(t, err)

	store, err := idempotency.Open(filepath.Join(t.TempDir(), "idempotency.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2025, time.November, 26, 10, 0, 0, 0, time.UTC)
	activity := eventlogger.NewSqlEventLogger(db)
	m := metrics.New()

	srv := New(Deps{
		Household: household.New(household.Stores{
			Users:      users,
			Categories: categories,
			Events:     event.NewRepository(db),
			Ledger:     ledger.NewRepository(db),
			Items:      items,
		},
			household.WithClock(func() time.Time { return now }),
			household.WithLocation(time.UTC),
			household.WithMetrics(m),
		),
		Users:       users,
		Categories:  categories,
		Items:       items,
		Sessions:    session.NewRepository(db),
		Activity:    syncActivity{logger: activity},
		ActivityLog: activity,
		Metrics:     m,
		Idempotency: store,
		Money:       Money{Currency: "MXN", Decimals: 2},
	})
	ts.handler = srv.Routes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) id(name string) uuid.UUID {
	return ts.users[name].ID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUsers(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/users", map[string]string{"name": "Rosa"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeBody[[]userView](t, rec)
	require.Len(t, users, 5)
	assert.Equal(t, "Aldo", users[0].Name)
	assert.Equal(t, "Rosa", users[3].Name)

	for _, u := range users {
		assert.Equal(t, u.Name == "Jaz", u.HasPIN, u.Name)
	}

	rec = ts.do(t, http.MethodPost, "/users", map[string]string{"name": "Rosa"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"user already exists","code":"conflict"}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/users", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategories(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/categories", map[string]string{"name": "Trash", "icon": "🗑️", "kind": "recency"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[category.Category](t, rec)
	assert.Equal(t, category.KindRecency, created.Kind)

	rec = ts.do(t, http.MethodGet, "/categories", nil)
	assert.Len(t, decodeBody[[]category.Category](t, rec), 3)
}

func TestRecordExpenseAndBalances(t *testing.T) {
	ts := newTestServer(t)

	cost := int64(40000)
	rec := ts.do(t, http.MethodPost, "/events", map[string]any{
		"user_id":     ts.id("Aldo"),
		"category_id": ts.purch.ID,
		"cost":        cost,
		"notes":       "groceries",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[household.ExpenseResult](t, rec)
	assert.Len(t, res.Entries, 4)

	rec = ts.do(t, http.MethodGet, "/balances/"+ts.id("Aldo").String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	balance := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 30000, balance["balance"])
	assert.Equal(t, "300.00 MXN", balance["formatted"])
	assert.Equal(t, string(ledger.StandingOwed), balance["standing"])

	rec = ts.do(t, http.MethodGet, "/balances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeBody[[]balanceView](t, rec)
	require.Len(t, board, 4)
	var net int64
	for _, b := range board {
		net += b.Balance
		if b.UserName == "Maia" {
			assert.Equal(t, int64(-10000), b.Balance)
			assert.Equal(t, "-100.00 MXN", b.Formatted)
		}
	}
	assert.Zero(t, net)

	rec = ts.do(t, http.MethodGet, "/events/"+res.Event.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 40000, decodeBody[household.EventWithCost](t, rec).Cost)

	rec = ts.do(t, http.MethodGet, "/events", nil)
	events := decodeBody[[]household.EventWithCost](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, "Aldo", events[0].UserName)

	rec = ts.do(t, http.MethodGet, "/events?category_id="+ts.purch.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]household.EventWithCost](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/events?category_id="+ts.clean.ID.String(), nil)
	assert.Empty(t, decodeBody[[]household.EventWithCost](t, rec))

	rec = ts.do(t, http.MethodGet, "/events?category_id="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/ledger", nil)
	assert.Len(t, decodeBody[[]ledger.Entry](t, rec), 4)

	rec = ts.do(t, http.MethodGet, "/activity?type="+eventlogger.TypeExpenseRecorded, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]eventlogger.Event](t, rec), 1)
}

func TestRecordEventErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "bad json", body: "not an object", status: http.StatusBadRequest},
		{name: "no user", body: map[string]any{"category_id": ts.purch.ID}, status: http.StatusBadRequest},
		{name: "unknown user", body: map[string]any{"user_id": uuid.New(), "category_id": ts.purch.ID}, status: http.StatusBadRequest},
		{name: "unknown category", body: map[string]any{"user_id": ts.id("Aldo"), "category_id": uuid.New()}, status: http.StatusBadRequest},
		{name: "negative cost", body: map[string]any{"user_id": ts.id("Aldo"), "category_id": ts.purch.ID, "cost": -5}, status: http.StatusBadRequest},
		{name: "item without stock", body: map[string]any{"user_id": ts.id("Aldo"), "category_id": ts.purch.ID, "item_id": ts.paper.ID}, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/events", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "validation", decodeBody[map[string]string](t, rec)["code"])
		})
	}

	rec := ts.do(t, http.MethodGet, "/events/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/events/nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordEventWithStock(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/events", map[string]any{
		"user_id":     ts.id("Simon"),
		"category_id": ts.purch.ID,
		"item_id":     ts.paper.ID,
		"stock":       6,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[household.ExpenseResult](t, rec)
	require.NotNil(t, res.Stock)
	assert.Empty(t, res.Entries)

	rec = ts.do(t, http.MethodGet, "/items", nil)
	items := decodeBody[[]item.WithStock](t, rec)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Stock)
	assert.Equal(t, 6, items[0].Stock.Level)
}

func TestItemsAndStock(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/items", map[string]string{"name": "Detergent"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[item.WithStock](t, rec)

	rec = ts.do(t, http.MethodPost, "/stock", map[string]any{"item_id": created.ID, "stock": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/stock", map[string]any{"item_id": created.ID, "stock": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettlement(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/ledger/pay", map[string]any{
		"payer_id":       ts.id("Maia"),
		"beneficiary_id": ts.id("Aldo"),
		"amount":         2500,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decodeBody[ledger.Entry](t, rec)
	assert.True(t, entry.IsSettlement())

	rec = ts.do(t, http.MethodGet, "/balances/"+ts.id("Maia").String(), nil)
	assert.EqualValues(t, 2500, decodeBody[map[string]any](t, rec)["balance"])

	rec = ts.do(t, http.MethodPost, "/ledger/pay", map[string]any{
		"payer_id":       ts.id("Maia"),
		"beneficiary_id": ts.id("Aldo"),
		"amount":         0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScheduleAndStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/schedule?weeks=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody[map[string][]map[string]any](t, rec)
	schedule := body["schedule"]
	require.Len(t, schedule, 3)
	assert.Equal(t, "Aldo", schedule[0]["user"])
	assert.Equal(t, "2025-11-29 (Sat)", schedule[0]["date"])

	rec = ts.do(t, http.MethodGet, "/schedule?weeks=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/schedule?category=Laundry", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/status_view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeBody[household.TaskBoard](t, rec)
	assert.Equal(t, "Pending: Aldo's turn (2025-11-29).", board.Cleaning.Message)
	assert.Equal(t, "Category missing. Add a 'Trash' category to enable tracking.", board.Trash.Message)
}

func TestSessionFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/session/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/session", map[string]any{"user_id": ts.id("Jaz"), "pin": "0000"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/session", map[string]any{"user_id": uuid.New()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/session", map[string]any{"user_id": ts.id("Jaz"), "pin": "1234"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, session.CookieName, cookies[0].Name)
	ts.cookie = cookies[0]

	rec = ts.do(t, http.MethodGet, "/session/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jaz", decodeBody[user.User](t, rec).Name)

	// the session user pays when the request names nobody
	rec = ts.do(t, http.MethodPost, "/events", map[string]any{"category_id": ts.clean.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, ts.id("Jaz"), decodeBody[household.ExpenseResult](t, rec).Event.UserID)

	rec = ts.do(t, http.MethodPost, "/session/logout", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/session/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/activity", nil)
	types := map[string]bool{}
	for _, e := range decodeBody[[]eventlogger.Event](t, rec) {
		types[e.Type] = true
	}
	assert.True(t, types[eventlogger.TypeSessionStarted])
	assert.True(t, types[eventlogger.TypeSessionEnded])
	assert.True(t, types[eventlogger.TypeEventRecorded])
}

func TestSessionWithoutPIN(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/session", map[string]any{"user_id": ts.id("Maia")})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestIdempotentExpense(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]any{
		"user_id":     ts.id("Aldo"),
		"category_id": ts.purch.ID,
		"cost":        1000,
	}

	first := ts.do(t, http.MethodPost, "/events", body, middleware.IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := ts.do(t, http.MethodPost, "/events", body, middleware.IdempotencyKeyHeader, "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(middleware.ReplayedHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := ts.do(t, http.MethodGet, "/events", nil)
	assert.Len(t, decodeBody[[]household.EventWithCost](t, rec), 1)

	body["cost"] = 2000
	rec = ts.do(t, http.MethodPost, "/events", body, middleware.IdempotencyKeyHeader, "k-1")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health", nil)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acasinha_http_requests_total")
}

func TestSessionRetryWithIdempotencyKeyGetsCookie(t *testing.T) {
	ts := newTestServer(t)
	login := map[string]any{"user_id": ts.id("Jaz"), "pin": "1234"}

	first := ts.do(t, http.MethodPost, "/session", login, middleware.IdempotencyKeyHeader, "login-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	require.Len(t, first.Result().Cookies(), 1)

	retry := ts.do(t, http.MethodPost, "/session", login, middleware.IdempotencyKeyHeader, "login-1")
	require.Equal(t, http.StatusCreated, retry.Code, retry.Body.String())
	assert.Empty(t, retry.Header().Get(middleware.ReplayedHeader))
	cookies := retry.Result().Cookies()
	require.Len(t, cookies, 1)
	require.NotEmpty(t, cookies[0].Value)

	ts.cookie = cookies[0]
	rec := ts.do(t, http.MethodGet, "/session/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jaz", decodeBody[user.User](t, rec).Name)

	rec = ts.do(t, http.MethodPost, "/session/logout", nil, middleware.IdempotencyKeyHeader, "logout-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.ReplayedHeader))
}
