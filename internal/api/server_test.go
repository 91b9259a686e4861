package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridge/internal/board"
	"fridge/internal/config"
	"fridge/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := board.NewService(store.NewMemoryStore(), nil)
	svc.SetClock(func() time.Time {
		return time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	})
	return New(config.APIConfig{}, nil, svc)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
}

func TestUserEndpointDefaults(t *testing.T) {
	srv := newTestServer(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/api/user/alice", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", body["user_id"])
	assert.Equal(t, 5000.0, body["balance"])
	assert.Equal(t, 0.0, body["performance"])
}

func TestTradeFlowThroughAPI(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec, body := doJSON(t, h, http.MethodPost, "/api/user/alice/trade", map[string]any{
		"result": "win", "amount": 100, "nickname": "Al",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "nickname set to Al", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, 5100.0, user["balance"])
	assert.Equal(t, 1.0, user["trades_this_period"])

	rec, body = doJSON(t, h, http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := body["leaderboard"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "Al", rows[0].(map[string]any)["nickname"])
	assert.NotEmpty(t, body["timestamp"])
}

// The decoder tolerates string-typed numbers in trade and update bodies.
func TestTradeAcceptsStringAmount(t *testing.T) {
	srv := newTestServer(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/user/bob/trade", map[string]any{
		"result": "win", "amount": "25.5",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	user := body["user"].(map[string]any)
	assert.Equal(t, 5025.5, user["balance"])
}

func TestTradeInvalidResultIs400(t *testing.T) {
	srv := newTestServer(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/user/alice/trade", map[string]any{
		"result": "draw",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestUpdateUserCoercionFallback(t *testing.T) {
	srv := newTestServer(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/user/erin", map[string]any{
		"balance": "not-a-number",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	user := body["user"].(map[string]any)
	assert.Equal(t, 5000.0, user["balance"])
}

func TestLiveWinsValidation(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec, body := doJSON(t, h, http.MethodGet, "/api/live-wins?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, body["error"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/live-wins?minutes=soon", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = doJSON(t, h, http.MethodGet, "/api/live-wins", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "recent_trades")
	assert.Contains(t, body, "summary")
	assert.NotEmpty(t, body["timestamp"])
}

func TestLiveWinsNicknameFilter(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	_, _ = doJSON(t, h, http.MethodPost, "/api/user/alice/trade", map[string]any{"result": "win", "amount": 10, "nickname": "Al"})
	_, _ = doJSON(t, h, http.MethodPost, "/api/user/bob/trade", map[string]any{"result": "lose", "amount": 5, "nickname": "Bobby"})

	rec, body := doJSON(t, h, http.MethodGet, "/api/live-wins?nickname=al", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := body["recent_trades"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].(map[string]any)["user_id"])
	summary := body["summary"].(map[string]any)
	require.Contains(t, summary, "Al")
	assert.Equal(t, 10.0, summary["Al"].(map[string]any)["net"])
}

func TestCloseMonthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	_, _ = doJSON(t, h, http.MethodPost, "/api/user/u1/trade", map[string]any{"result": "win", "amount": 100})

	rec, body := doJSON(t, h, http.MethodPost, "/api/close_month", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "closed", body["status"])
	assert.Equal(t, "2025-02", body["month"])
	require.Len(t, body["podium"].([]any), 1)

	rec, body = doJSON(t, h, http.MethodPost, "/api/close_month", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "already_closed", body["status"])
	assert.NotContains(t, body, "podium")
}

func TestCloseMonthWithNoUsersReturnsEmptyPodium(t *testing.T) {
	srv := newTestServer(t)

	rec, body := doJSON(t, srv.Handler(), http.MethodPost, "/api/close_month", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "closed", body["status"])
	require.Contains(t, body, "podium")
	assert.Empty(t, body["podium"].([]any))
}

func TestIdempotencyKeyDedup(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	send := func() *httptest.ResponseRecorder {
		payload, err := json.Marshal(map[string]any{"result": "win", "amount": 100})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/user/alice/trade", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "trade-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := send()
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send()
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The replay did not apply a second trade.
	rec2, body := doJSON(t, h, http.MethodGet, "/api/user/alice", nil)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Equal(t, 5100.0, body["balance"])
	assert.Equal(t, 1.0, body["trades_this_period"])
}

func TestWinnersEndpoints(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec, body := doJSON(t, h, http.MethodGet, "/api/winners", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, body["latest"])

	rec, _ = doJSON(t, h, http.MethodGet, "/api/winners/2020-01", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, _ = doJSON(t, h, http.MethodPost, "/api/user/u1/trade", map[string]any{"result": "win", "amount": 100})
	_, _ = doJSON(t, h, http.MethodPost, "/api/close_month", nil)

	rec, body = doJSON(t, h, http.MethodGet, "/api/winners", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-02", body["latest"])
	assert.Contains(t, body["monthly_winners"].(map[string]any), "2025-02")

	rec, body = doJSON(t, h, http.MethodGet, "/api/winners/2025-02", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-02", body["month"])
	snap := body["winners"].(map[string]any)
	assert.NotEmpty(t, snap["closed_at"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIndexFallbackWithoutStaticDir(t *testing.T) {
	srv := newTestServer(t)
	rec, body := doJSON(t, srv.Handler(), http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["message"], "static index not found")
}

func TestBadJSONBodyIs400(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/user/alice/trade", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
