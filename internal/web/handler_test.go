package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"coinboard/internal/models"
	"coinboard/internal/page"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFetcher struct {
	mu      sync.Mutex
	results map[models.Currency][]models.CoinSummary
	err     error
}

func (f *stubFetcher) FetchMarkets(ctx context.Context, currency models.Currency) ([]models.CoinSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results[currency], nil
}

type stubStats struct{}

func (stubStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"rate_limit_hits": int64(0)}
}

func coin(id, name string, marketCap int64) models.CoinSummary {
	return models.CoinSummary{
		ID:        id,
		Name:      name,
		Symbol:    id[:3],
		MarketCap: decimal.NewNullDecimal(decimal.NewFromInt(marketCap)),
	}
}

var inrCoins = []models.CoinSummary{
	coin("ethereum", "Ethereum", 30),
	coin("bitcoin", "Bitcoin", 100),
}

var usdCoins = []models.CoinSummary{
	coin("tether", "Tether", 10),
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	router *gin.Engine
	store  *SessionStore
}

func newTestEnv(t *testing.T, fetcher page.Fetcher, currencies []models.Currency) *testEnv {
	t.Helper()
	logger := testLogger()

	store := NewSessionStore(func() *page.Controller {
		return page.NewController(fetcher, models.INR, logger)
	}, time.Hour, logger)
	t.Cleanup(store.Close)

	handler := NewHandler(store, currencies, stubStats{}, "test", logger)
	return &testEnv{router: handler.SetupRoutes(time.Hour), store: store}
}

func (e *testEnv) do(method, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// session opens a session and waits for its initial fetch
func (e *testEnv) session(t *testing.T) *http.Cookie {
	t.Helper()
	w := e.do(http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie not set")
	assert.True(t, cookie.HttpOnly)

	e.wait(t, cookie)
	return cookie
}

func (e *testEnv) wait(t *testing.T, cookie *http.Cookie) {
	t.Helper()
	controller, ok := e.store.Lookup(cookie.Value)
	require.True(t, ok)
	controller.Wait()
}

func (e *testEnv) snapshot(t *testing.T, cookie *http.Cookie) coinsResponse {
	t.Helper()
	w := e.do(http.MethodGet, "/api/v1/coins", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var resp coinsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func coinIDs(coins []models.CoinSummary) []string {
	ids := make([]string, 0, len(coins))
	for _, c := range coins {
		ids = append(ids, c.ID)
	}
	return ids
}

func defaultEnv(t *testing.T) *testEnv {
	fetcher := &stubFetcher{results: map[models.Currency][]models.CoinSummary{
		models.INR: inrCoins,
		models.USD: usdCoins,
	}}
	return newTestEnv(t, fetcher, models.SupportedCurrencies())
}

func TestRenderPage(t *testing.T) {
	env := defaultEnv(t)
	cookie := env.session(t)

	w := env.do(http.MethodGet, "/", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Bitcoin")
	assert.Contains(t, w.Body.String(), "Low to High")
	assert.Equal(t, 1, env.store.Len())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1, "known session cookie is refreshed")
	assert.Equal(t, cookie.Value, cookies[0].Value)
	assert.Equal(t, 3600, cookies[0].MaxAge)
}

func TestSearchAndSort(t *testing.T) {
	env := defaultEnv(t)
	cookie := env.session(t)

	resp := env.snapshot(t, cookie)
	assert.Equal(t, []string{"ethereum", "bitcoin"}, coinIDs(resp.Coins))
	assert.Equal(t, models.SortAscending, resp.SortOrder)

	w := env.do(http.MethodPost, "/sort", url.Values{}, cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	resp = env.snapshot(t, cookie)
	assert.Equal(t, models.SortDescending, resp.SortOrder)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, coinIDs(resp.Coins))

	w = env.do(http.MethodPost, "/search", url.Values{"q": {"bit"}}, cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	resp = env.snapshot(t, cookie)
	assert.Equal(t, "bit", resp.SearchTerm)
	assert.Equal(t, []string{"bitcoin"}, coinIDs(resp.Coins))
	assert.Equal(t, 2, resp.Total)
}

func TestChangeCurrency(t *testing.T) {
	env := defaultEnv(t)
	cookie := env.session(t)

	w := env.do(http.MethodPost, "/currency", url.Values{"currency": {"usd"}}, cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	env.wait(t, cookie)

	resp := env.snapshot(t, cookie)
	assert.Equal(t, models.USD, resp.Currency)
	assert.Equal(t, []string{"tether"}, coinIDs(resp.Coins))
	assert.Equal(t, uint64(2), resp.Generation)
}

func TestChangeCurrencyRejectsInvalid(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{}, []models.Currency{models.INR, models.USD})
	cookie := env.session(t)

	tests := []struct {
		name  string
		value string
	}{
		{name: "unknown code", value: "GBP"},
		{name: "empty", value: ""},
		{name: "not configured", value: "EUR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/currency", url.Values{"currency": {tt.value}}, cookie)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Contains(t, body["error"], "unsupported currency")
			assert.NotEmpty(t, body["request_id"])
		})
	}

	assert.Equal(t, models.INR, env.snapshot(t, cookie).Currency)
}

func TestSelectAndClose(t *testing.T) {
	env := defaultEnv(t)
	cookie := env.session(t)

	w := env.do(http.MethodGet, "/select/dogecoin", nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Nil(t, env.snapshot(t, cookie).Selected)

	w = env.do(http.MethodGet, "/select/bitcoin", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)

	resp := env.snapshot(t, cookie)
	require.NotNil(t, resp.Selected)
	assert.Equal(t, "bitcoin", resp.Selected.ID)

	rendered := env.do(http.MethodGet, "/", nil, cookie)
	assert.Contains(t, rendered.Body.String(), `href="/close"`)

	w = env.do(http.MethodGet, "/close", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Nil(t, env.snapshot(t, cookie).Selected)
}

func TestFetchFailureRendersEmptyTable(t *testing.T) {
	env := newTestEnv(t, &stubFetcher{err: errors.New("boom")}, models.SupportedCurrencies())
	cookie := env.session(t)

	resp := env.snapshot(t, cookie)
	assert.Empty(t, resp.Coins)
	assert.Equal(t, uint64(0), resp.Generation)

	w := env.do(http.MethodGet, "/", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionsAreIndependent(t *testing.T) {
	env := defaultEnv(t)
	first := env.session(t)
	second := env.session(t)
	assert.NotEqual(t, first.Value, second.Value)

	env.do(http.MethodPost, "/search", url.Values{"q": {"eth"}}, first)

	assert.Equal(t, "eth", env.snapshot(t, first).SearchTerm)
	assert.Equal(t, "", env.snapshot(t, second).SearchTerm)
}

func TestUnknownSessionCookieStartsNewSession(t *testing.T) {
	env := defaultEnv(t)

	w := env.do(http.MethodGet, "/", nil, &http.Cookie{Name: SessionCookieName, Value: "stale"})
	assert.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, "stale", cookies[0].Value)
}

func TestHealth(t *testing.T) {
	env := defaultEnv(t)

	w := env.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Contains(t, body, "uptime_seconds")
	assert.Contains(t, body, "upstream")
	assert.Empty(t, w.Result().Cookies(), "health does not open a session")
}

func TestMetricsEndpoint(t *testing.T) {
	env := defaultEnv(t)
	env.session(t)

	w := env.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "coinboard_active_sessions")
}

func TestRequestIDHeader(t *testing.T) {
	env := defaultEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeaderKey, "req-123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeaderKey))

	w = env.do(http.MethodGet, "/health", nil, nil)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeaderKey))
}

func dialRefresh(t *testing.T, server *httptest.Server, cookie *http.Cookie) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	header := http.Header{}
	if cookie != nil {
		header.Set("Cookie", cookie.String())
	}
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	return websocket.DefaultDialer.Dial(wsURL, header)
}

func readRefresh(t *testing.T, conn *websocket.Conn) refreshMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg refreshMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketAnnouncesLandedFetch(t *testing.T) {
	env := defaultEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	// The first render happens before the mount fetch lands.
	w := env.do(http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	env.wait(t, cookies[0])

	conn, _, err := dialRefresh(t, server, cookies[0])
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, refreshMessage{Type: "refresh", Generation: 1}, readRefresh(t, conn))
}

func TestWebSocketRefresh(t *testing.T) {
	env := defaultEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	cookie := env.session(t)

	conn, _, err := dialRefresh(t, server, cookie)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, uint64(1), readRefresh(t, conn).Generation)

	w := env.do(http.MethodPost, "/currency", url.Values{"currency": {"USD"}}, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	msg := readRefresh(t, conn)
	assert.Equal(t, "refresh", msg.Type)
	assert.Equal(t, uint64(2), msg.Generation)
}

func TestWebSocketRequiresSession(t *testing.T) {
	env := defaultEnv(t)
	server := httptest.NewServer(env.router)
	defer server.Close()

	_, resp, err := dialRefresh(t, server, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, env.store.Len())
}

func TestRoutesWithoutSessionDoNotOpenOne(t *testing.T) {
	env := defaultEnv(t)

	w := env.do(http.MethodGet, "/api/v1/coins", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["request_id"])

	w = env.do(http.MethodPost, "/sort", url.Values{}, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = env.do(http.MethodGet, "/select/bitcoin", nil, &http.Cookie{Name: SessionCookieName, Value: "stale"})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Empty(t, w.Result().Cookies())

	assert.Equal(t, 0, env.store.Len())
}
