package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/pkg/apikey"
	"github.com/nexbridge/bridge-middleware/pkg/auth"
	"github.com/nexbridge/bridge-middleware/pkg/health"
	"github.com/nexbridge/bridge-middleware/pkg/quote"
	"github.com/nexbridge/bridge-middleware/pkg/ratelimit"
)

func newQuoteTestServer(svc Service) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, svc, zap.NewNop())
	return r
}

func TestDiscoverHTTP_Success(t *testing.T) {
	agg := &mockAggregator{GetRankedQuotesFunc: func(_ context.Context, req *quote.Request) (*quote.RankedResult, error) {
		assert.Equal(t, "ethereum", req.SourceChain)
		assert.Equal(t, "1000000", req.Amount.String())
		assert.Equal(t, quote.Weights{Speed: 1}, req.Preferences)
		return &quote.RankedResult{ID: "res-1", Request: *req}, nil
	}}
	handler := newQuoteTestServer(NewService(agg, &mockHealth{}, &mockLimiter{}, zap.NewNop()))

	body := `{
		"source_chain": "ethereum",
		"destination_chain": "polygon",
		"source_token": "USDC",
		"destination_token": "USDC",
		"amount": "1000000",
		"preferences": {"speed_weight": 1}
	}`
	req := httptest.NewRequest(http.MethodPost, "/routes/discover", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got quote.RankedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "res-1", got.ID)
}

func TestDiscoverHTTP_InvalidJSON(t *testing.T) {
	handler := newQuoteTestServer(NewService(&mockAggregator{}, &mockHealth{}, &mockLimiter{}, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/routes/discover", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var got struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "invalid JSON", got.Error)
	assert.Equal(t, http.StatusBadRequest, got.Code)
}

func TestDiscoverHTTP_NonIntegerAmount(t *testing.T) {
	handler := newQuoteTestServer(NewService(&mockAggregator{}, &mockHealth{}, &mockLimiter{}, zap.NewNop()))

	body := `{"source_chain":"a","destination_chain":"b","source_token":"t","destination_token":"t","amount":"12.5"}`
	req := httptest.NewRequest(http.MethodPost, "/routes/discover", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "decimal integer string")
}

func TestDiscoverHTTP_MissingFields(t *testing.T) {
	agg := &mockAggregator{GetRankedQuotesFunc: func(_ context.Context, req *quote.Request) (*quote.RankedResult, error) {
		return nil, req.Validate()
	}}
	handler := newQuoteTestServer(NewService(agg, &mockHealth{}, &mockLimiter{}, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/routes/discover", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProviderHealthHTTP(t *testing.T) {
	healthSource := &mockHealth{snapshot: []health.ProviderHealth{
		{Provider: "relaybridge", State: "half_open"},
	}}
	handler := newQuoteTestServer(NewService(&mockAggregator{}, healthSource, &mockLimiter{}, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/providers/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Providers []struct {
			Provider string `json:"provider"`
			State    string `json:"state"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Providers, 1)
	assert.Equal(t, "relaybridge", got.Providers[0].Provider)
	assert.Equal(t, "half_open", got.Providers[0].State)
}

func TestUsageHTTP_RequiresKey(t *testing.T) {
	handler := newQuoteTestServer(NewService(&mockAggregator{}, &mockHealth{}, &mockLimiter{}, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUsageHTTP_ReportsForAuthenticatedKey(t *testing.T) {
	limiter := &mockLimiter{UsageFunc: func(context.Context, string) (map[ratelimit.Window]int, error) {
		return map[ratelimit.Window]int{ratelimit.WindowMinute: 12}, nil
	}}
	handler := newQuoteTestServer(NewService(&mockAggregator{}, &mockHealth{}, limiter, zap.NewNop()))

	key := &apikey.Key{ID: "key-1", PerMinute: 60, PerHour: 1000, PerDay: 10000, Active: true}
	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	req = req.WithContext(auth.WithAPIKey(req.Context(), key))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got UsageReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 60, got.Quota.PerMinute)
	assert.Equal(t, 12, got.Used["minute"])
}
