package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/risk-engine/internal/events"
)

// MockPriceSource serves canned bars for sync tests
type MockPriceSource struct {
	bars      []Bar
	shouldErr bool
}

func (m *MockPriceSource) GetDailyBars(ctx context.Context, symbol, rng string) ([]Bar, error) {
	if m.shouldErr {
		return nil, fmt.Errorf("mock fetch error")
	}
	return m.bars, nil
}

func setupRouter(t *testing.T, source PriceSource) (*chi.Mux, *Store) {
	t.Helper()

	store := testStore(t)
	handler := NewHandler(store, source, events.NewManager(zerolog.Nop()), zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api/marketdata", handler.Routes)
	return r, store
}

func TestHandleSymbolsAndPrices(t *testing.T) {
	router, store := setupRouter(t, nil)
	require.NoError(t, store.SaveDailyPrices("ACME", testBars()))

	req := httptest.NewRequest("GET", "/api/marketdata/symbols", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var symbols []string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&symbols))
	assert.Equal(t, []string{"ACME"}, symbols)

	req = httptest.NewRequest("GET", "/api/marketdata/prices/ACME?limit=2", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var bars []Bar
	require.NoError(t, json.NewDecoder(w.Body).Decode(&bars))
	assert.Len(t, bars, 2)
}

func TestHandleSavePrices(t *testing.T) {
	router, store := setupRouter(t, nil)

	payload, err := json.Marshal(testBars())
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/marketdata/prices/ACME", strings.NewReader(string(payload)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	bars, err := store.GetDailyPrices("ACME", 10)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestHandleSavePrices_EmptyBody(t *testing.T) {
	router, _ := setupRouter(t, nil)

	req := httptest.NewRequest("POST", "/api/marketdata/prices/ACME", strings.NewReader("[]"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSyncPrices(t *testing.T) {
	router, store := setupRouter(t, &MockPriceSource{bars: testBars()})

	req := httptest.NewRequest("POST", "/api/marketdata/prices/ACME/sync?range=1mo", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, float64(3), resp["synced"])

	bars, err := store.GetDailyPrices("ACME", 10)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
}

func TestHandleSyncPrices_SourceFailures(t *testing.T) {
	tests := []struct {
		name   string
		source PriceSource
		want   int
	}{
		{"no source configured", nil, http.StatusServiceUnavailable},
		{"fetch error", &MockPriceSource{shouldErr: true}, http.StatusBadGateway},
		{"no bars for symbol", &MockPriceSource{}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t, tt.source)

			req := httptest.NewRequest("POST", "/api/marketdata/prices/GHOST/sync", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
