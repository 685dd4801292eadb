package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/EUR":
			w.Write([]byte(`{"base":"EUR","rates":{"USD":1.10,"GBP":0.85}}`))
		case "/USD":
			w.Write([]byte(`{"base":"USD","rates":{"EUR":0.91}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestConvert(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	defer server.Close()

	c := NewConverter(Config{BaseURL: server.URL}, zap.NewNop())

	got, err := c.Convert(context.Background(), 100, "EUR", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 110.0, got, 0.001)

	_, err = c.Convert(context.Background(), 100, "EUR", "JPY")
	assert.Error(t, err, "unknown target currency")

	_, err = c.Convert(context.Background(), 100, "XXX", "USD")
	assert.Error(t, err, "unknown base currency")
}

func TestConvert_SameCurrencySkipsNetwork(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	defer server.Close()

	c := NewConverter(Config{BaseURL: server.URL}, zap.NewNop())

	got, err := c.Convert(context.Background(), 42.5, "usd", "USD")
	require.NoError(t, err)
	assert.Equal(t, 42.5, got)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestConvert_CachesPerBaseCurrency(t *testing.T) {
	var hits int32
	server := newTestServer(t, &hits)
	defer server.Close()

	c := NewConverter(Config{BaseURL: server.URL, CacheTTL: time.Hour}, zap.NewNop())

	for i := 0; i < 5; i++ {
		_, err := c.Convert(context.Background(), 100, "EUR", "USD")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err := c.Convert(context.Background(), 100, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "each base currency is cached separately")
}

func TestConvert_ServesStaleOnFailure(t *testing.T) {
	var hits int32
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"base":"EUR","rates":{"USD":1.10}}`))
	}))
	defer server.Close()

	c := NewConverter(Config{BaseURL: server.URL, CacheTTL: time.Nanosecond}, zap.NewNop())

	_, err := c.Convert(context.Background(), 100, "EUR", "USD")
	require.NoError(t, err)

	fail.Store(true)
	time.Sleep(time.Millisecond)

	got, err := c.Convert(context.Background(), 100, "EUR", "USD")
	require.NoError(t, err, "stale rates are served when the upstream fails")
	assert.InDelta(t, 110.0, got, 0.001)
}
