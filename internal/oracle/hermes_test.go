package oracle

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

	"github.com/Aidin1998/stablecoin/pkg/errors"
)

const hermesBody = `{
  "binary": {"encoding": "hex", "data": []},
  "parsed": [{
    "id": "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d",
    "price": {"price": "15012345678", "conf": "7430000", "expo": -8, "publish_time": 1700000000},
    "ema_price": {"price": "15000000000", "conf": "7000000", "expo": -8, "publish_time": 1700000000}
  }]
}`

func hermesServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestHermesFeedParsesLatestPrice(t *testing.T) {
	srv := hermesServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, latestPricePath, r.URL.Path)
		assert.Equal(t, SOLUSDFeedID, r.URL.Query().Get("ids[]"))
		assert.Equal(t, "true", r.URL.Query().Get("parsed"))
		writeJSON(w, http.StatusOK, hermesBody)
	})

	feed := NewHermesFeed(srv.URL, time.Second, 0, zap.NewNop())
	update, err := feed.GetPrice(context.Background(), SOLUSDFeedID)
	require.NoError(t, err)
	assert.Equal(t, int64(15_012_345_678), update.Price)
	assert.Equal(t, uint64(7_430_000), update.Conf)
	assert.Equal(t, int32(-8), update.Exponent)
	assert.Equal(t, time.Unix(1_700_000_000, 0), update.PublishTime)

	client := NewClient(feed, SOLUSDFeedID, zap.NewNop(), WithClock(fixedClock(time.Unix(1_700_000_050, 0))))
	quote, err := client.Quote(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "150.12345678", quote.Decimal().String())
}

func TestHermesFeedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := hermesServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, `{"error":"busy"}`)
			return
		}
		writeJSON(w, http.StatusOK, hermesBody)
	})

	update, err := NewHermesFeed(srv.URL, time.Second, 2, zap.NewNop()).GetPrice(context.Background(), SOLUSDFeedID)
	require.NoError(t, err)
	assert.Equal(t, int64(15_012_345_678), update.Price)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHermesFeedErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{"error":"unknown feed"}`, errors.ErrCollaboratorFailure},
		{"empty", http.StatusOK, `{"parsed": []}`, errors.ErrInvalidPrice},
		{"malformed price", http.StatusOK, `{"parsed": [{"id": "ef", "price": {"price": "abc", "expo": -8}}]}`, errors.ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := hermesServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := NewHermesFeed(srv.URL, time.Second, 0, zap.NewNop()).GetPrice(context.Background(), SOLUSDFeedID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHermesFeedUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHermesFeed(url, 200*time.Millisecond, 0, zap.NewNop()).GetPrice(context.Background(), SOLUSDFeedID)
	assert.ErrorIs(t, err, errors.ErrCollaboratorFailure)
}
