package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostBreaker_OpensAfterThreshold(t *testing.T) {
	b := newHostBreaker(3, 30*time.Second)

	boom := errors.New("boom")
	b.record("example.com", boom)
	b.record("example.com", boom)
	require.NoError(t, b.allow())

	b.record("example.com", boom)
	assert.ErrorIs(t, b.allow(), ErrHostSuspended)
}

func TestHostBreaker_SuccessResetsCount(t *testing.T) {
	b := newHostBreaker(3, 30*time.Second)

	boom := errors.New("boom")
	b.record("example.com", boom)
	b.record("example.com", boom)
	b.record("example.com", nil)
	b.record("example.com", boom)
	b.record("example.com", boom)

	assert.NoError(t, b.allow())
}

func TestHostBreaker_ProbeAfterCooldown(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	b := newHostBreaker(1, 30*time.Second)
	b.now = func() time.Time { return now }

	b.record("example.com", errors.New("boom"))
	assert.ErrorIs(t, b.allow(), ErrHostSuspended)

	// Cooldown elapses: one probe is admitted.
	now = now.Add(31 * time.Second)
	require.NoError(t, b.allow())

	// A failed probe reopens immediately.
	b.record("example.com", errors.New("still down"))
	assert.ErrorIs(t, b.allow(), ErrHostSuspended)

	// A successful probe closes the breaker.
	now = now.Add(31 * time.Second)
	require.NoError(t, b.allow())
	b.record("example.com", nil)
	assert.NoError(t, b.allow())
}

func TestHostBreakers_KeyedByHost(t *testing.T) {
	hb := newHostBreakers(5, 30*time.Second)

	a, hostA := hb.forURL("https://api.worldbank.org/v2/country")
	b, hostB := hb.forURL("https://open.er-api.com/v6/latest/USD")
	a2, _ := hb.forURL("https://api.worldbank.org/v2/indicator")

	assert.Equal(t, "api.worldbank.org", hostA)
	assert.Equal(t, "open.er-api.com", hostB)
	assert.NotSame(t, a, b)
	assert.Same(t, a, a2)
}

func TestDownload_SuspendedHostFailsFast(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher()
	b, host := f.breakers.forURL(srv.URL + "/data")
	require.NotNil(t, b)
	for i := 0; i < 5; i++ {
		b.record(host, errors.New("boom"))
	}

	_, err := f.Download(context.Background(), srv.URL+"/data")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHostSuspended)
	assert.Zero(t, hits)
}
