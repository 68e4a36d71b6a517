package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/aestimo/internal/common"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	svc, err := NewService(common.CacheConfig{
		Path:             t.TempDir(),
		PriceHours:       6,
		FundamentalHours: 6,
		NewsHours:        2,
	}, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

type samplePayload struct {
	Code  string  `json:"code"`
	Value float64 `json:"value"`
}

func TestService_PutAndGet(t *testing.T) {
	svc := newTestService(t)

	in := samplePayload{Code: "BHP", Value: 42.5}
	require.NoError(t, svc.Put("prices", "asx:BHP:365", in))

	var out samplePayload
	assert.True(t, svc.Get("prices", "asx:BHP:365", &out))
	assert.Equal(t, in, out)
}

func TestService_GetMissing(t *testing.T) {
	svc := newTestService(t)

	var out samplePayload
	assert.False(t, svc.Get("prices", "asx:NOPE:365", &out))
}

func TestService_StaleEntryMisses(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Put("news", "asx:BHP:20", samplePayload{Code: "BHP"}))

	// News TTL is 2 hours. Advance the clock past it.
	svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	var out samplePayload
	assert.False(t, svc.Get("news", "asx:BHP:20", &out))

	// Prices TTL is 6 hours, so the same age would still be fresh.
	svc.now = time.Now
	require.NoError(t, svc.Put("prices", "asx:BHP:365", samplePayload{Code: "BHP"}))
	svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }
	assert.True(t, svc.Get("prices", "asx:BHP:365", &out))
}

func TestService_PurgeStale(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Put("news", "stale", samplePayload{Code: "OLD"}))
	require.NoError(t, svc.Put("prices", "fresh", samplePayload{Code: "NEW"}))

	// 3 hours later news (2h TTL) is stale, prices (6h TTL) is not.
	svc.now = func() time.Time { return time.Now().Add(3 * time.Hour) }

	removed, err := svc.PurgeStale()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	var out samplePayload
	assert.True(t, svc.Get("prices", "fresh", &out))
}

func TestService_OverwriteRefreshes(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Put("fundamentals", "asx:BHP", samplePayload{Value: 1}))
	require.NoError(t, svc.Put("fundamentals", "asx:BHP", samplePayload{Value: 2}))

	var out samplePayload
	require.True(t, svc.Get("fundamentals", "asx:BHP", &out))
	assert.Equal(t, 2.0, out.Value)
}
