package httpx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBucketSetSweepsRefilledBuckets(t *testing.T) {
	// 2 per minute with burst 2 refills in a minute.
	s := newBucketSet(RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2})
	t0 := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	ok, _ := s.take("196.201.214.10", t0)
	require.True(t, ok)
	ok, _ = s.take("41.76.108.2", t0.Add(30*time.Second))
	require.True(t, ok)
	require.Len(t, s.buckets, 2)

	// Next sweep runs a minute after the first. The first bucket is exactly
	// one refill old and stays; the second is younger.
	ok, _ = s.take("41.76.108.2", t0.Add(time.Minute))
	require.True(t, ok)
	require.Len(t, s.buckets, 2)

	ok, _ = s.take("102.65.1.9", t0.Add(2*time.Minute))
	require.True(t, ok)
	require.Len(t, s.buckets, 2, "first bucket swept, second was used at +1m")
	require.NotContains(t, s.buckets, "196.201.214.10")
}

func TestBucketSetRetryAfter(t *testing.T) {
	s := newBucketSet(RateLimitConfig{RequestsPerWindow: 6, Window: time.Minute, Burst: 1})
	t0 := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	ok, _ := s.take("k", t0)
	require.True(t, ok)

	ok, wait := s.take("k", t0.Add(4*time.Second))
	require.False(t, ok)
	require.InDelta(t, float64(6*time.Second), float64(wait), float64(time.Millisecond))

	ok, _ = s.take("k", t0.Add(11*time.Second))
	require.True(t, ok, "refused request did not delay the refill")
}
