package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TCP port 1 is unassigned, so dials fail fast without a running MongoDB.
const unreachableURI = "mongodb://127.0.0.1:1/?connect=direct"

func TestConnectMongoWithRetryGivesUp(t *testing.T) {
	start := time.Now()
	_, err := ConnectMongoWithRetry(context.Background(), unreachableURI, 200*time.Millisecond, 2, 50*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 2 attempts")
	// one backoff window between the two attempts
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestConnectMongoWithRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err := ConnectMongoWithRetry(ctx, unreachableURI, 200*time.Millisecond, 5, time.Hour)
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second, "canceled context must not sit out the backoff")
}
