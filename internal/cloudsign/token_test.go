package cloudsign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tokenEndpoint(t *testing.T, refreshes *int32, tokenFor func(n int32) string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client-1", r.PostForm.Get("client_id"))
		n := atomic.AddInt32(refreshes, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": tokenFor(n),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}
}

func TestAcquireCoalescesConcurrentRefreshes(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		// slow the exchange down so all goroutines pile up on a stale token
		time.Sleep(30 * time.Millisecond)
		tokenEndpoint(t, &refreshes, func(n int32) string { return "tok" })(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tm := NewTokenManager(srv.Client(), srv.URL, "client-1", time.Minute)

	const n = 20
	var wg sync.WaitGroup
	tokens := make([]Token, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := tm.Acquire(context.Background())
			require.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
	for _, tok := range tokens {
		require.Equal(t, "tok", tok.Value)
		require.Equal(t, tokens[0].IssuedAt, tok.IssuedAt)
	}
}

func TestAcquireRefreshesStaleToken(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenEndpoint(t, &refreshes, func(n int32) string {
		return "tok-" + string(rune('0'+n))
	}))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tm := NewTokenManager(srv.Client(), srv.URL, "client-1", time.Minute)

	tok1, err := tm.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok1.Value)

	// still fresh: no second exchange
	tok2, err := tm.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, tok1.Value, tok2.Value)
	require.EqualValues(t, 1, atomic.LoadInt32(&refreshes))

	// move the clock within the stale margin of expiry
	tm.now = func() time.Time { return tok1.ExpiresAt.Add(-30 * time.Second) }
	tok3, err := tm.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-2", tok3.Value)
	require.EqualValues(t, 2, atomic.LoadInt32(&refreshes))
}

func TestForceRefreshSkipsWhenTokenAlreadyReplaced(t *testing.T) {
	var refreshes int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenEndpoint(t, &refreshes, func(n int32) string { return "fresh" }))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tm := NewTokenManager(srv.Client(), srv.URL, "client-1", time.Minute)
	tm.tok = &Token{Value: "fresh", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}

	// the rejected token is no longer current, so no exchange happens
	tok, err := tm.ForceRefresh(context.Background(), "rejected-old")
	require.NoError(t, err)
	require.Equal(t, "fresh", tok.Value)
	require.EqualValues(t, 0, atomic.LoadInt32(&refreshes))

	// rejecting the current token does trigger an exchange
	tok, err = tm.ForceRefresh(context.Background(), "fresh")
	require.NoError(t, err)
	require.Equal(t, "fresh", tok.Value)
	require.EqualValues(t, 1, atomic.LoadInt32(&refreshes))
}

func TestRefreshRejectedCredential(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown client", http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tm := NewTokenManager(srv.Client(), srv.URL, "client-1", time.Minute)
	_, err := tm.Acquire(context.Background())
	var aerr *AuthError
	require.ErrorAs(t, err, &aerr)
	require.Contains(t, aerr.Reason, "unknown client")
}

func TestRefreshRemoteError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tm := NewTokenManager(srv.Client(), srv.URL, "client-1", time.Minute)
	_, err := tm.Acquire(context.Background())
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, http.StatusInternalServerError, rerr.Status)
}

func TestRefreshNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tm := NewTokenManager(nil, url, "client-1", time.Minute)
	_, err := tm.Acquire(context.Background())
	var nerr *NetworkError
	require.ErrorAs(t, err, &nerr)
}
