package cloudsign

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/logger"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/metrics"
)

// Token is the bearer credential attached to every authenticated request.
// ExpiresAt is derived from the issuer-declared lifetime at refresh time.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenManager owns the access-token lifecycle for the CloudSign API. It is
// shared process-wide: construct one instance at the composition root and
// pass it to the Client.
//
// The mutex is held across the refresh network call so that concurrent
// callers observing a stale token coalesce into a single refresh: waiters
// block on the lock and then see the fresh token. This is the only lock in
// the package held across I/O.
type TokenManager struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	staleMargin time.Duration

	mu  sync.Mutex
	tok *Token

	now func() time.Time
}

// NewTokenManager creates a manager exchanging clientID at baseURL's /token
// endpoint. staleMargin is subtracted from the declared lifetime so a token
// is treated as stale shortly before literal expiry (clock-skew guard).
func NewTokenManager(httpClient *http.Client, baseURL, clientID string, staleMargin time.Duration) *TokenManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenManager{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		clientID:    clientID,
		staleMargin: staleMargin,
		now:         time.Now,
	}
}

// Acquire returns the current token, refreshing it first when absent or
// stale. Concurrent callers share the result of a single in-flight refresh.
func (m *TokenManager) Acquire(ctx context.Context) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validLocked() {
		return *m.tok, nil
	}
	if err := m.refreshLocked(ctx); err != nil {
		return Token{}, err
	}
	return *m.tok, nil
}

// ForceRefresh discards the rejected token and fetches a new one, bypassing
// the staleness check. If another caller already replaced the rejected token,
// the replacement is returned without a second network call.
func (m *TokenManager) ForceRefresh(ctx context.Context, rejected string) (Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok != nil && m.tok.Value != rejected {
		return *m.tok, nil
	}
	m.tok = nil
	if err := m.refreshLocked(ctx); err != nil {
		return Token{}, err
	}
	return *m.tok, nil
}

func (m *TokenManager) validLocked() bool {
	return m.tok != nil && m.now().Add(m.staleMargin).Before(m.tok.ExpiresAt)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// refreshLocked performs the credential-for-token exchange. Callers must hold m.mu.
func (m *TokenManager) refreshLocked(ctx context.Context) error {
	form := url.Values{}
	form.Set("client_id", m.clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return &NetworkError{Op: "token refresh", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("network_error").Inc()
		return &NetworkError{Op: "token refresh", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		body := strings.TrimSpace(string(b))
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
			logger.Warnf("token endpoint rejected credential (status=%d)", resp.StatusCode)
			return &AuthError{Reason: body}
		default:
			metrics.TokenRefreshes.WithLabelValues("remote_error").Inc()
			return &RemoteError{Status: resp.StatusCode, Body: body}
		}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		metrics.TokenRefreshes.WithLabelValues("decode_error").Inc()
		return &NetworkError{Op: "token refresh", Err: err}
	}
	if tr.AccessToken == "" {
		metrics.TokenRefreshes.WithLabelValues("rejected").Inc()
		return &AuthError{Reason: "token endpoint returned no access_token"}
	}

	now := m.now()
	m.tok = &Token{
		Value:     tr.AccessToken,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	metrics.TokenRefreshes.WithLabelValues("ok").Inc()
	logger.Debugf("obtained access token, expires in %ds", tr.ExpiresIn)
	return nil
}
