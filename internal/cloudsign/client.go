package cloudsign

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/TGSE-nepuro/cloudsign-APImok/internal/config"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/logger"
	"github.com/TGSE-nepuro/cloudsign-APImok/pkg/metrics"
)

// Client executes authenticated requests against the CloudSign API. It
// attaches the bearer token from the shared TokenManager and applies exactly
// one transparent retry when a request fails with 401: the rejected token is
// force-refreshed and the identical request re-sent once. All other failures
// are surfaced untouched; retry policy for those belongs to the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     *TokenManager
}

// NewClient builds a Client (and its TokenManager) from configuration.
func NewClient(cfg *config.CloudSignConfig) *Client {
	hc := &http.Client{Timeout: cfg.RequestTimeout}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     NewTokenManager(hc, cfg.BaseURL, cfg.ClientID, cfg.StaleMargin),
	}
}

// NewClientWithTokenManager wires an externally constructed TokenManager
// (shared with other clients, or a test double).
func NewClientWithTokenManager(httpClient *http.Client, baseURL string, tm *TokenManager) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), tokens: tm}
}

// do sends one authenticated request. body must be replayable, hence []byte.
// The returned response has a live body the caller must close; any non-2xx
// status has already been converted into a typed error and the body drained.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (*http.Response, error) {
	tok, err := c.tokens.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, method, path, body, contentType, tok.Value)
	if err != nil {
		metrics.RemoteRequests.WithLabelValues(method, "network_error").Inc()
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		logger.Debugf("request %s %s rejected with 401, forcing token refresh", method, path)
		tok, err = c.tokens.ForceRefresh(ctx, tok.Value)
		if err != nil {
			metrics.RemoteRequests.WithLabelValues(method, "auth_error").Inc()
			return nil, err
		}
		resp, err = c.send(ctx, method, path, body, contentType, tok.Value)
		if err != nil {
			metrics.RemoteRequests.WithLabelValues(method, "network_error").Inc()
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			metrics.RemoteRequests.WithLabelValues(method, "auth_error").Inc()
			return nil, &AuthError{Reason: fmt.Sprintf("request %s %s unauthorized after token refresh", method, path)}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		metrics.RemoteRequests.WithLabelValues(method, "remote_error").Inc()
		return nil, &RemoteError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	metrics.RemoteRequests.WithLabelValues(method, "ok").Inc()
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, body []byte, contentType, token string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	return resp, nil
}

// doJSON marshals in (when non-nil), executes the request and decodes the
// response body into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = b
		contentType = "application/json"
	}

	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func decodeJSON(r io.Reader, out interface{}) error {
	return json.NewDecoder(r).Decode(out)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
