// Package client wraps the upstream AI tutoring service's HTTP contract.
// It is pure request/response: no conversation state lives here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/tutor-gateway/internal/config"
)

// APIError is a non-2xx or success=false reply from the upstream.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("upstream: %s (status %d)", e.Message, e.StatusCode)
	}
	return fmt.Sprintf("upstream: status %d", e.StatusCode)
}

// AIClient talks to the upstream AI service. Mutating calls echo the
// upstream's CSRF cookie back in the X-CSRFToken header and attach the
// configured service bearer token.
type AIClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	bearer     string
	csrfCookie string
	log        zerolog.Logger
}

// NewAIClient builds a client from config. The underlying http.Client
// carries a cookie jar (for the upstream's CSRF cookie) and a hard
// request timeout.
func NewAIClient(cfg *config.Config, log zerolog.Logger) (*AIClient, error) {
	base, err := url.Parse(cfg.UpstreamBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &AIClient{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: cfg.UpstreamTimeout,
			Jar:     jar,
		},
		bearer:     cfg.UpstreamBearerToken,
		csrfCookie: cfg.CSRFCookieName,
		log:        log.With().Str("component", "ai_client").Logger(),
	}, nil
}

// get issues a GET and decodes the JSON reply into out.
func (c *AIClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// post issues a POST with a JSON body and decodes the reply into out.
func (c *AIClient) post(ctx context.Context, path string, query url.Values, body interface{}, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

func (c *AIClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	if method != http.MethodGet {
		if token := c.csrfToken(); token != "" {
			req.Header.Set("X-CSRFToken", token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: snippet(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// csrfToken returns the upstream's CSRF cookie value from the jar, or ""
// if the upstream has not set one yet.
func (c *AIClient) csrfToken() string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == c.csrfCookie {
			return ck.Value
		}
	}
	return ""
}

// snippet truncates an error body for inclusion in an error message.
func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
