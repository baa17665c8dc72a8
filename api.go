package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// apiClient handles HTTP communication with the platform's tile, GraphQL and
// web endpoints. One client is constructed per run and carries the session.
type apiClient struct {
	baseURL          string
	baseURLParsed    *url.URL
	graphqlURL       string
	graphqlURLParsed *url.URL
	cookie           string
	userAgent        string
	jar              http.CookieJar
	http             *http.Client
	delay            time.Duration
}

// newAPIClient creates a new API client with the given configuration.
func newAPIClient(cfg appConfig) (*apiClient, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base_url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	gu, err := url.Parse(cfg.GraphQLURL)
	if err != nil {
		return nil, fmt.Errorf("invalid graphql_url: %w", err)
	}

	jar, _ := cookiejar.New(nil)
	if jar != nil && strings.TrimSpace(cfg.Cookie) != "" {
		cookies := parseCookieHeader(cfg.Cookie)
		jar.SetCookies(u, cookies)
		// The GraphQL endpoint lives on a sibling host and expects the same
		// session cookie.
		jar.SetCookies(gu, cookies)
	}

	delay := time.Duration(cfg.RequestDelayMS) * time.Millisecond
	if delay <= 0 {
		delay = time.Duration(defaultRequestDelayMS) * time.Millisecond
	}

	c := &apiClient{
		baseURL:          u.String(),
		baseURLParsed:    u,
		graphqlURL:       cfg.GraphQLURL,
		graphqlURLParsed: gu,
		cookie:           strings.TrimSpace(cfg.Cookie),
		userAgent:        cfg.UserAgent,
		jar:              jar,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		delay: delay,
	}
	if c.userAgent == "" {
		c.userAgent = defaultUA
	}
	return c, nil
}

// apiError represents an HTTP error response from the platform.
type apiError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api %d", e.StatusCode)
}

func isAuthError(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && (ae.StatusCode == 401 || ae.StatusCode == 403)
}

// pace blocks for the configured inter-request delay. Every remote request
// goes through this so the run stays within the platform's acceptable-use
// expectations.
func (c *apiClient) pace(ctx context.Context) error {
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// do performs a paced HTTP request and returns the raw response body.
// Non-2xx responses are returned as *apiError.
func (c *apiClient) do(ctx context.Context, method, reqURL string, body io.Reader, contentType string) ([]byte, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Referer", c.baseURL+"/")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.jar == nil && c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	const maxResponseSize = 10 * 1024 * 1024 // 10MB limit
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.cookie = strings.TrimSpace(c.exportCookieHeader())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		var m map[string]any
		if json.Unmarshal(b, &m) == nil {
			if s, ok := m["message"].(string); ok && s != "" {
				msg = s
			} else if s, ok := m["error"].(string); ok && s != "" {
				msg = s
			}
		}
		return nil, &apiError{StatusCode: resp.StatusCode, Message: msg, Body: b}
	}
	return b, nil
}

// get performs a paced GET request and returns the raw body.
func (c *apiClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, reqURL, nil, "")
}

// postJSON performs a paced POST with a JSON body and decodes the JSON
// response into out.
func (c *apiClient) postJSON(ctx context.Context, reqURL string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	b, err := c.do(ctx, http.MethodPost, reqURL, bytes.NewReader(buf), "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if len(b) == 0 {
		return errors.New("empty response body")
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// exportCookieHeader returns the current cookies as a header string.
func (c *apiClient) exportCookieHeader() string {
	if c.jar == nil || c.baseURLParsed == nil {
		return strings.TrimSpace(c.cookie)
	}
	cookies := c.jar.Cookies(c.baseURLParsed)
	if len(cookies) == 0 {
		return strings.TrimSpace(c.cookie)
	}
	pairs := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		if ck == nil || strings.TrimSpace(ck.Name) == "" {
			continue
		}
		pairs = append(pairs, ck.Name+"="+ck.Value)
	}
	return strings.Join(pairs, "; ")
}

// parseCookieHeader parses a Cookie header string into individual cookies.
func parseCookieHeader(header string) []*http.Cookie {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ";")
	out := make([]*http.Cookie, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		name := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		if name == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: val, Path: "/"})
	}
	return out
}
