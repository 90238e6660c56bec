package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits
const (
	defaultMaxIdleConns        = 16
	defaultMaxIdleConnsPerHost = 2
	defaultMaxConnsPerHost     = 4
	defaultIdleConnTimeout     = 60 * time.Second // conservative: matches common ALB defaults
)

// defaultHTTPTimeout applies when the item has no timeout of its own.
const defaultHTTPTimeout = 10 * time.Second

// HTTPClient fetches values for the http producer.
//
// HTTPClient uses per-request timeouts via context rather than a global
// timeout, so an item's own timeout is honored. Response bodies are limited
// to 1MB.
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient creates an [HTTPClient] with a pooled transport, so that an
// item polling the same host every tick reuses its connection.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
}

// Produce fetches params[0] with GET. With a second parameter the body is
// parsed as JSON and the field at that dot-separated path is returned
// (e.g. "current.temp"); otherwise the first line of the body is returned.
//
// Non-2xx responses, unreachable hosts and missing fields are errors.
func (c *HTTPClient) Produce(ctx context.Context, params []string) (string, error) {
	if len(params) == 0 || params[0] == "" {
		return "", fmt.Errorf("http: no url: %w", ErrNoValue)
	}

	body, err := c.fetch(ctx, params[0])
	if err != nil {
		return "", err
	}

	if len(params) < 2 || params[1] == "" {
		line, _, _ := strings.Cut(string(body), "\n")
		return strings.TrimSpace(line), nil
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("http %s: invalid JSON: %w", params[0], err)
	}
	value, ok := extractJSONPath(data, strings.Split(params[1], "."))
	if !ok {
		return "", fmt.Errorf("http %s: field %q: %w", params[0], params[1], ErrNoValue)
	}
	return value, nil
}

// fetch performs a GET and returns the body, limited to 1MB.
func (c *HTTPClient) fetch(ctx context.Context, url string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHTTPTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("http %s: failed to read response body: %w", url, err)
	}
	return body, nil
}

// Close closes idle connections. The client remains usable.
func (c *HTTPClient) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

// extractJSONPath walks a JSON structure using dot notation parts and
// renders the leaf as text.
func extractJSONPath(data any, parts []string) (string, bool) {
	current := data

	for _, part := range parts {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return "", false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return "", false
			}
			current = node[i]
		default:
			return "", false
		}
	}

	switch v := current.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
