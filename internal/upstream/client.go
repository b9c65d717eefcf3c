// Package upstream implements the resilient client for the VCF management
// API. It performs the two calls the gateway proxies (session creation and
// virtual-center listing), retries transport-level failures up to a
// configured bound, and normalizes the upstream's heterogeneous response
// shapes into typed results and errors.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vcfgate/internal/apperr"
	"vcfgate/internal/observability/logging"
	"vcfgate/internal/observability/metrics"
)

// TokenHeader is the response header the VCF API uses to return the access
// token in most deployments. Older releases return it in the JSON body
// instead, so token extraction checks both.
const TokenHeader = "x-vmware-vcloud-access-token"

const (
	loginPath          = "/api/session"
	virtualCentersPath = "/v1/virtual-centers"

	bodyExcerptLimit = 300
)

// Config controls the client's endpoint, timeout, and retry behaviour.
type Config struct {
	BaseURL            string
	Timeout            time.Duration
	RetryCount         int
	InsecureSkipVerify bool
	Logger             *slog.Logger
	Metrics            *metrics.Recorder
}

// Client is a stateless VCF API caller. Each call opens a fresh connection
// scope per attempt, so instances are safe for concurrent use without
// synchronization.
type Client struct {
	baseURL            string
	timeout            time.Duration
	retryCount         int
	insecureSkipVerify bool
	logger             *slog.Logger
	metrics            *metrics.Recorder
}

// New validates the configuration and constructs a Client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("upstream base URL must include scheme and host")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryCount := cfg.RetryCount
	if retryCount < 0 {
		retryCount = 0
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &Client{
		baseURL:            base,
		timeout:            timeout,
		retryCount:         retryCount,
		insecureSkipVerify: cfg.InsecureSkipVerify,
		logger:             logger,
		metrics:            recorder,
	}, nil
}

// Authenticate exchanges the provided credentials for an upstream access
// token. When origin is non-empty the call targets that endpoint instead of
// the configured base URL.
func (c *Client) Authenticate(ctx context.Context, username, password, origin string) (string, error) {
	c.logger.Info("vcf login attempt",
		"username", username,
		"password", logging.MaskSecret(password))

	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", fmt.Errorf("encode login payload: %w", err)
	}

	resp, err := c.requestWithRetry(ctx, "authenticate", http.MethodPost, origin, loginPath, nil, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.metrics.ObserveUpstreamFailure("authenticate")
		return "", apperr.New(apperr.CodeInvalidCredentials, "invalid VCF credentials")
	}
	if resp.StatusCode >= 400 {
		c.metrics.ObserveUpstreamFailure("authenticate")
		return "", apperr.New(apperr.CodeUpstreamLoginFailed, "VCF login failed").WithDetails(map[string]any{
			"status_code": resp.StatusCode,
			"body":        bodyExcerpt(resp.Body),
		})
	}

	token := strings.TrimSpace(resp.Header.Get(TokenHeader))
	if token == "" {
		token = tokenFromBody(resp)
	}
	if token == "" {
		c.metrics.ObserveUpstreamFailure("authenticate")
		return "", apperr.New(apperr.CodeUpstreamTokenMissing, "VCF token not found in response")
	}

	c.logger.Info("vcf login successful",
		"username", username,
		"token", logging.MaskSecret(token))
	return token, nil
}

// FetchVirtualCenters lists the virtual centers visible to the provided
// upstream token. The response body may be a bare array or an object wrapping
// the list in an "elements" or "items" field; the first matching shape wins.
func (c *Client) FetchVirtualCenters(ctx context.Context, token, origin string) ([]map[string]any, error) {
	headers := map[string]string{"Authorization": "Bearer " + token}
	resp, err := c.requestWithRetry(ctx, "fetch_virtual_centers", http.MethodGet, origin, virtualCentersPath, headers, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.metrics.ObserveUpstreamFailure("fetch_virtual_centers")
		return nil, apperr.New(apperr.CodeUpstreamTokenExpired, "VCF token expired or invalid")
	}
	if resp.StatusCode >= 400 {
		c.metrics.ObserveUpstreamFailure("fetch_virtual_centers")
		return nil, apperr.New(apperr.CodeUpstreamFetchFailed, "failed to fetch virtual centers from VCF").WithDetails(map[string]any{
			"status_code": resp.StatusCode,
			"body":        bodyExcerpt(resp.Body),
		})
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.metrics.ObserveUpstreamFailure("fetch_virtual_centers")
		return nil, apperr.New(apperr.CodeUpstreamBadResponse, "unexpected response format from VCF")
	}
	records, ok := extractRecords(payload)
	if !ok {
		c.metrics.ObserveUpstreamFailure("fetch_virtual_centers")
		return nil, apperr.New(apperr.CodeUpstreamBadResponse, "unexpected response format from VCF")
	}
	return records, nil
}

// requestWithRetry performs the HTTP call, retrying transport-level failures
// immediately until the attempt budget (retryCount + 1) is exhausted. HTTP
// error statuses are returned to the caller untouched; they are never
// retried. Each attempt runs in a freshly-scoped connection context with its
// own per-attempt timeout.
func (c *Client) requestWithRetry(ctx context.Context, operation, method, origin, path string, headers map[string]string, body []byte) (*http.Response, error) {
	base, err := c.resolveBase(origin)
	if err != nil {
		return nil, err
	}
	endpoint := base + path

	attempts := c.retryCount + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		c.metrics.ObserveUpstreamAttempt(operation)
		resp, err := c.doAttempt(ctx, method, endpoint, headers, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger.Warn("vcf request failed",
			"operation", operation,
			"attempt", fmt.Sprintf("%d/%d", attempt, attempts),
			"error", err)
		if ctx.Err() != nil {
			break
		}
		if attempt < attempts {
			c.metrics.ObserveUpstreamRetry(operation)
		}
	}

	c.metrics.ObserveUpstreamFailure(operation)
	details := map[string]any{}
	if lastErr != nil {
		details["error"] = lastErr.Error()
	}
	return nil, apperr.New(apperr.CodeUpstreamUnavailable, "failed to communicate with the VCF API").WithDetails(details)
}

func (c *Client) doAttempt(ctx context.Context, method, endpoint string, headers map[string]string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	client := c.newHTTPClient()
	return client.Do(req)
}

func (c *Client) newHTTPClient() *http.Client {
	transport := &http.Transport{}
	if c.insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Timeout:   c.timeout,
		Transport: transport,
	}
}

func (c *Client) resolveBase(origin string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(origin), "/")
	if trimmed == "" {
		return c.baseURL, nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", apperr.New(apperr.CodeInvalidRequest, "invalid upstream origin")
	}
	return trimmed, nil
}

func tokenFromBody(resp *http.Response) string {
	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return ""
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	token, _ := body["token"].(string)
	return strings.TrimSpace(token)
}

func extractRecords(payload any) ([]map[string]any, bool) {
	switch value := payload.(type) {
	case []any:
		return toRecords(value)
	case map[string]any:
		if elements, ok := value["elements"].([]any); ok {
			return toRecords(elements)
		}
		if items, ok := value["items"].([]any); ok {
			return toRecords(items)
		}
	}
	return nil, false
}

func toRecords(entries []any) ([]map[string]any, bool) {
	records := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		record, ok := entry.(map[string]any)
		if !ok {
			return nil, false
		}
		records = append(records, record)
	}
	return records, true
}

func bodyExcerpt(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, bodyExcerptLimit+1))
	if err != nil {
		return ""
	}
	excerpt := string(raw)
	if len(excerpt) > bodyExcerptLimit {
		excerpt = excerpt[:bodyExcerptLimit]
	}
	return excerpt
}
