package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/config"
)

// ErrUnavailable indicates the analytics service could not be reached or
// timed out.
var ErrUnavailable = errors.New("mlclient: analytics service unavailable")

// Response carries the upstream status code and raw JSON body.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Client forwards analytics requests to the external prediction service.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.Logger
}

// New constructs a client for the configured analytics service.
func New(cfg config.MLSettings, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("mlclient: parse base url: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		logger:  log,
	}, nil
}

// Get relays a GET to the analytics service, carrying the query string through.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// Post relays a JSON POST body to the analytics service.
func (c *Client) Post(ctx context.Context, path string, body json.RawMessage) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, nil, body)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body json.RawMessage) (*Response, error) {
	target := *c.baseURL
	target.Path = strings.TrimSuffix(target.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("mlclient: build request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("analytics request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("mlclient: read response: %w", err)
	}

	if !json.Valid(payload) {
		c.logger.Warn("analytics returned non-json payload",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, ErrUnavailable
	}

	return &Response{StatusCode: resp.StatusCode, Body: payload}, nil
}
