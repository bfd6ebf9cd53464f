package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/estuary/flow-sub001/internal/catalog"
)

// DefaultTimeout bounds a single connector validation call.
const DefaultTimeout = 30 * time.Second

// DefaultRetries is the number of times a transient connector failure is retried.
const DefaultRetries = 2

// defaultRetryBase is the first backoff of exponential retries.
const defaultRetryBase = 200 * time.Millisecond

// maxErrorBody bounds how much of a failed response is surfaced in errors.
const maxErrorBody = 4096

// HTTPClient validates materializations against a remote connector which
// serves POST {URL}/validate.
type HTTPClient struct {
	url       string
	client    *http.Client
	logger    *slog.Logger
	retries   uint64
	retryBase time.Duration
}

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Logger  *slog.Logger
	// Retries bounds retries of transient failures: unreachable connectors and
	// 429, 502, 503, and 504 responses. Zero means DefaultRetries, negative disables retries.
	Retries int
	// RetryBase is the first backoff between retries, doubling after each.
	RetryBase time.Duration
	// Client overrides the underlying HTTP client. Timeout is ignored if set.
	Client *http.Client
}

// NewHTTPClient returns a connector client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("connector URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	retries := cfg.Retries
	switch {
	case retries == 0:
		retries = DefaultRetries
	case retries < 0:
		retries = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	return &HTTPClient{
		url:       strings.TrimSuffix(cfg.URL, "/"),
		client:    client,
		logger:    cfg.Logger,
		retries:   uint64(retries),
		retryBase: cfg.RetryBase,
	}, nil
}

// validateBody is the wire form of a connector validation request.
type validateBody struct {
	EndpointType   catalog.EndpointType `json:"endpoint_type"`
	EndpointConfig json.RawMessage      `json:"endpoint_config"`
	*ValidateRequest
}

// ValidateMaterialization implements Drivers.
func (c *HTTPClient) ValidateMaterialization(ctx context.Context, endpointType catalog.EndpointType, endpointConfig json.RawMessage, req *ValidateRequest) (*ValidateResponse, error) {
	body, err := json.Marshal(validateBody{
		EndpointType:    endpointType,
		EndpointConfig:  endpointConfig,
		ValidateRequest: req,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode validate request: %w", err)
	}

	var resp *ValidateResponse
	attempt := 0
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		r, err := c.post(ctx, endpointType, req.Materialization, attempt, body)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// post makes one validation call. Transient failures are marked retryable.
func (c *HTTPClient) post(ctx context.Context, endpointType catalog.EndpointType, materialization string, attempt int, body []byte) (*ValidateResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/validate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build validate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("connector request failed: %w", err)
		if ctx.Err() != nil {
			return nil, err
		}
		c.logger.Debug("connector unreachable",
			slog.String("materialization", materialization),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		return nil, retry.RetryableError(err)
	}
	defer httpResp.Body.Close()

	c.logger.Debug("connector validate",
		slog.String("materialization", materialization),
		slog.String("endpoint_type", string(endpointType)),
		slog.Int("attempt", attempt),
		slog.Int("status", httpResp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		err := fmt.Errorf("connector returned %s: %s", httpResp.Status, strings.TrimSpace(string(msg)))
		if transientStatus(httpResp.StatusCode) {
			return nil, retry.RetryableError(err)
		}
		return nil, err
	}

	var resp ValidateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode connector response: %w", err)
	}
	for field, constraint := range resp.Constraints {
		if !constraint.Type.Valid() {
			return nil, fmt.Errorf("connector returned unknown constraint type %q for field %q", constraint.Type, field)
		}
	}
	return &resp, nil
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
