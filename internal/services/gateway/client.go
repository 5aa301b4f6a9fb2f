// Package gateway adapts internal transactions to the external mobile-money
// protocol: phone normalization, idempotent references, the outbound HTTP
// calls and their error translation.
package gateway

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
)

// ClientConfig configures the HTTP gateway client.
type ClientConfig struct {
	BaseURL   string
	AccountNo string
	APIKey    string
	Timeout   time.Duration
}

type httpClient struct {
	cfg  ClientConfig
	http *http.Client
}

// NewHTTPClient builds the production gateway client. The timeout bounds the
// synchronous call only; it never cancels a payment the gateway already
// started.
func NewHTTPClient(cfg ClientConfig) Client {
	if cfg.BaseURL == "" {
		panic("gateway base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 35 * time.Second
	}
	return &httpClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *httpClient) RequestPayment(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, "request-payment", req)
}

func (c *httpClient) SendPayment(ctx context.Context, req Request) (*Response, error) {
	return c.post(ctx, "send-payment", req)
}

func (c *httpClient) CheckStatus(ctx context.Context, internalReference string) (*StatusResponse, error) {
	endpoint := fmt.Sprintf("%s/mobile-money/check-request-status?internal_reference=%s&account_no=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"),
		url.QueryEscape(internalReference),
		url.QueryEscape(c.cfg.AccountNo))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, translateTransportError(err)
	}
	defer resp.Body.Close()

	if err := translateStatusCode(resp); err != nil {
		return nil, err
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: malformed status response: %v", ErrUnavailable, err)
	}
	out.Status = strings.ToLower(out.Status)
	return &out, nil
}

func (c *httpClient) post(ctx context.Context, operation string, req Request) (*Response, error) {
	if req.AccountNo == "" {
		req.AccountNo = c.cfg.AccountNo
	}
	if err := ValidateReference(req.Reference); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode gateway request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/mobile-money/%s", strings.TrimRight(c.cfg.BaseURL, "/"), operation)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, translateTransportError(err)
	}
	defer resp.Body.Close()

	if err := translateStatusCode(resp); err != nil {
		return nil, err
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: malformed gateway response: %v", ErrUnavailable, err)
	}
	return &out, nil
}

func translateTransportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func translateStatusCode(resp *http.Response) error {
	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, readErrorMessage(resp.Body))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

func readErrorMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Message == "" {
		return "bad request"
	}
	return payload.Message
}
