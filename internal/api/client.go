package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	d "github.com/fjod/go_cart/storefront/domain"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
)

// TokenSource returns the bearer token to attach, or "" for anonymous calls.
type TokenSource func(ctx context.Context) string

type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker circuitbreaker.Config
}

// Client talks JSON over HTTP to the storefront backend and maps every failure
// into a *domain.Error.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	breaker *circuitbreaker.Breaker[[]byte]
	logger  *slog.Logger
}

func NewClient(cfg Config, token TokenSource, logger *slog.Logger) *Client {
	if cfg.Breaker.Name == "" {
		cfg.Breaker = circuitbreaker.DefaultConfig("storefront-api")
	}
	if token == nil {
		token = func(context.Context) string { return "" }
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    newHTTPClient(cfg.Timeout),
		token:   token,
		breaker: circuitbreaker.New[[]byte](cfg.Breaker, logger, isInfrastructure),
		logger:  logger,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Only failures that say nothing about the request itself trip the breaker.
func isInfrastructure(err error) bool {
	return errors.Is(err, d.ErrInfrastructure)
}

type serverError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, in)
	})
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			return d.NetworkError(err)
		}
		return err
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return d.WrapError(d.KindInfrastructure, d.CodeServerError, "",
			fmt.Errorf("failed to decode %s %s response: %w", method, path, err))
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reqBody io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "upstream unreachable", "method", method, "path", path, "error", err)
		}
		return nil, d.NetworkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, d.NetworkError(err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, statusError(resp.StatusCode, body)
}

// statusError maps a non-2xx answer into the error taxonomy.
func statusError(status int, body []byte) error {
	var se serverError
	_ = json.Unmarshal(body, &se)
	msg := se.Message
	if msg == "" {
		msg = se.Error
	}
	cause := fmt.Errorf("upstream responded %d", status)

	var e *d.Error
	switch {
	case status == http.StatusUnauthorized:
		if msg == "" {
			msg = "Your session has expired. Please log in again."
		}
		e = d.WrapError(d.KindAuthentication, d.CodeSessionExpired, msg, cause)
	case status == http.StatusForbidden:
		if msg == "" {
			msg = "You do not have permission to do that."
		}
		e = d.WrapError(d.KindAuthorization, d.CodeAccessDenied, msg, cause)
	case status >= 500:
		e = d.WrapError(d.KindInfrastructure, d.CodeServerError, "", cause)
	default:
		if msg == "" {
			msg = http.StatusText(status)
		}
		e = d.WrapError(d.KindValidation, d.CodeMalformed, msg, cause)
	}
	e.StatusCode = status
	return e
}
