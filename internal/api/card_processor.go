package api

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

	d "github.com/fjod/go_cart/storefront/domain"
)

// Result codes reported by the card processor.
const (
	ProcessorCodeCardDeclined           = "card_declined"
	ProcessorCodeInsufficientFunds      = "insufficient_funds"
	ProcessorCodeExpiredCard            = "expired_card"
	ProcessorCodeIncorrectCVC           = "incorrect_cvc"
	ProcessorCodeAuthenticationRequired = "authentication_required"
	ProcessorCodeProcessingError        = "processing_error"
	ProcessorCodeAPIConnection          = "api_connection_error"
	ProcessorCodeRateLimit              = "rate_limit"
)

const processorStatusSucceeded = "succeeded"

type CardProcessorConfig struct {
	URL            string
	PublishableKey string
	Timeout        time.Duration
}

// ProcessorResult is a confirmed payment intent.
type ProcessorResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ProcessorError is a failed confirmation, as reported by the processor or by the
// transport in front of it.
type ProcessorError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ProcessorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("card processor: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("card processor: %s: %s", e.Code, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// CardProcessorClient confirms payment intents with a tokenized card processor.
type CardProcessorClient struct {
	url    string
	key    string
	http   *http.Client
	logger *slog.Logger
}

// NewCardProcessorClient fails with ErrProcessorDisabled when the processor is not
// configured; callers then run without card payments.
func NewCardProcessorClient(cfg CardProcessorConfig, logger *slog.Logger) (*CardProcessorClient, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.PublishableKey) == "" {
		return nil, ErrProcessorDisabled
	}
	return &CardProcessorClient{
		url:    strings.TrimRight(cfg.URL, "/"),
		key:    cfg.PublishableKey,
		http:   newHTTPClient(cfg.Timeout),
		logger: logger,
	}, nil
}

type confirmRequest struct {
	ClientSecret  string        `json:"client_secret"`
	PaymentMethod paymentMethod `json:"payment_method"`
}

type paymentMethod struct {
	Card           cardFields     `json:"card"`
	BillingDetails billingDetails `json:"billing_details"`
}

type cardFields struct {
	Number   string `json:"number"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	CVC      string `json:"cvc"`
}

type billingDetails struct {
	Name string `json:"name,omitempty"`
}

type processorErrorBody struct {
	Error *ProcessorError `json:"error"`
}

// Confirm exchanges the card fields and the intent secret for a confirmed intent.
// Any non-succeeded outcome comes back as *ProcessorError.
func (c *CardProcessorClient) Confirm(ctx context.Context, clientSecret string, card d.CardDetails) (*ProcessorResult, error) {
	raw, err := json.Marshal(confirmRequest{
		ClientSecret: clientSecret,
		PaymentMethod: paymentMethod{
			Card: cardFields{
				Number:   card.Number,
				ExpMonth: card.ExpMonth,
				ExpYear:  card.ExpYear,
				CVC:      card.CVC,
			},
			BillingDetails: billingDetails{Name: card.HolderName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal confirm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/payment_intents/confirm", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build confirm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "card processor unreachable", "error", err)
		}
		return nil, &ProcessorError{Code: ProcessorCodeAPIConnection, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProcessorError{Code: ProcessorCodeAPIConnection, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var eb processorErrorBody
		if err := json.Unmarshal(body, &eb); err != nil || eb.Error == nil || eb.Error.Code == "" {
			code := ProcessorCodeProcessingError
			if resp.StatusCode == http.StatusTooManyRequests {
				code = ProcessorCodeRateLimit
			}
			return nil, &ProcessorError{Code: code, Err: fmt.Errorf("processor responded %d", resp.StatusCode)}
		}
		return nil, eb.Error
	}

	var result ProcessorResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &ProcessorError{Code: ProcessorCodeProcessingError, Err: err}
	}
	if result.Status != processorStatusSucceeded {
		// requires_action and friends need a customer step this flow cannot perform
		return nil, &ProcessorError{
			Code:    ProcessorCodeAuthenticationRequired,
			Message: fmt.Sprintf("payment intent %s is %s", result.ID, result.Status),
		}
	}
	return &result, nil
}
