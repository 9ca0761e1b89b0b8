// Package verify implements the reCAPTCHA siteverify check that gates
// mail dispatch.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/citypay/mail-handler/internal/request"
)

// DefaultEndpoint is the production reCAPTCHA siteverify endpoint.
const DefaultEndpoint = "https://www.google.com/recaptcha/api/siteverify"

// defaultTimeout bounds the siteverify round trip.
const defaultTimeout = 10 * time.Second

// ErrFailed is returned when the verification service rejects the
// challenge response. Transport and decoding problems return other errors;
// callers abort the batch on any non-nil result either way.
var ErrFailed = errors.New("verification failed")

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	// Endpoint overrides DefaultEndpoint, used for testing.
	Endpoint string

	// Timeout bounds each verification call. Zero means the default.
	Timeout time.Duration
}

// Client checks challenge responses against the siteverify API.
type Client struct {
	endpoint string
	http     *resty.Client
}

// NewClient creates a verification Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		endpoint: endpoint,
		http:     resty.New().SetTimeout(timeout),
	}
}

// siteverifyResponse is the subset of the siteverify reply the handler
// cares about.
type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify posts the challenge response to the siteverify endpoint. It
// returns nil on success, ErrFailed when the service rejects the token,
// and a wrapped error when the call itself fails.
func (c *Client) Verify(ctx context.Context, settings *request.VerificationSettings) error {
	form := map[string]string{
		"secret":   settings.Secret,
		"response": settings.Response,
	}
	if settings.RemoteIP != "" {
		form["remoteip"] = settings.RemoteIP
	}

	var out siteverifyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		ForceContentType("application/json").
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("verification request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("verification service returned status %d", resp.StatusCode())
	}

	if !out.Success {
		slog.Debug("verification rejected",
			"error_codes", out.ErrorCodes,
		)
		return ErrFailed
	}

	return nil
}
