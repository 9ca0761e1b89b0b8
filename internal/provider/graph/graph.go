package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/citypay/mail-handler/internal/mail"
)

// GraphProviderConfig holds the configuration for creating a GraphProvider.
type GraphProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Sender       string
}

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// requestTimeout bounds each Graph API round trip.
const requestTimeout = 30 * time.Second

// GraphProvider sends emails via the Microsoft Graph API using OAuth2
// client credentials authentication.
type GraphProvider struct {
	sender   string
	graphURL string
	http     *resty.Client
	token    *tokenCache
}

// New creates a new GraphProvider with the given configuration.
func New(cfg GraphProviderConfig) *GraphProvider {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		cfg.TenantID,
	)

	client := resty.New().SetTimeout(requestTimeout)

	return &GraphProvider{
		sender:   cfg.Sender,
		graphURL: fmt.Sprintf("https://graph.microsoft.com/v1.0/users/%s/sendMail", cfg.Sender),
		http:     client,
		token:    newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// newWithOverrides creates a GraphProvider with custom URLs and client,
// used for testing.
func newWithOverrides(cfg GraphProviderConfig, graphURL, tokenURL string, client *resty.Client) *GraphProvider {
	return &GraphProvider{
		sender:   cfg.Sender,
		graphURL: graphURL,
		http:     client,
		token:    newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Send delivers an email message via the Microsoft Graph API. sendMail
// acknowledges with 202 and no identifier, so a generated UUID is returned
// as the opaque delivery id. Retries cover transient failures, Retry-After
// on HTTP 429, and a one-shot token refresh on HTTP 401.
func (g *GraphProvider) Send(ctx context.Context, msg *mail.Message) (string, error) {
	reqBody := buildSendMailRequest(msg)

	var lastErr error
	tokenRefreshed := false

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying Graph API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
		}

		err := g.doSendRequest(ctx, reqBody)
		if err == nil {
			return uuid.NewString(), nil
		}

		lastErr = err

		graphErr, ok := err.(*sendError)
		if !ok {
			return "", err
		}

		switch {
		case graphErr.permanent:
			return "", graphErr
		case graphErr.statusCode == http.StatusUnauthorized && !tokenRefreshed:
			// Refresh token once and retry immediately
			slog.Info("refreshing Graph API token after 401")
			if _, refreshErr := g.token.ForceRefresh(); refreshErr != nil {
				return "", fmt.Errorf("token refresh failed: %w", refreshErr)
			}
			tokenRefreshed = true
			continue
		case graphErr.statusCode == http.StatusTooManyRequests:
			delay := retryAfterDelay(graphErr.retryAfter, attempt)
			slog.Info("rate limited by Graph API",
				"retry_after", delay,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return "", fmt.Errorf("context cancelled during retry wait: %w", err)
			}
			continue
		case graphErr.transient:
			delay := backoffDelay(attempt)
			slog.Info("transient Graph API error, retrying",
				"status", graphErr.statusCode,
				"delay", delay,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return "", fmt.Errorf("context cancelled during retry wait: %w", err)
			}
			continue
		default:
			return "", graphErr
		}
	}

	return "", fmt.Errorf("Graph API request failed after %d retries: %w", maxRetries, lastErr)
}

// Name returns the provider name.
func (g *GraphProvider) Name() string {
	return "msgraph"
}

// doSendRequest performs a single request to the Graph API sendMail endpoint.
func (g *GraphProvider) doSendRequest(ctx context.Context, reqBody *sendMailRequest) error {
	token, err := g.token.Token()
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(g.graphURL)
	if err != nil {
		return &sendError{
			message:   fmt.Sprintf("HTTP request failed: %v", err),
			transient: true,
		}
	}

	// HTTP 202 Accepted is success for sendMail
	if resp.StatusCode() == http.StatusAccepted || resp.StatusCode() == http.StatusOK {
		return nil
	}

	body := resp.Body()
	retryAfter := resp.Header().Get("Retry-After")

	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(body, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		return classifyError(resp.StatusCode(), graphErrResp.Error.Message, retryAfter)
	}

	return classifyError(resp.StatusCode(), string(body), retryAfter)
}

// sendError represents an error from the Graph API send operation with
// classification for retry logic.
type sendError struct {
	message    string
	statusCode int
	permanent  bool
	transient  bool
	retryAfter string
}

func (e *sendError) Error() string {
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.statusCode, e.message)
}

// classifyError categorizes an HTTP error response for retry decisions.
func classifyError(statusCode int, message, retryAfter string) *sendError {
	err := &sendError{
		message:    message,
		statusCode: statusCode,
		retryAfter: retryAfter,
	}

	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusForbidden:
		err.permanent = true
	case statusCode == http.StatusUnauthorized:
		err.transient = true
	case statusCode == http.StatusTooManyRequests:
		err.transient = true
	case statusCode >= 500:
		err.transient = true
	default:
		err.permanent = true
	}

	return err
}

// retryAfterDelay parses the Retry-After header value and returns the appropriate delay.
// Falls back to exponential backoff if the header is missing or unparseable.
func retryAfterDelay(retryAfter string, attempt int) time.Duration {
	if retryAfter == "" {
		return backoffDelay(attempt)
	}

	seconds, err := strconv.Atoi(retryAfter)
	if err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return backoffDelay(attempt)
}

// backoffDelay returns the exponential backoff delay for the given attempt number.
// Delays are: 1s, 2s, 4s
func backoffDelay(attempt int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
