package graph

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// tokenExpiryBuffer is the time before actual expiry when we consider a token expired.
// This prevents using a token that is about to expire during a request.
const tokenExpiryBuffer = 5 * time.Minute

// tokenCache manages OAuth2 access tokens with thread-safe caching and
// automatic refresh before expiration.
type tokenCache struct {
	mu           sync.Mutex
	accessToken  string
	expiresAt    time.Time
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	http         *resty.Client
}

// newTokenCache creates a new token cache for the given OAuth2 client credentials.
func newTokenCache(tokenURL, clientID, clientSecret string, client *resty.Client) *tokenCache {
	return &tokenCache{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        "https://graph.microsoft.com/.default",
		http:         client,
	}
}

// Token returns a valid access token, refreshing it if necessary.
// This method is safe for concurrent use.
func (tc *tokenCache) Token() (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.accessToken != "" && time.Now().Before(tc.expiresAt) {
		return tc.accessToken, nil
	}

	return tc.refresh()
}

// ForceRefresh discards the current token and acquires a new one.
// This is used when a 401 response indicates the token is invalid.
func (tc *tokenCache) ForceRefresh() (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.accessToken = ""
	tc.expiresAt = time.Time{}

	return tc.refresh()
}

// refresh acquires a new token from the OAuth2 token endpoint.
// The caller must hold tc.mu.
func (tc *tokenCache) refresh() (string, error) {
	var tokenResp tokenResponse
	resp, err := tc.http.R().
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     tc.clientID,
			"client_secret": tc.clientSecret,
			"scope":         tc.scope,
		}).
		SetResult(&tokenResp).
		ForceContentType("application/json").
		Post(tc.tokenURL)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode(), resp.String())
	}

	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	tc.accessToken = tokenResp.AccessToken
	tc.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - tokenExpiryBuffer)

	return tc.accessToken, nil
}
