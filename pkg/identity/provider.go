package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

var (
	// ErrIdentityNotFound is returned when no identity matches.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrIdentityExists is returned when an identity with the email
	// already exists.
	ErrIdentityExists = errors.New("identity already exists")
	// ErrProviderUnavailable is returned when the admin API cannot be
	// reached or fails server-side.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Identity is an account in the external identity provider.
type Identity struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

// Provider is the admin surface we need from the identity provider.
// CreateIdentity must create the account pre-confirmed: invitation
// acceptance already proves control of the mailbox, so no verification
// email should follow. UpdateCredential must leave the account in the
// same confirmed state, so a pre-existing unverified account is usable
// after acceptance.
type Provider interface {
	LookupByEmail(ctx context.Context, email string) (*Identity, error)
	CreateIdentity(ctx context.Context, email, name, password string) (*Identity, error)
	UpdateCredential(ctx context.Context, id, password string) error
	DeleteIdentity(ctx context.Context, id string) error
}

// AdminClientConfig configures the admin API client.
type AdminClientConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPTimeout  time.Duration
}

// AdminClient talks to the provider's admin REST API using a client
// credentials service token.
type AdminClient struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewAdminClient creates an admin API client.
func NewAdminClient(cfg AdminClientConfig) (*AdminClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &AdminClient{
		baseURL:      cfg.BaseURL,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// serviceToken returns a valid service access token, refreshing it
// when within a minute of expiry.
func (c *AdminClient) serviceToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(time.Minute).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, err := c.serviceToken(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: admin API returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	return resp, nil
}

// LookupByEmail finds an identity by exact email match.
func (c *AdminClient) LookupByEmail(ctx context.Context, email string) (*Identity, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users?exact=true&email="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: lookup returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var matches []Identity
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}
	if len(matches) == 0 {
		return nil, ErrIdentityNotFound
	}
	return &matches[0], nil
}

// CreateIdentity creates a pre-confirmed identity with the given
// initial password.
func (c *AdminClient) CreateIdentity(ctx context.Context, email, name, password string) (*Identity, error) {
	payload := map[string]any{
		"email":          email,
		"name":           name,
		"email_verified": true,
		"enabled":        true,
		"credentials": []map[string]any{
			{"type": "password", "value": password, "temporary": false},
		},
	}

	resp, err := c.do(ctx, http.MethodPost, "/users", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	case http.StatusConflict:
		return nil, ErrIdentityExists
	default:
		return nil, fmt.Errorf("%w: create returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var created Identity
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode create response: %w", err)
	}
	return &created, nil
}

// UpdateCredential replaces the identity's password and confirms the
// account (verified email, enabled). The caller has already proven
// mailbox control, so an account left unverified by an earlier broken
// signup is rescued here.
func (c *AdminClient) UpdateCredential(ctx context.Context, id, password string) error {
	payload := map[string]any{
		"type":      "password",
		"value":     password,
		"temporary": false,
	}

	resp, err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id)+"/credentials", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusNotFound:
		return ErrIdentityNotFound
	default:
		return fmt.Errorf("%w: credential update returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	return c.confirmAccount(ctx, id)
}

// confirmAccount marks the identity verified and enabled, the same
// state CreateIdentity establishes for new accounts.
func (c *AdminClient) confirmAccount(ctx context.Context, id string) error {
	payload := map[string]any{
		"email_verified": true,
		"enabled":        true,
	}

	resp, err := c.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrIdentityNotFound
	default:
		return fmt.Errorf("%w: account confirmation returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}
}

// DeleteIdentity removes an identity. Deleting an already-missing
// identity is not an error, so compensation paths stay idempotent.
func (c *AdminClient) DeleteIdentity(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("%w: delete returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}
}
