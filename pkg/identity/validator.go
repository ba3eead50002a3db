package identity

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrInvalidIssuer is returned when the token issuer doesn't match.
	ErrInvalidIssuer = errors.New("invalid token issuer")
	// ErrInvalidAudience is returned when the token audience doesn't match.
	ErrInvalidAudience = errors.New("invalid token audience")
	// ErrJWKSUnavailable is returned when JWKS cannot be fetched.
	ErrJWKSUnavailable = errors.New("JWKS endpoint unavailable")
	// ErrKeyNotFound is returned when the key ID is not found in JWKS.
	ErrKeyNotFound = errors.New("key not found in JWKS")
)

// JWK is a single JSON Web Key from the provider's key set.
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS is the provider's published key set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// RefreshErrorHandler is called when a background JWKS refresh fails.
type RefreshErrorHandler func(err error, consecutiveFailures int)

// ValidatorConfig holds configuration for the token validator.
type ValidatorConfig struct {
	JWKSURL         string
	IssuerURL       string
	Audience        string
	RefreshInterval time.Duration
	HTTPTimeout     time.Duration
	// OnRefreshError is called when background JWKS refresh fails.
	OnRefreshError RefreshErrorHandler
	// RequireInitialFetch makes NewValidator fail if the first JWKS
	// fetch fails. Off by default so the server can start while the
	// provider is briefly unreachable.
	RequireInitialFetch bool
}

// Validator validates identity provider access tokens against the
// provider's JWKS, with cached keys and background refresh.
type Validator struct {
	jwksURL    string
	issuerURL  string
	audience   string
	httpClient *http.Client

	mu                  sync.RWMutex
	keys                map[string]*rsa.PublicKey
	lastFetch           time.Time
	lastError           error
	consecutiveFailures int
	refreshInt          time.Duration
	onRefreshError      RefreshErrorHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewValidator creates a token validator and starts its background
// key refresh.
func NewValidator(ctx context.Context, cfg ValidatorConfig) (*Validator, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("JWKS URL is required")
	}

	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)

	v := &Validator{
		jwksURL:        cfg.JWKSURL,
		issuerURL:      cfg.IssuerURL,
		audience:       cfg.Audience,
		httpClient:     &http.Client{Timeout: cfg.HTTPTimeout},
		keys:           make(map[string]*rsa.PublicKey),
		refreshInt:     cfg.RefreshInterval,
		onRefreshError: cfg.OnRefreshError,
		ctx:            ctx,
		cancel:         cancel,
	}

	if err := v.refreshKeys(); err != nil {
		if cfg.RequireInitialFetch {
			cancel()
			return nil, fmt.Errorf("failed to fetch initial JWKS: %w", err)
		}
		v.mu.Lock()
		v.consecutiveFailures = 1
		v.lastError = err
		v.mu.Unlock()

		if v.onRefreshError != nil {
			v.onRefreshError(err, 1)
		}
	}

	go v.backgroundRefresh()

	return v, nil
}

func (v *Validator) refreshKeys() error {
	req, err := http.NewRequestWithContext(v.ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("failed to decode JWKS: %w", err)
	}

	newKeys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" {
			continue
		}
		pubKey, err := jwkToRSAPublicKey(key)
		if err != nil {
			continue
		}
		newKeys[key.Kid] = pubKey
	}

	v.mu.Lock()
	v.keys = newKeys
	v.lastFetch = time.Now()
	v.mu.Unlock()

	return nil
}

func (v *Validator) backgroundRefresh() {
	ticker := time.NewTicker(v.refreshInt)
	defer ticker.Stop()

	for {
		select {
		case <-v.ctx.Done():
			return
		case <-ticker.C:
			if err := v.refreshKeys(); err != nil {
				v.mu.Lock()
				v.consecutiveFailures++
				v.lastError = err
				failures := v.consecutiveFailures
				v.mu.Unlock()

				if v.onRefreshError != nil {
					v.onRefreshError(err, failures)
				}
			} else {
				v.mu.Lock()
				v.consecutiveFailures = 0
				v.lastError = nil
				v.mu.Unlock()
			}
		}
	}
}

// LastRefreshError returns the last refresh error and consecutive
// failure count, or nil, 0 after a successful refresh.
func (v *Validator) LastRefreshError() (error, int) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastError, v.consecutiveFailures
}

// LastRefreshTime returns the time of the last successful JWKS refresh.
func (v *Validator) LastRefreshTime() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastFetch
}

func (v *Validator) getKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	keysEmpty := len(v.keys) == 0
	v.mu.RUnlock()

	if ok {
		return key, nil
	}

	// Unknown kid usually means key rotation; refresh once on demand.
	if err := v.refreshKeys(); err != nil {
		if keysEmpty {
			return nil, ErrJWKSUnavailable
		}
		return nil, ErrKeyNotFound
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()

	if !ok {
		return nil, ErrKeyNotFound
	}

	return key, nil
}

// HasKeys reports whether at least one signing key is loaded.
func (v *Validator) HasKeys() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys) > 0
}

// ValidateToken validates an access token and returns its claims.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	// Parse without verification first to get the key ID.
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		return nil, ErrInvalidToken
	}

	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, fmt.Errorf("%w: missing key ID", ErrInvalidToken)
	}

	pubKey, err := v.getKey(kid)
	if err != nil {
		return nil, err
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithExpirationRequired(),
	}
	if v.issuerURL != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuerURL))
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return pubKey, nil
	}

	claims = &Claims{}
	token, err = jwt.ParseWithClaims(tokenString, claims, keyFunc, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidToken
		}
		if errors.Is(err, jwt.ErrTokenInvalidIssuer) {
			return nil, ErrInvalidIssuer
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.audience != "" {
		aud, err := claims.GetAudience()
		if err != nil {
			return nil, ErrInvalidAudience
		}
		validAudience := false
		for _, a := range aud {
			if a == v.audience {
				validAudience = true
				break
			}
		}
		// azp is checked as a fallback for providers that put the
		// client ID there instead of aud.
		if !validAudience && claims.Azp != v.audience {
			return nil, ErrInvalidAudience
		}
	}

	return claims, nil
}

// Close shuts down the JWKS background refresh.
func (v *Validator) Close() error {
	v.cancel()
	return nil
}

func jwkToRSAPublicKey(jwk JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	n := new(big.Int).SetBytes(nBytes)

	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	var e int
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}
