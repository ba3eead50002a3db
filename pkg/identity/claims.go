// Package identity integrates with the external identity provider:
// validating its access tokens via JWKS and managing identities
// through its admin API. The rest of the codebase only ever sees the
// provider subject and profile claims, never provider internals.
package identity

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims we consume from the identity provider.
type Claims struct {
	jwt.RegisteredClaims

	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified,omitempty"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Azp               string `json:"azp,omitempty"`
}

// UserID returns the provider subject. It is the primary key of our
// user records.
func (c *Claims) UserID() string {
	return c.Subject
}

// DisplayName returns the best available human-readable name.
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	full := strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	if full != "" {
		return full
	}
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Email
}
