// Package password provides password hashing and policy validation.
package password

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrPasswordNoUppercase = errors.New("password must contain at least one uppercase letter")
	ErrPasswordNoLowercase = errors.New("password must contain at least one lowercase letter")
	ErrPasswordNoNumber    = errors.New("password must contain at least one number")
	ErrPasswordMismatch    = errors.New("password does not match")
	ErrInvalidHash         = errors.New("invalid password hash")
)

// DefaultCost is the default bcrypt cost factor.
const DefaultCost = 12

// Policy defines password requirements.
type Policy struct {
	MinLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireNumber bool
}

// DefaultPolicy returns the policy applied to invitation-acceptance
// and password-change flows.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireNumber: true,
	}
}

// Hasher provides password hashing and verification.
type Hasher struct {
	cost   int
	policy Policy
}

// Option configures the Hasher.
type Option func(*Hasher)

// WithCost sets the bcrypt cost factor.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithPolicy sets the password policy.
func WithPolicy(policy Policy) Option {
	return func(h *Hasher) {
		h.policy = policy
	}
}

// New creates a new password hasher with the given options.
func New(opts ...Option) *Hasher {
	h := &Hasher{
		cost:   DefaultCost,
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash hashes a password using bcrypt.
func (h *Hasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify checks if a password matches a hash.
func (h *Hasher) Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// Validate checks if a password meets the policy requirements.
func (h *Hasher) Validate(password string) error {
	return ValidateWithPolicy(password, h.policy)
}

// ValidateWithPolicy validates a password against a specific policy.
func ValidateWithPolicy(password string, policy Policy) error {
	if len(password) < policy.MinLength {
		return ErrPasswordTooShort
	}

	var hasUpper, hasLower, hasNumber bool

	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	if policy.RequireUpper && !hasUpper {
		return ErrPasswordNoUppercase
	}
	if policy.RequireLower && !hasLower {
		return ErrPasswordNoLowercase
	}
	if policy.RequireNumber && !hasNumber {
		return ErrPasswordNoNumber
	}

	return nil
}

// NeedsRehash checks if a hash should be upgraded due to cost changes.
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}
