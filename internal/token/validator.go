// Package token inspects bearer tokens on the client side. Nothing here
// verifies a signature: the result is a liveness hint used to decide
// whether a stored session is worth presenting, and the service remains
// the only authority on whether a token is accepted.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned by Decode callers that require an exp claim
var ErrNoExpiry = errors.New("token has no expiry claim")

// Claims mirrors the claims the service issues
type Claims struct {
	Email  string `json:"email,omitempty"`
	UserID int    `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Validator decodes tokens and judges expiry against Now
type Validator struct {
	Now    func() time.Time
	parser *jwt.Parser
}

// NewValidator creates a validator using the wall clock
func NewValidator() *Validator {
	return &Validator{
		Now:    time.Now,
		parser: jwt.NewParser(),
	}
}

// Decode parses the payload segment of tok without verifying the signature
func (v *Validator) Decode(tok string) (*Claims, error) {
	if tok == "" {
		return nil, fmt.Errorf("failed to decode token: empty")
	}

	parser := v.parser
	if parser == nil {
		parser = jwt.NewParser()
	}

	// Only the payload segment is read; the header (alg included) is ignored.
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("failed to decode token: expected 3 segments, got %d", len(parts))
	}
	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}

	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of tok
func (v *Validator) ExpiresAt(tok string) (time.Time, error) {
	claims, err := v.Decode(tok)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether tok should be treated as expired. Empty,
// undecodable and exp-less tokens are all expired; otherwise the token is
// live only while its exp is strictly after the current epoch second.
func (v *Validator) IsExpired(tok string) bool {
	expiresAt, err := v.ExpiresAt(tok)
	if err != nil {
		return true
	}
	return expiresAt.Unix() <= v.now().Unix()
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}
