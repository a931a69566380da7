// Package nonce issues and verifies the short-lived tokens that guard the
// admin ajax actions. A nonce is an HS256 JWT bound to one action name.
package nonce

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Nonce errors
var (
	ErrInvalidNonce = errors.New("invalid nonce")
	ErrExpiredNonce = errors.New("nonce expired")
)

// DefaultLifetime matches the validity window of a host-platform nonce.
const DefaultLifetime = 24 * time.Hour

// Issuer creates and checks nonces with a shared secret.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewIssuer returns an Issuer. A zero lifetime selects DefaultLifetime.
func NewIssuer(secret []byte, lifetime time.Duration) *Issuer {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Issuer{secret: secret, lifetime: lifetime}
}

// Create returns a nonce valid for action.
func (i *Issuer) Create(action string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"act": action,
		"iat": now.Unix(),
		"exp": now.Add(i.lifetime).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Verify checks that token was issued by i for action and has not expired.
func (i *Issuer) Verify(token, action string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredNonce
		}
		return fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return ErrInvalidNonce
	}
	if act, _ := claims["act"].(string); act != action {
		return fmt.Errorf("%w: action mismatch", ErrInvalidNonce)
	}
	return nil
}
