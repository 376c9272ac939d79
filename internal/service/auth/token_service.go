// Package auth issues and verifies the bearer tokens of the control API.
package auth

import (
	"context"
	"time"
)

// TokenTypeOperator marks tokens issued to operators of the control API.
const TokenTypeOperator = "operator"

// TokenService defines operations for managing operator bearer tokens.
type TokenService interface {
	// GenerateToken creates a signed token for subject.
	// Returns the token string or an error if signing fails.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken validates the provided token string and extracts the claims.
	// Returns ErrExpiredToken, ErrTokenNotYetValid, ErrWrongTokenType or
	// ErrInvalidToken when validation fails.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the validated contents of an operator token.
type Claims struct {
	// Subject names the operator the token was issued to.
	Subject   string    `json:"sub,omitempty"`
	TokenType string    `json:"type,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
