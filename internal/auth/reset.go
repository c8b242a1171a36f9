package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// ResetTokenTTL is how long a password-reset link stays valid.
	ResetTokenTTL = time.Hour

	resetPurpose = "password-reset"
)

// ErrInvalidResetToken is returned for tampered, expired or malformed tokens.
var ErrInvalidResetToken = errors.New("invalid or expired reset token")

type resetClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// ResetTokens issues and verifies signed, time-limited tokens carrying an email.
type ResetTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewResetTokens creates a ResetTokens signing with secret.
func NewResetTokens(secret string) *ResetTokens {
	return &ResetTokens{secret: []byte(secret), ttl: ResetTokenTTL, now: time.Now}
}

// WithClock returns a copy using now as its time source.
func (t *ResetTokens) WithClock(now func() time.Time) *ResetTokens {
	c := *t
	c.now = now
	return &c
}

// Issue signs a token for email that expires after the TTL.
func (t *ResetTokens) Issue(email string) (string, error) {
	issued := t.now()
	claims := resetClaims{
		Email:   email,
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the embedded email.
func (t *ResetTokens) Verify(token string) (string, error) {
	var claims resetClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidResetToken
	}
	if claims.Purpose != resetPurpose || claims.Email == "" {
		return "", ErrInvalidResetToken
	}
	return claims.Email, nil
}
