// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the session token lifetime used when none is
// configured. The cookie written by the HTTP layer expires at the same
// instant as the token itself.
const DefaultTokenTTL = 10 * time.Hour

// Token verification failures. Both are folded into a single
// unauthenticated error at the service boundary; the distinction exists
// for diagnostics only.
var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// sessionClaims is the wire format of a session token: a userId claim plus
// the registered exp claim (numeric seconds since epoch). The encoding is
// a compact HS256 JWT, verifiable by any conforming implementation holding
// the same secret.
type sessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies signed, time-bounded session tokens.
// It is stateless apart from the shared signing secret and is safe for
// concurrent use.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with the given secret.
func NewTokenIssuer(secret []byte) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_MISSING").Errorf("signing secret is required")
	}
	return &TokenIssuer{
		secret: secret,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the issuer using the given time source.
// Used by tests to make expiry deterministic.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	return &TokenIssuer{secret: i.secret, now: now}
}

// Issue creates a signed token for the subject, expiring after ttl.
// Returns the compact token text and its absolute expiry instant.
func (i *TokenIssuer) Issue(subjectID string, ttl time.Duration) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, oops.Code("TOKEN_ISSUE_FAILED").Errorf("subject ID cannot be empty")
	}

	expiresAt := i.now().Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		UserID: subjectID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "sign token").
			Wrap(err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature integrity first, then expiry, and returns the
// subject ID on success. Tampering, a wrong secret, or a malformed token
// yield ErrTokenInvalid; a well-signed but stale token yields
// ErrTokenExpired.
func (i *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", oops.Code("TOKEN_EXPIRED").Wrap(ErrTokenExpired)
		}
		return "", oops.Code("TOKEN_INVALID").
			With("operation", "parse token").
			Wrap(ErrTokenInvalid)
	}
	if !token.Valid || claims.UserID == "" {
		return "", oops.Code("TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}

	return claims.UserID, nil
}
