// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service orchestrates validation, credential hashing, token issuance, and
// the account store. It holds immutable configuration only (store handle,
// hasher, issuer, TTL) and is safe for concurrent use without locking.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	tokens   *TokenIssuer
	tokenTTL time.Duration
	logger   *slog.Logger
}

// RegisterRequest carries the registration input. The plaintext password
// and confirmation are discarded after hashing; they are never persisted
// and never logged.
type RegisterRequest struct {
	Email             string
	PhoneNumber       string
	Password          string
	ConfirmedPassword string
}

// Session is the result of a successful login. ExpiresAt is the token's
// own expiry; the transport layer must use the same instant for any cookie
// it sets.
type Session struct {
	AccountID string
	Token     string
	ExpiresAt time.Time
}

// NewService creates an auth Service.
// A non-positive ttl selects DefaultTokenTTL.
func NewService(accounts AccountRepository, hasher PasswordHasher, tokens *TokenIssuer, ttl time.Duration) (*Service, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		tokenTTL: ttl,
		logger:   slog.Default(),
	}, nil
}

// NewServiceWithLogger creates an auth Service with an explicit logger.
func NewServiceWithLogger(accounts AccountRepository, hasher PasswordHasher, tokens *TokenIssuer, ttl time.Duration, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	svc, err := NewService(accounts, hasher, tokens, ttl)
	if err != nil {
		return nil, err
	}
	svc.logger = logger
	return svc, nil
}

// dummyPasswordHash is verified against when a login targets an unknown
// email, keeping response time flat to prevent username enumeration.
// This is NOT a real credential: the digest segment is not the bcrypt
// output of any password.
//
//nolint:gosec // G101: intentionally fake record for timing equalization, not a credential.
const dummyPasswordHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUV"

// Register creates a new account and returns its ID.
//
// Checks run in a fixed order so that multi-invalid input yields a
// deterministic error: duplicate email, email format, password length,
// password confirmation, phone format. The duplicate pre-check is
// advisory; the store's unique index decides races, and its violation is
// reported identically.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (string, error) {
	_, err := s.accounts.GetByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return "", oops.Code("AUTH_DUPLICATE_ACCOUNT").Errorf("Email already exists")
	case !errors.Is(err, ErrNotFound):
		return "", oops.Code("AUTH_INTERNAL").
			With("operation", "get account by email").
			Wrap(err)
	}

	if !ValidateEmail(req.Email) {
		return "", oops.Code("AUTH_VALIDATION").Errorf("Invalid email format")
	}
	// Length floor counts characters, not bytes: "ééé" is three characters.
	if !MeetsMinimum(utf8.RuneCountInString(req.Password), MinPasswordLength) {
		return "", oops.Code("AUTH_VALIDATION").Errorf("Password should be at least %d characters long", MinPasswordLength)
	}
	// The ceiling is in bytes: bcrypt refuses input past 72. Rejecting here
	// keeps the failure in the validation class instead of silently
	// truncating or surfacing a hashing error.
	if len(req.Password) > MaxPasswordBytes {
		return "", oops.Code("AUTH_VALIDATION").Errorf("Password should be at most %d bytes long", MaxPasswordBytes)
	}
	if req.Password != req.ConfirmedPassword {
		return "", oops.Code("AUTH_VALIDATION").Errorf("Password mismatched")
	}
	if !ValidatePhoneNumber(req.PhoneNumber) {
		return "", oops.Code("AUTH_VALIDATION").Errorf("Invalid phone number format")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return "", oops.Code("AUTH_INTERNAL").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := NewAccount(req.Email, req.PhoneNumber, hash)
	if err != nil {
		return "", oops.Code("AUTH_INTERNAL").
			With("operation", "build account").
			Wrap(err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost a concurrent register race for the same email.
			return "", oops.Code("AUTH_DUPLICATE_ACCOUNT").Errorf("Email already exists")
		}
		return "", oops.Code("AUTH_INTERNAL").
			With("operation", "insert account").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID.String())
	return account.ID.String(), nil
}

// Login authenticates credentials and issues a session token.
//
// An unknown email and a wrong password produce the same error; password
// verification always runs (against a dummy record when the account is
// absent) to keep timing flat. A password check that fails because the
// stored record is unreadable surfaces as AUTH_CORRUPT_HASH, never as a
// plain mismatch.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	account, lookupErr := s.accounts.GetByEmail(ctx, email)

	targetHash := dummyPasswordHash
	accountExists := false

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, oops.Code("AUTH_INTERNAL").
				With("operation", "get account by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = account.PasswordHash
		accountExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !accountExists {
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("Invalid email or password")
		}
		// Already coded AUTH_CORRUPT_HASH by the hasher.
		return nil, verifyErr
	}

	if !accountExists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("Invalid email or password")
	}

	token, expiresAt, err := s.tokens.Issue(account.ID.String(), s.tokenTTL)
	if err != nil {
		return nil, oops.Code("AUTH_INTERNAL").
			With("operation", "issue session token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "account_id", account.ID.String())
	return &Session{
		AccountID: account.ID.String(),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifySession validates a presented token and returns the account ID it
// was issued for. The subject must still exist in the store: a well-signed
// token for a deleted account does not verify. Missing, tampered, expired,
// and orphaned tokens all surface as a single unauthenticated error; the
// internal distinction is logged for diagnostics but never exposed to the
// caller.
func (s *Service) VerifySession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", oops.Code("AUTH_UNAUTHENTICATED").Errorf("User not logged in. Please log in.")
	}

	subjectID, err := s.tokens.Verify(token)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, ErrTokenExpired) {
			reason = "expired"
		}
		s.logger.DebugContext(ctx, "session token rejected", "reason", reason)
		return "", oops.Code("AUTH_UNAUTHENTICATED").Errorf("Invalid or expired session. Please log in.")
	}

	accountID, err := ulid.Parse(subjectID)
	if err != nil {
		s.logger.DebugContext(ctx, "session token rejected", "reason", "malformed subject")
		return "", oops.Code("AUTH_UNAUTHENTICATED").Errorf("Invalid or expired session. Please log in.")
	}

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.DebugContext(ctx, "session token rejected", "reason", "account gone")
			return "", oops.Code("AUTH_UNAUTHENTICATED").Errorf("Invalid or expired session. Please log in.")
		}
		return "", oops.Code("AUTH_INTERNAL").
			With("operation", "get account by id").
			Wrap(err)
	}

	return subjectID, nil
}
