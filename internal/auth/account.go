// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

// Package auth provides account registration, credential verification, and
// session token primitives for Keyfold.
package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account represents a registered identity.
//
// Email is unique across all accounts and compared case-sensitively,
// matching the store's unique index. PasswordHash holds the bcrypt record
// (salt and cost embedded); the plaintext password is never stored.
type Account struct {
	ID           ulid.ULID
	Email        string
	PhoneNumber  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount creates a validated Account with a fresh ID.
// The caller is responsible for having validated email and phone format;
// this constructor only enforces structural invariants.
func NewAccount(email, phoneNumber, passwordHash string) (*Account, error) {
	if email == "" {
		return nil, oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_HASH").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &Account{
		ID:           ulid.Make(),
		Email:        email,
		PhoneNumber:  phoneNumber,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// AccountRepository manages account persistence.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateEmail (possibly
	// wrapped) if the email is already registered; the unique index at the
	// store boundary makes this check atomic with the insert.
	Create(ctx context.Context, account *Account) error

	// GetByEmail retrieves an account by email (case-sensitive).
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)
}
