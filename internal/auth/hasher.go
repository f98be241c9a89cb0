// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"errors"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor used for new password hashes.
const BcryptCost = 12

// MaxPasswordBytes is bcrypt's input limit. Longer passwords must be
// rejected before hashing; bcrypt errors rather than truncating.
const MaxPasswordBytes = 72

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password. The salt is
	// generated fresh per call, so the output is never deterministic.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or an
	// AUTH_CORRUPT_HASH error when the stored record cannot be parsed.
	// Callers must treat the error case as "cannot verify at all", not as
	// a wrong password.
	Verify(password, hash string) (bool, error)
}

// BcryptHasher implements PasswordHasher using bcrypt.
// The cost factor and salt are embedded in the encoded record, so
// verification needs no external parameters.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with the default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: BcryptCost}
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").
			With("operation", "bcrypt generate").
			Wrap(err)
	}
	return string(hash), nil
}

// Verify checks if the password matches the encoded hash.
// bcrypt's comparison is constant-time over the derived key.
func (h *BcryptHasher) Verify(password, encodedHash string) (bool, error) {
	if !strings.HasPrefix(encodedHash, "$2") {
		return false, oops.Code("AUTH_CORRUPT_HASH").
			Errorf("stored credential is not a bcrypt record")
	}

	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	// Truncated records, bad cost fields, and unknown versions end up here.
	return false, oops.Code("AUTH_CORRUPT_HASH").
		With("operation", "bcrypt compare").
		Wrap(err)
}

// Compile-time interface check.
var _ PasswordHasher = (*BcryptHasher)(nil)
