// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an insert would violate the unique
// email constraint. The store is the arbiter of uniqueness; the service's
// pre-check only produces friendlier ordering of validation errors.
var ErrDuplicateEmail = errors.New("email already exists")
