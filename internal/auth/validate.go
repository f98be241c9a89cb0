// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import "regexp"

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

// emailRegex matches local-part @ domain . TLD (two or more letters).
// Format check only; no DNS or deliverability verification.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// phoneRegex matches an optional leading + followed by 10 to 15 digits.
// Letters, separators, and out-of-range lengths are rejected.
var phoneRegex = regexp.MustCompile(`^\+?\d{10,15}$`)

// ValidateEmail reports whether s has a plausible email shape.
func ValidateEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// ValidatePhoneNumber reports whether s is a valid phone number.
func ValidatePhoneNumber(s string) bool {
	return phoneRegex.MatchString(s)
}

// MeetsMinimum reports whether value is at least minimum.
func MeetsMinimum(value, minimum int) bool {
	return value >= minimum
}
