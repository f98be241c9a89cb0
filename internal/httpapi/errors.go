// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/keyfold/keyfold/pkg/errutil"
)

// errorResponse is the uniform error body: a status-mapped, human-readable
// detail string. Internal causes never appear here.
type errorResponse struct {
	Detail string `json:"detail"`
}

// statusForCode maps service error codes to HTTP statuses. Unknown codes
// are treated as internal failures.
func statusForCode(code string) int {
	switch code {
	case "AUTH_VALIDATION", "AUTH_DUPLICATE_ACCOUNT":
		return http.StatusBadRequest
	case "AUTH_INVALID_CREDENTIALS", "AUTH_UNAUTHENTICATED":
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an errorResponse. Client errors carry the
// service's message verbatim; server errors are logged with full context
// and collapsed to a generic detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError
	detail := "Internal server error"

	if oopsErr, ok := oops.AsOops(err); ok {
		if code, isStr := oopsErr.Code().(string); isStr {
			status = statusForCode(code)
		}
	}

	if status < http.StatusInternalServerError {
		detail = err.Error()
	} else {
		errutil.LogError(logger, "request failed", err)
	}

	writeJSON(w, status, errorResponse{Detail: detail})
}

// writeJSON renders v as a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error means the client went away
	json.NewEncoder(w).Encode(v)
}
