// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/keyfold/keyfold/internal/auth"
	"github.com/keyfold/keyfold/internal/observability"
)

// SessionCookieName is the cookie carrying the session token. Fixed wire
// contract with clients: HttpOnly, Secure, SameSite=Lax, expiry equal to
// the token's own exp claim.
const SessionCookieName = "jwt_token"

// Handler wires HTTP endpoints for the identity API.
type Handler struct {
	logger   *slog.Logger
	service  *auth.Service
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs a Handler. metrics may be nil when the
// observability server is disabled.
func NewHandler(logger *slog.Logger, service *auth.Service, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// MountRoutes registers the identity routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Get("/verify", h.handleVerify)
	})
}

// Request payloads are explicit typed structures; only presence is checked
// here. Shape rules (email format, password length, confirmation, phone)
// belong to the service, where their order is part of the contract.
type registerRequest struct {
	Email             string `json:"email" validate:"required"`
	PhoneNumber       string `json:"phoneNumber" validate:"required"`
	Password          string `json:"password" validate:"required"`
	ConfirmedPassword string `json:"confirmedPassword" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type loginResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Token   string `json:"token"`
}

type verifyResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	accountID, err := h.service.Register(r.Context(), auth.RegisterRequest{
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		Password:          req.Password,
		ConfirmedPassword: req.ConfirmedPassword,
	})
	if err != nil {
		h.count(h.metricsRegistrations(), "error")
		writeError(w, h.logger, err)
		return
	}

	h.count(h.metricsRegistrations(), "ok")
	writeJSON(w, http.StatusCreated, registerResponse{
		Message: "User created successfully",
		UserID:  accountID,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.count(h.metricsLogins(), "error")
		writeError(w, h.logger, err)
		return
	}

	// Cookie expiry must equal the token's exp; a longer-lived cookie
	// would outlast the trust it carries.
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	h.count(h.metricsLogins(), "ok")
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		UserID:  session.AccountID,
		Token:   session.Token,
	})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	accountID, err := h.service.VerifySession(r.Context(), presentedToken(r))
	if err != nil {
		h.count(h.metricsVerifications(), "error")
		writeError(w, h.logger, err)
		return
	}

	h.count(h.metricsVerifications(), "ok")
	writeJSON(w, http.StatusOK, verifyResponse{
		Message: "Verify successful",
		UserID:  accountID,
	})
}

// presentedToken extracts the session token from the jwt_token cookie,
// falling back to an Authorization bearer header. Empty string means no
// token was presented.
func presentedToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(bearer)
	}
	return ""
}

// decode parses and presence-validates a JSON request body. On failure it
// writes a 400 response and returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid request body"})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Missing required fields"})
		return false
	}
	return true
}

// count increments a counter vec with the given status label. The metrics
// server is optional, so all recording goes through this nil-safe helper.
func (h *Handler) count(vec *prometheus.CounterVec, status string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(status).Inc()
}

func (h *Handler) metricsRegistrations() *prometheus.CounterVec {
	if h.metrics == nil {
		return nil
	}
	return h.metrics.RegistrationsTotal
}

func (h *Handler) metricsLogins() *prometheus.CounterVec {
	if h.metrics == nil {
		return nil
	}
	return h.metrics.LoginsTotal
}

func (h *Handler) metricsVerifications() *prometheus.CounterVec {
	if h.metrics == nil {
		return nil
	}
	return h.metrics.VerificationsTotal
}
