package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"rentloop/internal/config"
	"rentloop/internal/httputil"
	"rentloop/internal/model"
	"rentloop/internal/service"
)

// AuthHandler groups auth-related HTTP endpoints and their dependencies.
type AuthHandler struct {
	authService *service.AuthService
	config      *config.Config
	logger      *zap.SugaredLogger
}

// NewAuthHandler wires dependencies for authentication endpoints.
func NewAuthHandler(authService *service.AuthService, cfg *config.Config, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		config:      cfg,
		logger:      logger,
	}
}

// Signup handles account creation
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req model.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	res, err := h.authService.Signup(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrValidation):
			httputil.WriteBadRequest(w, err.Error())
		case errors.Is(err, model.ErrEmailTaken):
			httputil.WriteBadRequest(w, "Email already registered")
		case errors.Is(err, model.ErrUsernameTaken):
			httputil.WriteBadRequest(w, "Username already taken")
		default:
			h.logger.Errorw("signup failed", "error", err)
			httputil.WriteInternalError(w, internalMessage(h.config, err, "Registration failed"))
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, res)
}

// Login handles authentication
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	res, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) {
			// One shape for unknown email and wrong password.
			httputil.WriteBadRequest(w, "Invalid credentials")
			return
		}
		h.logger.Errorw("login failed", "error", err)
		httputil.WriteInternalError(w, internalMessage(h.config, err, "Server error"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

// internalMessage gates detailed 5xx text to non-production configuration.
func internalMessage(cfg *config.Config, err error, generic string) string {
	if cfg.IsProduction() {
		return generic
	}
	return err.Error()
}
