package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
	"github.com/fjod/storefront/pkg/logger"
)

type TokenVerifier interface {
	Authenticate(token string) (*service.Claims, error)
}

type AdminService interface {
	TokenVerifier
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Logout(claims *service.Claims)
	GetSelf(ctx context.Context, id int64) (*domain.Admin, error)
	UpdateCredentials(ctx context.Context, id int64, in service.UpdateCredentialsInput) (*service.UpdateResult, error)
}

type AdminHandler struct {
	auth    AdminService
	cookies cookieJar
	log     *zap.Logger
}

func NewAdminHandler(auth AdminService, production bool, log *zap.Logger) *AdminHandler {
	return &AdminHandler{auth: auth, cookies: cookieJar{production: production}, log: log}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateCredentialsRequestDTO struct {
	CurrentPassword string  `json:"currentPassword"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
}

type AdminSummary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type LoginResponse struct {
	Message string       `json:"message"`
	Admin   AdminSummary `json:"admin"`
}

type AdminResponse struct {
	Message string        `json:"message,omitempty"`
	Admin   *domain.Admin `json:"admin"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		respondError(w, http.StatusBadRequest, "missing_credentials", "email and password required")
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
		return
	case err != nil:
		respondServerError(w, logger.WithContext(r.Context(), h.log), "login failed", err)
		return
	}

	h.cookies.setToken(w, r, res.Token)
	respondJSON(w, http.StatusOK, LoginResponse{
		Message: "Logged in",
		Admin:   AdminSummary{ID: res.Admin.ID, Email: res.Admin.Email},
	})
}

// Logout clears the session cookie. It never fails, even without a valid token.
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, err := h.auth.Authenticate(tokenFromRequest(r)); err == nil {
		h.auth.Logout(claims)
	}
	h.cookies.clearToken(w, r)
	respondJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing_token", "Missing token")
		return
	}

	admin, err := h.auth.GetSelf(r.Context(), claims.ID)
	if errors.Is(err, service.ErrAdminNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "Admin not found")
		return
	}
	if err != nil {
		respondServerError(w, logger.WithContext(r.Context(), h.log), "get admin failed", err)
		return
	}

	respondJSON(w, http.StatusOK, AdminResponse{Admin: admin})
}

func (h *AdminHandler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing_token", "Missing token")
		return
	}

	var req UpdateCredentialsRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.auth.UpdateCredentials(r.Context(), claims.ID, service.UpdateCredentialsInput{
		CurrentPassword: req.CurrentPassword,
		Email:           req.Email,
		Password:        req.Password,
	})
	switch {
	case errors.Is(err, service.ErrCurrentPasswordRequired):
		respondError(w, http.StatusBadRequest, "current_password_required", "currentPassword is required to update credentials")
		return
	case errors.Is(err, service.ErrNothingToUpdate):
		respondError(w, http.StatusBadRequest, "nothing_to_update", "Provide at least email or password to update")
		return
	case errors.Is(err, service.ErrPasswordTooLong):
		respondError(w, http.StatusBadRequest, "password_too_long", "Password must be at most 72 bytes")
		return
	case errors.Is(err, service.ErrAdminNotFound):
		respondError(w, http.StatusNotFound, "not_found", "Admin not found")
		return
	case errors.Is(err, service.ErrCurrentPasswordIncorrect):
		respondError(w, http.StatusUnauthorized, "current_password_incorrect", "Current password incorrect")
		return
	case errors.Is(err, service.ErrEmailConflict):
		respondError(w, http.StatusConflict, "email_conflict", "Email already in use")
		return
	case err != nil:
		respondServerError(w, logger.WithContext(r.Context(), h.log), "update credentials failed", err)
		return
	}

	if res.Token != "" {
		h.cookies.setToken(w, r, res.Token)
	}
	respondJSON(w, http.StatusOK, AdminResponse{Message: "Credentials updated", Admin: res.Admin})
}
