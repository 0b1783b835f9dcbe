package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Rrens/apex-chat/internal/api/middleware"
	"github.com/Rrens/apex-chat/internal/api/response"
	"github.com/Rrens/apex-chat/internal/domain"
	"github.com/Rrens/apex-chat/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService  *service.AuthService
	cookieName   string
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, cookieName string, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieName:   cookieName,
		secureCookie: secureCookie,
	}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input domain.AccountCreate
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if !validateInput(w, input) {
		return
	}

	account, err := h.authService.Register(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Conflict(w, err.Error())
			return
		}
		log.Error().Err(err).Msg("Registration failed")
		response.InternalError(w, "registration failed")
		return
	}

	response.Created(w, map[string]any{
		"message": "User registered successfully",
		"user":    account.Profile(),
	})
}

// Login verifies credentials and sets the session cookie
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if !validateInput(w, input) {
		return
	}

	result, err := h.authService.Login(r.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(w, err.Error())
			return
		}
		log.Error().Err(err).Msg("Login failed")
		response.InternalError(w, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		MaxAge:   int(time.Until(result.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	response.OK(w, map[string]any{
		"message": "Login successful",
		"token":   result.Token,
		"user":    result.Account.Profile(),
	})
}

// Logout revokes the session and clears the cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		if err := h.authService.Logout(r.Context(), claims); err != nil {
			log.Error().Err(err).Msg("Failed to revoke token")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	response.OK(w, map[string]string{"message": "Logged out"})
}

// Me returns the current authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := middleware.GetAccount(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	response.OK(w, map[string]any{
		"user": account.Profile(),
	})
}

// validateInput writes a 400 response and returns false when input is invalid
func validateInput(w http.ResponseWriter, input any) bool {
	err := validate.Struct(input)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		response.BadRequest(w, err.Error())
		return false
	}

	fields := make(map[string]string)
	for _, e := range validationErrors {
		field := e.Field()
		tag := e.Tag()
		switch tag {
		case "required":
			fields[field] = "field is required"
		case "email":
			fields[field] = "invalid email format"
		case "min":
			fields[field] = "must be at least " + e.Param() + " characters"
		case "max":
			fields[field] = "must be at most " + e.Param() + " characters"
		default:
			fields[field] = "validation failed on " + tag
		}
	}
	response.ValidationError(w, fields)
	return false
}
