package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vazzup/indian-palmistry-ai-sub000/internal/auth"
	"github.com/vazzup/indian-palmistry-ai-sub000/internal/db"
)

// UserStore is the subset of db.Queries the auth handlers depend on.
type UserStore interface {
	CreateUser(ctx context.Context, user *db.User) error
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByID(ctx context.Context, id string) (*db.User, error)
}

// AuthHandlers handles authentication requests
type AuthHandlers struct {
	users  UserStore
	tokens *auth.TokenManager
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(users UserStore, tokens *auth.TokenManager) *AuthHandlers {
	return &AuthHandlers{users: users, tokens: tokens}
}

// RegisterRequest is the request to register a new account
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// LoginRequest is the request to login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the response for auth operations
type AuthResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Register registers a new account
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("email and password are required"), nil)
		return
	}
	if len(req.Password) < 8 {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("password must be at least 8 characters"), nil)
		return
	}

	if _, err := h.users.GetUserByEmail(r.Context(), req.Email); err == nil {
		WriteError(w, r, http.StatusConflict, fmt.Errorf("email already registered"), nil)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, fmt.Errorf("failed to hash password"), nil)
		return
	}

	user := &db.User{
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Name:         req.Name,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		WriteError(w, r, http.StatusInternalServerError, fmt.Errorf("failed to create user"), nil)
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Email)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, fmt.Errorf("failed to generate token"), nil)
		return
	}

	WriteSuccess(w, AuthResponse{Token: token, UserID: user.ID, Email: user.Email}, http.StatusCreated)
}

// Login authenticates an account. Failed attempts return 401, which the
// admission layer counts toward the brute-force check.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body"), nil)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		WriteError(w, r, http.StatusBadRequest, fmt.Errorf("email and password are required"), nil)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		WriteError(w, r, http.StatusUnauthorized, fmt.Errorf("invalid email or password"), nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		WriteError(w, r, http.StatusUnauthorized, fmt.Errorf("invalid email or password"), nil)
		return
	}

	token, err := h.tokens.Generate(user.ID, user.Email)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, fmt.Errorf("failed to generate token"), nil)
		return
	}

	WriteSuccess(w, AuthResponse{Token: token, UserID: user.ID, Email: user.Email}, http.StatusOK)
}

// Me returns the current authenticated user
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, r, http.StatusUnauthorized, fmt.Errorf("unauthorized"), nil)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, fmt.Errorf("user not found"), nil)
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"user_id":    user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"created_at": user.CreatedAt,
	}, http.StatusOK)
}
