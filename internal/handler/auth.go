package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicdesk/internal/config"
	"github.com/civicdesk/internal/logger"
	"github.com/civicdesk/internal/middleware"
	"github.com/civicdesk/internal/model"
	"github.com/civicdesk/internal/repository"
	"github.com/civicdesk/internal/storage"
)

type AuthHandler struct {
	userRepo *repository.UserRepository
	store    storage.SessionStore
	cfg      *config.Config
}

func NewAuthHandler(userRepo *repository.UserRepository, store storage.SessionStore, cfg *config.Config) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, store: store, cfg: cfg}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string           `json:"token"`
	User  model.UserPublic `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "name, email and password (min 8 chars) required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         model.RoleCitizen,
		CreatedAt:    time.Now().UTC(),
	}
	if err := h.userRepo.Create(r.Context(), u); err != nil {
		logger.Errorf("register create user: %v", err)
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	h.respondWithToken(w, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	u, err := h.userRepo.GetByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		logger.Errorf("login get user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.respondWithToken(w, u)
}

// Logout revokes the presented token for its remaining lifetime.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims, err := middleware.ParseToken([]byte(h.cfg.JWTSecret), raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := h.store.Revoke(r.Context(), claims.ID, claims.Subject, ttl); err != nil {
		logger.Errorf("logout revoke: %v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, u *model.User) {
	token, err := middleware.NewToken([]byte(h.cfg.JWTSecret), u.ID, u.Role, h.cfg.TokenTTL)
	if err != nil {
		logger.Errorf("issue token user=%s: %v", u.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, authResponse{Token: token, User: u.ToPublic()})
}
