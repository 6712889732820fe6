package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"buildtrack/internal/auth"
	"buildtrack/internal/models"
	"buildtrack/internal/rbac"
)

type signupReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Signup registers a new account. Self-registered users always start as
// engineers; role changes go through admin user management.
func Signup(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		email := strings.TrimSpace(strings.ToLower(req.Email))
		fullName := strings.TrimSpace(req.FullName)
		if email == "" || req.Password == "" || fullName == "" {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		var n int64
		if err := db.Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&n).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		if n > 0 {
			respondError(w, http.StatusConflict, "exists")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		u := models.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: hash,
			FullName:     fullName,
			Role:         rbac.RoleEngineer,
			IsActive:     true,
		}
		if err := db.Create(&u).Error; err != nil {
			respondError(w, http.StatusConflict, "exists")
			return
		}
		lg.Infow("user registered", "id", u.ID, "email", u.Email)
		respondJSON(w, http.StatusCreated, map[string]any{"ok": true})
	}
}

type signinReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signin verifies credentials and sets the session cookie.
func Signin(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signinReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		email := strings.TrimSpace(strings.ToLower(req.Email))
		if email == "" || req.Password == "" {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		var u models.User
		err := db.Where("LOWER(email) = ? AND is_active = ?", email, true).First(&u).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				lg.Errorw("signin lookup failed", "error", err)
			}
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		tok, err := auth.Sign(auth.Session{ID: u.ID, Name: u.FullName, Role: u.Role, Email: u.Email})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		now := time.Now()
		_ = db.Model(&u).Update("last_login_at", now).Error
		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName(),
			Value:    tok,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(auth.TokenTTL().Seconds()),
		})
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// Logout clears the session cookie. Tokens are stateless so there is nothing
// to revoke server-side.
func Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     auth.CookieName(),
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		})
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

// Me echoes the session claims.
func Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, auth.FromContext(r.Context()))
	}
}
