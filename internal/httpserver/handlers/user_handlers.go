package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"buildtrack/internal/auth"
	"buildtrack/internal/models"
	"buildtrack/internal/rbac"
)

// ListUsers returns the minimal user directory used by assignee pickers.
func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type row struct {
			ID       string    `json:"id"`
			FullName string    `json:"full_name"`
			Role     rbac.Role `json:"role"`
		}
		rows := []row{}
		if err := db.Model(&models.User{}).Select("id, full_name, role").Order("full_name asc").Scan(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}
}

// AdminCreateUser lets an administrator provision an account with any role.
func AdminCreateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string    `json:"email"`
			Password string    `json:"password"`
			FullName string    `json:"full_name"`
			Role     rbac.Role `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		email := strings.TrimSpace(strings.ToLower(req.Email))
		if email == "" || req.Password == "" || strings.TrimSpace(req.FullName) == "" || !rbac.Valid(req.Role) {
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
			FullName:     strings.TrimSpace(req.FullName),
			Role:         req.Role,
			IsActive:     true,
		}
		if err := db.Create(&u).Error; err != nil {
			respondError(w, http.StatusConflict, "exists")
			return
		}
		lg.Infow("user provisioned", "id", u.ID, "role", u.Role)
		respondJSON(w, http.StatusCreated, map[string]any{"id": u.ID})
	}
}

// AdminUpdateUser changes profile, role, active flag or password. Users are
// deactivated rather than deleted.
func AdminUpdateUser(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req struct {
			FullName *string    `json:"full_name"`
			Role     *rbac.Role `json:"role"`
			IsActive *bool      `json:"is_active"`
			Password *string    `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		if req.Role != nil {
			if !rbac.Valid(*req.Role) {
				respondError(w, http.StatusBadRequest, "invalid")
				return
			}
			u.Role = *req.Role
		}
		if req.FullName != nil {
			u.FullName = *req.FullName
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if req.Password != nil && *req.Password != "" {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "internal")
				return
			}
			u.PasswordHash = hash
		}
		if err := db.Save(&u).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
