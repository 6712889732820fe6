package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"buildtrack/internal/models"
)

func ListProjects(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows := []models.Project{}
		if err := db.Order("created_at desc").Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}
}

func CreateProject(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name        string  `json:"name"`
			Description *string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		p := models.Project{Name: name, Description: req.Description}
		if err := db.Create(&p).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		lg.Infow("project created", "id", p.ID, "name", p.Name)
		respondJSON(w, http.StatusCreated, p)
	}
}

func GetProject(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var p models.Project
		if err := db.First(&p, id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

func UpdateProject(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var req struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		var p models.Project
		if err := db.First(&p, id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Description != nil {
			p.Description = req.Description
		}
		if err := db.Save(&p).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

// DeleteProject removes the project and, by FK cascade, its objects and
// stages.
func DeleteProject(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		res := db.Delete(&models.Project{}, id)
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		lg.Infow("project deleted", "id", id)
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
