package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"buildtrack/internal/models"
)

func ListObjects(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Order("created_at desc")
		if pid := queryUint(r, "projectId"); pid != 0 {
			q = q.Where("project_id = ?", pid)
		}
		rows := []models.Object{}
		if err := q.Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}
}

func CreateObject(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProjectID uint    `json:"project_id"`
			Name      string  `json:"name"`
			Address   *string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" || req.ProjectID == 0 {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		var n int64
		if err := db.Model(&models.Project{}).Where("id = ?", req.ProjectID).Count(&n).Error; err != nil || n == 0 {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		o := models.Object{ProjectID: req.ProjectID, Name: name, Address: req.Address}
		if err := db.Create(&o).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		lg.Infow("object created", "id", o.ID, "project", o.ProjectID)
		respondJSON(w, http.StatusCreated, o)
	}
}

func GetObject(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var o models.Object
		if err := db.First(&o, id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		respondJSON(w, http.StatusOK, o)
	}
}

func UpdateObject(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var req struct {
			Name    *string `json:"name"`
			Address *string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		var o models.Object
		if err := db.First(&o, id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		if req.Name != nil {
			o.Name = *req.Name
		}
		if req.Address != nil {
			o.Address = req.Address
		}
		if err := db.Save(&o).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, o)
	}
}

func DeleteObject(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		res := db.Delete(&models.Object{}, id)
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
