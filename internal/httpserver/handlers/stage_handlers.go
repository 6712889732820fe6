package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"buildtrack/internal/models"
)

func ListStages(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Order("created_at desc")
		if oid := queryUint(r, "objectId"); oid != 0 {
			q = q.Where("object_id = ?", oid)
		}
		rows := []models.Stage{}
		if err := q.Find(&rows).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}
}

func CreateStage(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ObjectID uint   `json:"object_id"`
			Name     string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" || req.ObjectID == 0 {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		var n int64
		if err := db.Model(&models.Object{}).Where("id = ?", req.ObjectID).Count(&n).Error; err != nil || n == 0 {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		s := models.Stage{ObjectID: req.ObjectID, Name: name}
		if err := db.Create(&s).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusCreated, s)
	}
}

func GetStage(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var s models.Stage
		if err := db.First(&s, id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		respondJSON(w, http.StatusOK, s)
	}
}

func UpdateStage(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var req struct {
			Name *string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		var s models.Stage
		if err := db.First(&s, id).Error; err != nil {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		if req.Name != nil {
			s.Name = *req.Name
		}
		if err := db.Save(&s).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, s)
	}
}

// DeleteStage removes a stage; defects that referenced it keep running with
// stage_id cleared by the FK.
func DeleteStage(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		res := db.Delete(&models.Stage{}, id)
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
