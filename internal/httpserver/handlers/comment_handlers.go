package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"buildtrack/internal/auth"
	"buildtrack/internal/service"
)

func ListComments(svc *service.Comments, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		rows, err := svc.List(id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}
}

func CreateComment(svc *service.Comments, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		c, err := svc.Create(auth.FromContext(r.Context()), id, req.Content)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, c)
	}
}

func GetComment(svc *service.Comments, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		c, err := svc.Get(id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

func UpdateComment(svc *service.Comments, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		c, err := svc.Edit(auth.FromContext(r.Context()), id, req.Content)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, c)
	}
}

func DeleteComment(svc *service.Comments, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		if err := svc.SoftDelete(auth.FromContext(r.Context()), id); err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
