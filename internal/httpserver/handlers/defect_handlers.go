package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"buildtrack/internal/auth"
	"buildtrack/internal/models"
	"buildtrack/internal/service"
)

const (
	listLimitDefault = 20
	listLimitMax     = 100
)

func listOptionsFromQuery(r *http.Request, limitDefault, limitMax int) service.ListOptions {
	q := r.URL.Query()
	limit := queryInt(r, "limit", limitDefault)
	if limit > limitMax {
		limit = limitMax
	}
	return service.ListOptions{
		Filters: service.ListFilters{
			Status:     q.Get("status"),
			Priority:   q.Get("priority"),
			ProjectID:  queryUint(r, "projectId"),
			ObjectID:   queryUint(r, "objectId"),
			StageID:    queryUint(r, "stageId"),
			AssigneeID: q.Get("assigneeId"),
			Q:          q.Get("q"),
		},
		SortBy:  q.Get("sortBy"),
		SortDir: q.Get("sortDir"),
		Page:    queryInt(r, "page", 1),
		Limit:   limit,
	}
}

func ListDefects(svc *service.Defects, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opt := listOptionsFromQuery(r, listLimitDefault, listLimitMax)
		items, err := svc.List(opt)
		if err != nil {
			lg.Errorw("defect listing failed", "error", err)
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"page":  opt.Page,
			"limit": opt.Limit,
		})
	}
}

func CreateDefect(svc *service.Defects, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.CreateDefectInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		sess := auth.FromContext(r.Context())
		d, err := svc.Create(sess, in)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		lg.Infow("defect created", "id", d.ID, "creator", sess.ID)
		respondJSON(w, http.StatusCreated, d)
	}
}

func GetDefect(svc *service.Defects, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		d, err := svc.Get(id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		var assigneeName *string
		if d.AssigneeID != nil {
			var u models.User
			if err := svc.DB.First(&u, "id = ?", *d.AssigneeID).Error; err == nil {
				assigneeName = &u.FullName
			}
		}
		respondJSON(w, http.StatusOK, struct {
			*models.Defect
			AssigneeName *string `json:"assignee_name"`
		}{d, assigneeName})
	}
}

func UpdateDefect(svc *service.Defects, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		var p service.DefectPatch
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		sess := auth.FromContext(r.Context())
		d, err := svc.Update(sess, id, p)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, d)
	}
}

func DeleteDefect(svc *service.Defects, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		sess := auth.FromContext(r.Context())
		if err := svc.Delete(sess, id); err != nil {
			respondServiceError(w, err)
			return
		}
		lg.Infow("defect deleted", "id", id, "actor", sess.ID)
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func DefectHistory(svc *service.Defects, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		rows, err := svc.History(id)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "internal")
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}
}
