package handlers

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"buildtrack/internal/auth"
	"buildtrack/internal/service"
)

func ListFiles(svc *service.Files, lg *zap.SugaredLogger) http.HandlerFunc {
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

// UploadFile accepts one multipart file field named "file". The body is
// bounded before parsing so an oversized request never spools to disk in
// full.
func UploadFile(svc *service.Files, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		// allow some slack for the multipart envelope
		r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadBytes+1<<20)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			respondError(w, http.StatusBadRequest, "too_large")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid")
			return
		}
		defer file.Close()

		sess := auth.FromContext(r.Context())
		f, err := svc.Upload(sess, id, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		lg.Infow("file uploaded", "id", f.ID, "defect", id, "size", f.SizeBytes)
		respondJSON(w, http.StatusCreated, f)
	}
}

func GetFile(svc *service.Files, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		f, err := svc.Get(id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, f)
	}
}

func DownloadFile(svc *service.Files, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		f, rc, err := svc.OpenContent(id)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", f.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
		w.Header().Set("Content-Length", fmt.Sprint(f.SizeBytes))
		if _, err := io.Copy(w, rc); err != nil {
			lg.Errorw("file download interrupted", "id", id, "error", err)
		}
	}
}

func DeleteFile(svc *service.Files, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(r)
		if !ok {
			respondError(w, http.StatusNotFound, "not_found")
			return
		}
		if err := svc.Delete(auth.FromContext(r.Context()), id); err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
