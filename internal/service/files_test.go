package service

import (
	"io"
	"strings"
	"testing"

	"buildtrack/internal/models"
	"buildtrack/internal/rbac"
	"buildtrack/internal/storage"
)

func setupFiles(t *testing.T) (*Files, *Defects, *storage.Store) {
	t.Helper()
	db := setupTestDB(t)
	st, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return NewFiles(db, st), NewDefects(db), st
}

func TestUploadAndDownload(t *testing.T) {
	files, defects, st := setupFiles(t)
	mgr := seedUser(t, files.DB, rbac.RoleManager)
	p, o := seedProjectObject(t, files.DB)
	d := createDefect(t, defects, asSession(mgr), p, o, "with attachment")

	content := "inspection photo bytes"
	f, err := files.Upload(asSession(mgr), d.ID, "photo 1.jpg", "image/jpeg", int64(len(content)), strings.NewReader(content))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if f.Filename != "photo_1.jpg" {
		t.Errorf("filename = %q, want sanitized", f.Filename)
	}
	if f.SizeBytes != int64(len(content)) {
		t.Errorf("size = %d, want %d", f.SizeBytes, len(content))
	}
	if f.ChecksumSHA256 == "" {
		t.Error("checksum must be recorded")
	}
	if !st.Exists(f.StorageKey) {
		t.Error("bytes must exist under the storage key")
	}

	row, rc, err := files.OpenContent(f.ID)
	if err != nil {
		t.Fatalf("open content: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(got) != content {
		t.Errorf("downloaded %q, want %q", got, content)
	}
	if row.MimeType != "image/jpeg" {
		t.Errorf("mime = %q", row.MimeType)
	}
}

func TestUploadRejections(t *testing.T) {
	files, defects, _ := setupFiles(t)
	mgr := seedUser(t, files.DB, rbac.RoleManager)
	obs := seedUser(t, files.DB, rbac.RoleObserver)
	p, o := seedProjectObject(t, files.DB)
	d := createDefect(t, defects, asSession(mgr), p, o, "upload target")

	if _, err := files.Upload(asSession(obs), d.ID, "a.txt", "text/plain", 4, strings.NewReader("data")); err != ErrForbidden {
		t.Errorf("observer upload: err = %v, want ErrForbidden", err)
	}
	if _, err := files.Upload(asSession(mgr), d.ID, "a.txt", "text/plain", 0, strings.NewReader("")); err != ErrTooLarge {
		t.Errorf("empty upload: err = %v, want ErrTooLarge", err)
	}
	if _, err := files.Upload(asSession(mgr), d.ID, "a.txt", "text/plain", MaxUploadBytes+1, strings.NewReader("x")); err != ErrTooLarge {
		t.Errorf("oversized upload: err = %v, want ErrTooLarge", err)
	}
	if _, err := files.Upload(asSession(mgr), 9999, "a.txt", "text/plain", 4, strings.NewReader("data")); err != ErrNotFound {
		t.Errorf("missing defect: err = %v, want ErrNotFound", err)
	}

	var n int64
	files.DB.Model(&models.File{}).Count(&n)
	if n != 0 {
		t.Errorf("file rows = %d, want 0 after rejected uploads", n)
	}
}

func TestMetadataWithoutBytesIsNotFound(t *testing.T) {
	files, defects, st := setupFiles(t)
	mgr := seedUser(t, files.DB, rbac.RoleManager)
	p, o := seedProjectObject(t, files.DB)
	d := createDefect(t, defects, asSession(mgr), p, o, "orphan meta")

	f, err := files.Upload(asSession(mgr), d.ID, "gone.bin", "application/octet-stream", 4, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := st.Remove(f.StorageKey); err != nil {
		t.Fatalf("remove bytes: %v", err)
	}
	if _, _, err := files.OpenContent(f.ID); err != ErrNotFound {
		t.Errorf("open with missing bytes: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesRowAndBytes(t *testing.T) {
	files, defects, st := setupFiles(t)
	mgr := seedUser(t, files.DB, rbac.RoleManager)
	uploader := seedUser(t, files.DB, rbac.RoleEngineer)
	other := seedUser(t, files.DB, rbac.RoleEngineer)
	p, o := seedProjectObject(t, files.DB)
	d := createDefect(t, defects, asSession(mgr), p, o, "delete file")

	f, err := files.Upload(asSession(uploader), d.ID, "doc.pdf", "application/pdf", 4, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := files.Delete(asSession(other), f.ID); err != ErrForbidden {
		t.Errorf("non-owner engineer delete: err = %v, want ErrForbidden", err)
	}
	if err := files.Delete(asSession(uploader), f.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if st.Exists(f.StorageKey) {
		t.Error("bytes must be removed")
	}
	var n int64
	files.DB.Model(&models.File{}).Where("id = ?", f.ID).Count(&n)
	if n != 0 {
		t.Error("row must be gone after a clean delete")
	}
}

func TestSweepCleansTombstones(t *testing.T) {
	files, defects, st := setupFiles(t)
	mgr := seedUser(t, files.DB, rbac.RoleManager)
	p, o := seedProjectObject(t, files.DB)
	d := createDefect(t, defects, asSession(mgr), p, o, "sweep")

	f, err := files.Upload(asSession(mgr), d.ID, "stale.bin", "application/octet-stream", 4, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	// simulate a delete that tombstoned the row but never removed the bytes
	now := files.Now()
	if err := files.DB.Model(&models.File{}).Where("id = ?", f.ID).Update("deleted_at", now).Error; err != nil {
		t.Fatalf("tombstone: %v", err)
	}

	list, _ := files.List(d.ID)
	if len(list) != 0 {
		t.Error("tombstoned file must not appear in listings")
	}

	cleaned, err := files.Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if cleaned != 1 {
		t.Errorf("cleaned = %d, want 1", cleaned)
	}
	if st.Exists(f.StorageKey) {
		t.Error("sweep must remove the bytes")
	}
	var n int64
	files.DB.Model(&models.File{}).Count(&n)
	if n != 0 {
		t.Error("sweep must drop the tombstoned row")
	}
}
