package service

import (
	"errors"
	"io"
	"time"

	"gorm.io/gorm"

	"buildtrack/internal/auth"
	"buildtrack/internal/models"
	"buildtrack/internal/storage"
	"buildtrack/internal/workflow"
)

// MaxUploadBytes is the hard cap on a single attachment.
const MaxUploadBytes = 20 << 20

// Files manages attachment metadata and the backing byte store. Metadata and
// bytes are not transactionally coupled, so deletes go through a tombstone:
// the row is marked first, bytes are removed, and only then is the row
// dropped. Sweep retries removals that failed mid-flight.
type Files struct {
	DB    *gorm.DB
	Store *storage.Store
	Now   func() time.Time
}

func NewFiles(db *gorm.DB, store *storage.Store) *Files {
	return &Files{DB: db, Store: store, Now: time.Now}
}

func (s *Files) Upload(sess auth.Session, defectID uint, filename, mimeType string, size int64, r io.Reader) (*models.File, error) {
	if !workflow.CanCreateDefectResource(sess) {
		return nil, ErrForbidden
	}
	if size <= 0 || size > MaxUploadBytes {
		return nil, ErrTooLarge
	}
	var n int64
	if err := s.DB.Model(&models.Defect{}).Where("id = ?", defectID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	key := storage.MakeKey(defectID, filename)
	written, sum, err := s.Store.Save(key, io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if written == 0 || written > MaxUploadBytes {
		_ = s.Store.Remove(key)
		return nil, ErrTooLarge
	}
	f := models.File{
		DefectID:       defectID,
		UploaderID:     sess.ID,
		Filename:       storage.SafeName(filename),
		StorageKey:     key,
		MimeType:       mimeType,
		SizeBytes:      written,
		ChecksumSHA256: sum,
		CreatedAt:      s.Now(),
	}
	if err := s.DB.Create(&f).Error; err != nil {
		_ = s.Store.Remove(key)
		return nil, err
	}
	return &f, nil
}

// List returns live attachment metadata for a defect, oldest first.
func (s *Files) List(defectID uint) ([]models.File, error) {
	rows := []models.File{}
	err := s.DB.Where("defect_id = ? AND deleted_at IS NULL", defectID).
		Order("created_at asc").Find(&rows).Error
	return rows, err
}

func (s *Files) Get(id uint) (*models.File, error) {
	var f models.File
	err := s.DB.Where("id = ? AND deleted_at IS NULL", id).First(&f).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// OpenContent returns the metadata row together with a reader over the
// stored bytes. Metadata without backing bytes reports ErrNotFound.
func (s *Files) OpenContent(id uint) (*models.File, io.ReadCloser, error) {
	f, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.Store.Open(f.StorageKey)
	if err != nil {
		return nil, nil, ErrNotFound
	}
	return f, rc, nil
}

// Delete tombstones the row, removes the bytes and then drops the row. If
// byte removal fails the tombstone stays behind, invisible to listings,
// until a later Sweep succeeds.
func (s *Files) Delete(sess auth.Session, id uint) error {
	f, err := s.Get(id)
	if err != nil {
		return err
	}
	if !workflow.CanTouchOwned(sess, f.UploaderID) {
		return ErrForbidden
	}
	now := s.Now()
	if err := s.DB.Model(f).Update("deleted_at", now).Error; err != nil {
		return err
	}
	if err := s.Store.Remove(f.StorageKey); err != nil {
		return nil
	}
	return s.DB.Delete(&models.File{}, f.ID).Error
}

// Sweep retries byte removal for tombstoned rows and drops the rows whose
// bytes are gone. Returns the number of rows cleaned up.
func (s *Files) Sweep() (int, error) {
	var rows []models.File
	if err := s.DB.Where("deleted_at IS NOT NULL").Find(&rows).Error; err != nil {
		return 0, err
	}
	cleaned := 0
	for _, f := range rows {
		if err := s.Store.Remove(f.StorageKey); err != nil {
			continue
		}
		if err := s.DB.Delete(&models.File{}, f.ID).Error; err != nil {
			continue
		}
		cleaned++
	}
	return cleaned, nil
}
