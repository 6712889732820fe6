package service

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"buildtrack/internal/auth"
	"buildtrack/internal/models"
	"buildtrack/internal/workflow"
)

// Comments is ownership-scoped CRUD for defect comments. Deletion is soft:
// the row keeps its content but disappears from every listing path.
type Comments struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewComments(db *gorm.DB) *Comments {
	return &Comments{DB: db, Now: time.Now}
}

func (s *Comments) Create(sess auth.Session, defectID uint, content string) (*models.Comment, error) {
	if !workflow.CanCreateDefectResource(sess) {
		return nil, ErrForbidden
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalid
	}
	var n int64
	if err := s.DB.Model(&models.Defect{}).Where("id = ?", defectID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	now := s.Now()
	c := models.Comment{
		DefectID:  defectID,
		AuthorID:  sess.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns live comments for a defect, oldest first.
func (s *Comments) List(defectID uint) ([]models.Comment, error) {
	rows := []models.Comment{}
	err := s.DB.Where("defect_id = ? AND deleted_at IS NULL", defectID).
		Order("created_at asc").Find(&rows).Error
	return rows, err
}

func (s *Comments) Get(id uint) (*models.Comment, error) {
	var c models.Comment
	err := s.DB.Where("id = ? AND deleted_at IS NULL", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Comments) Edit(sess auth.Session, id uint, content string) (*models.Comment, error) {
	c, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanTouchOwned(sess, c.AuthorID) {
		return nil, ErrForbidden
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalid
	}
	c.Content = content
	c.UpdatedAt = s.Now()
	if err := s.DB.Save(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Comments) SoftDelete(sess auth.Session, id uint) error {
	c, err := s.Get(id)
	if err != nil {
		return err
	}
	if !workflow.CanTouchOwned(sess, c.AuthorID) {
		return ErrForbidden
	}
	now := s.Now()
	return s.DB.Model(c).Update("deleted_at", now).Error
}
