// Package service implements the defect lifecycle: creation, validated
// patches with audit history, comments, attachments and reporting queries.
package service

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"buildtrack/internal/auth"
	"buildtrack/internal/models"
	"buildtrack/internal/workflow"
)

// Defects applies validated mutations to defects and records their audit
// trail. Now is injected so closedAt and overdue math are testable.
type Defects struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewDefects(db *gorm.DB) *Defects {
	return &Defects{DB: db, Now: time.Now}
}

type CreateDefectInput struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Priority    string     `json:"priority"`
	ProjectID   uint       `json:"project_id"`
	ObjectID    uint       `json:"object_id"`
	StageID     *uint      `json:"stage_id"`
	AssigneeID  *string    `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

// DefectPatch is a partial update. Absent fields are left alone; nullable
// fields present with null are cleared. ProjectID, ObjectID and CreatorID
// are immutable after creation and have no patch field.
type DefectPatch struct {
	Title       *string   `json:"title"`
	Description OptString `json:"description"`
	Priority    *string   `json:"priority"`
	StageID     OptUint   `json:"stage_id"`
	AssigneeID  OptString `json:"assignee_id"`
	DueDate     OptTime   `json:"due_date"`
	Status      *string   `json:"status"`
}

func (s *Defects) Create(sess auth.Session, in CreateDefectInput) (*models.Defect, error) {
	if !workflow.CanCreateDefectResource(sess) {
		return nil, ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || in.ProjectID == 0 || in.ObjectID == 0 {
		return nil, ErrInvalid
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	now := s.Now()
	d := models.Defect{
		Title:       title,
		Description: in.Description,
		Status:      models.StatusNew,
		Priority:    priority,
		ProjectID:   in.ProjectID,
		ObjectID:    in.ObjectID,
		StageID:     in.StageID,
		AssigneeID:  in.AssigneeID,
		CreatorID:   sess.ID,
		DueDate:     in.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&d).Error; err != nil {
			return err
		}
		actor := sess.ID
		return tx.Create(&models.DefectHistory{
			DefectID:  d.ID,
			ActorID:   &actor,
			Action:    models.ActionCreated,
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Defects) Get(id uint) (*models.Defect, error) {
	var d models.Defect
	if err := s.DB.First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Update stages every present patch field, validates a status change against
// the transition table and applies everything in one transaction together
// with exactly one history row. A rejected transition aborts the whole
// patch; an empty patch is a no-op that writes nothing.
func (s *Defects) Update(sess auth.Session, id uint, p DefectPatch) (*models.Defect, error) {
	d, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !workflow.CanMutateDefect(sess, d) {
		return nil, ErrForbidden
	}

	updates := map[string]any{}
	var changes []models.FieldChange
	stage := func(column string, from, to any) {
		updates[column] = to
		changes = append(changes, models.FieldChange{Field: column, From: from, To: to})
	}

	if p.Title != nil {
		stage("title", d.Title, *p.Title)
	}
	if p.Description.Set {
		stage("description", ptrVal(d.Description), ptrVal(p.Description.Value))
	}
	if p.Priority != nil {
		stage("priority", d.Priority, *p.Priority)
	}
	if p.StageID.Set {
		stage("stage_id", ptrVal(d.StageID), ptrVal(p.StageID.Value))
	}
	if p.AssigneeID.Set {
		stage("assignee_id", ptrVal(d.AssigneeID), ptrVal(p.AssigneeID.Value))
	}
	if p.DueDate.Set {
		stage("due_date", ptrVal(d.DueDate), ptrVal(p.DueDate.Value))
	}

	statusChanged := false
	if p.Status != nil {
		next := *p.Status
		if !workflow.CanTransition(d.Status, next) {
			return nil, ErrInvalidTransition
		}
		stage("status", d.Status, next)
		statusChanged = true
		if next == models.StatusClosed {
			updates["closed_at"] = s.Now()
		}
	}

	if len(updates) == 0 {
		return d, nil
	}

	now := s.Now()
	updates["updated_at"] = now
	action := models.ActionUpdated
	if statusChanged {
		action = models.ActionStatusChanged
	}
	details, err := json.Marshal(map[string]any{"changes": changes})
	if err != nil {
		return nil, err
	}
	actor := sess.ID
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Defect{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(&models.DefectHistory{
			DefectID:  d.ID,
			ActorID:   &actor,
			Action:    action,
			Details:   details,
			CreatedAt: now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(d.ID)
}

// Delete hard-deletes a defect and records a final history row. The audit
// trail deliberately outlives the defect.
func (s *Defects) Delete(sess auth.Session, id uint) error {
	if !workflow.CanDeleteDefect(sess) {
		return ErrForbidden
	}
	d, err := s.Get(id)
	if err != nil {
		return err
	}
	actor := sess.ID
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Defect{}, d.ID).Error; err != nil {
			return err
		}
		return tx.Create(&models.DefectHistory{
			DefectID:  d.ID,
			ActorID:   &actor,
			Action:    models.ActionDeleted,
			CreatedAt: s.Now(),
		}).Error
	})
}

// History returns the audit trail, newest first.
func (s *Defects) History(defectID uint) ([]models.DefectHistory, error) {
	var rows []models.DefectHistory
	err := s.DB.Where("defect_id = ?", defectID).Order("created_at desc, id desc").Find(&rows).Error
	return rows, err
}

func ptrVal[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
