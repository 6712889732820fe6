package models

import (
	"time"

	"gorm.io/datatypes"
)

// Defect statuses. Legal moves between them are defined by the workflow
// transition table; closed and cancelled are terminal.
const (
	StatusNew        = "new"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusClosed     = "closed"
	StatusCancelled  = "cancelled"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

type Defect struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Description *string    `json:"description"`
	Status      string     `gorm:"not null;default:'new';index" json:"status"`
	Priority    string     `gorm:"not null;default:'medium';index" json:"priority"`
	ProjectID   uint       `gorm:"not null;index" json:"project_id"`
	Project     *Project   `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	ObjectID    uint       `gorm:"not null;index" json:"object_id"`
	Object      *Object    `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
	StageID     *uint      `gorm:"index" json:"stage_id"`
	Stage       *Stage     `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	AssigneeID  *string    `gorm:"type:uuid;index" json:"assignee_id"`
	Assignee    *User      `gorm:"foreignKey:AssigneeID;constraint:OnDelete:SET NULL" json:"-"`
	CreatorID   string     `gorm:"type:uuid;not null" json:"creator_id"`
	DueDate     *time.Time `json:"due_date"`
	ClosedAt    *time.Time `json:"closed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// DefectHistory is the append-only audit trail. DefectID carries no foreign
// key constraint so the trail survives defect deletion.
type DefectHistory struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	DefectID  uint           `gorm:"not null;index" json:"defect_id"`
	ActorID   *string        `gorm:"type:uuid" json:"actor_id"`
	Action    string         `gorm:"not null" json:"action"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

func (DefectHistory) TableName() string { return "defect_history" }

// History actions.
const (
	ActionCreated       = "created"
	ActionUpdated       = "updated"
	ActionStatusChanged = "status_changed"
	ActionDeleted       = "deleted"
)

// FieldChange is one before/after entry in a history row's details.
type FieldChange struct {
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

type Comment struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	DefectID  uint       `gorm:"not null;index" json:"defect_id"`
	Defect    *Defect    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	AuthorID  string     `gorm:"type:uuid;not null" json:"author_id"`
	Content   string     `gorm:"not null" json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// File is attachment metadata. The bytes live in external storage under
// StorageKey. DeletedAt marks a tombstone: the row is invisible to listings
// while byte removal is pending, and is hard-deleted once the bytes are gone.
type File struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	DefectID       uint       `gorm:"not null;index" json:"defect_id"`
	Defect         *Defect    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UploaderID     string     `gorm:"type:uuid;not null" json:"uploader_id"`
	Filename       string     `gorm:"not null" json:"filename"`
	StorageKey     string     `gorm:"uniqueIndex;not null" json:"storage_key"`
	MimeType       string     `gorm:"not null" json:"mime_type"`
	SizeBytes      int64      `gorm:"not null" json:"size_bytes"`
	ChecksumSHA256 string     `gorm:"not null" json:"checksum_sha256"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `gorm:"index" json:"-"`
}

// AllModels is the AutoMigrate set in dependency order.
func AllModels() []any {
	return []any{
		&RoleRow{}, &User{}, &Project{}, &Object{}, &Stage{},
		&Defect{}, &DefectHistory{}, &Comment{}, &File{},
	}
}
