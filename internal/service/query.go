package service

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"buildtrack/internal/models"
)

// ListFilters are AND-combined listing constraints. Zero values mean "no
// constraint".
type ListFilters struct {
	Status     string
	Priority   string
	ProjectID  uint
	ObjectID   uint
	StageID    uint
	AssigneeID string
	Q          string // case-insensitive substring on title
}

type ListOptions struct {
	Filters ListFilters
	SortBy  string // created_at (default), due_date, priority
	SortDir string // asc, desc (default)
	Page    int    // 1-based
	Limit   int
}

// DefectListItem is the listing projection, joined with the assignee name.
type DefectListItem struct {
	ID           uint       `json:"id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	ProjectID    uint       `json:"project_id"`
	ObjectID     uint       `json:"object_id"`
	StageID      *uint      `json:"stage_id"`
	AssigneeID   *string    `json:"assignee_id"`
	AssigneeName *string    `json:"assignee_name"`
	DueDate      *time.Time `json:"due_date"`
	CreatedAt    time.Time  `json:"created_at"`
}

var sortColumns = map[string]string{
	"created_at": "defects.created_at",
	"due_date":   "defects.due_date",
	"priority":   "defects.priority",
}

func (o *ListOptions) normalize() {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = 20
	}
	if _, ok := sortColumns[o.SortBy]; !ok {
		o.SortBy = "created_at"
	}
	if strings.ToLower(o.SortDir) != "asc" {
		o.SortDir = "desc"
	} else {
		o.SortDir = "asc"
	}
}

func (s *Defects) applyFilters(q *gorm.DB, f ListFilters) *gorm.DB {
	if f.Status != "" {
		q = q.Where("defects.status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("defects.priority = ?", f.Priority)
	}
	if f.ProjectID != 0 {
		q = q.Where("defects.project_id = ?", f.ProjectID)
	}
	if f.ObjectID != 0 {
		q = q.Where("defects.object_id = ?", f.ObjectID)
	}
	if f.StageID != 0 {
		q = q.Where("defects.stage_id = ?", f.StageID)
	}
	if f.AssigneeID != "" {
		q = q.Where("defects.assignee_id = ?", f.AssigneeID)
	}
	if f.Q != "" {
		q = q.Where("LOWER(defects.title) LIKE ?", "%"+strings.ToLower(f.Q)+"%")
	}
	return q
}

// List returns one page of defects matching the filters. Ties on the sort
// key fall back to storage order.
func (s *Defects) List(opt ListOptions) ([]DefectListItem, error) {
	opt.normalize()
	items := []DefectListItem{}
	q := s.DB.Model(&models.Defect{}).
		Select("defects.id, defects.title, defects.status, defects.priority, defects.project_id, defects.object_id, defects.stage_id, defects.assignee_id, users.full_name AS assignee_name, defects.due_date, defects.created_at").
		Joins("LEFT JOIN users ON users.id = defects.assignee_id")
	q = s.applyFilters(q, opt.Filters)
	err := q.Order(sortColumns[opt.SortBy] + " " + opt.SortDir).
		Limit(opt.Limit).
		Offset((opt.Page - 1) * opt.Limit).
		Scan(&items).Error
	return items, err
}

// ExportRows returns full defect rows for report export, same filters and
// ordering as List but with the export page cap applied by the caller.
func (s *Defects) ExportRows(opt ListOptions) ([]models.Defect, error) {
	opt.normalize()
	rows := []models.Defect{}
	q := s.applyFilters(s.DB.Model(&models.Defect{}), opt.Filters)
	err := q.Order(sortColumns[opt.SortBy] + " " + opt.SortDir).
		Limit(opt.Limit).
		Offset((opt.Page - 1) * opt.Limit).
		Find(&rows).Error
	return rows, err
}

// Stats is the dashboard aggregate, recomputed on every call.
type Stats struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByPriority map[string]int64 `json:"byPriority"`
	ByProject  map[uint]int64   `json:"byProject"`
	Overdue    int64            `json:"overdue"`
}

func (s *Defects) Stats() (*Stats, error) {
	out := &Stats{
		ByStatus:   map[string]int64{},
		ByPriority: map[string]int64{},
		ByProject:  map[uint]int64{},
	}
	if err := s.DB.Model(&models.Defect{}).Count(&out.Total).Error; err != nil {
		return nil, err
	}
	type kv struct {
		K string
		C int64
	}
	var rows []kv
	if err := s.DB.Model(&models.Defect{}).Select("status AS k, COUNT(*) AS c").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out.ByStatus[r.K] = r.C
	}
	rows = nil
	if err := s.DB.Model(&models.Defect{}).Select("priority AS k, COUNT(*) AS c").Group("priority").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out.ByPriority[r.K] = r.C
	}
	type pv struct {
		K uint
		C int64
	}
	var prows []pv
	if err := s.DB.Model(&models.Defect{}).Select("project_id AS k, COUNT(*) AS c").Group("project_id").Scan(&prows).Error; err != nil {
		return nil, err
	}
	for _, r := range prows {
		out.ByProject[r.K] = r.C
	}
	err := s.DB.Model(&models.Defect{}).
		Where("status NOT IN ?", []string{models.StatusClosed, models.StatusCancelled}).
		Where("closed_at IS NULL").
		Where("due_date < ?", s.Now()).
		Count(&out.Overdue).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
