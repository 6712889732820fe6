// Package workflow holds the defect status state machine and the
// authorization rules for mutating defects and their sub-resources.
package workflow

import (
	"buildtrack/internal/auth"
	"buildtrack/internal/models"
	"buildtrack/internal/rbac"
)

// transitions maps each status to the statuses reachable from it. Closed and
// cancelled have no exits: a wrongly closed defect is corrected by raising a
// new one, not by reopening.
var transitions = map[string][]string{
	models.StatusNew:        {models.StatusInProgress, models.StatusCancelled},
	models.StatusInProgress: {models.StatusReview, models.StatusCancelled},
	models.StatusReview:     {models.StatusClosed, models.StatusInProgress, models.StatusCancelled},
	models.StatusClosed:     {},
	models.StatusCancelled:  {},
}

// CanTransition reports whether a defect may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status has no outgoing transitions.
func Terminal(status string) bool {
	next, ok := transitions[status]
	return ok && len(next) == 0
}

// ValidStatus reports whether status is a known workflow state.
func ValidStatus(status string) bool {
	_, ok := transitions[status]
	return ok
}

// CanMutateDefect decides whether the session may modify the given defect.
// Admins and managers always may; an engineer only when they are the current
// assignee or the creator. The check runs against the freshly loaded row
// because reassignment changes who is authorized between requests.
func CanMutateDefect(s auth.Session, d *models.Defect) bool {
	if rbac.Permits(s.Role, rbac.RoleAdmin, rbac.RoleManager) {
		return true
	}
	if s.Role != rbac.RoleEngineer {
		return false
	}
	if d.AssigneeID != nil && *d.AssigneeID == s.ID {
		return true
	}
	return d.CreatorID == s.ID
}

// CanTouchOwned decides whether the session may edit or delete an owned
// sub-resource (comment, file). Owners may, as may admins and managers;
// engineers never touch other people's comments or files regardless of their
// relation to the defect.
func CanTouchOwned(s auth.Session, ownerID string) bool {
	return s.ID == ownerID || rbac.Permits(s.Role, rbac.RoleAdmin, rbac.RoleManager)
}

// CanCreateDefectResource reports whether the session may create defects,
// comments or files. Observers are read-only across the whole surface.
func CanCreateDefectResource(s auth.Session) bool {
	return rbac.Permits(s.Role, rbac.RoleAdmin, rbac.RoleManager, rbac.RoleEngineer)
}

// CanDeleteDefect reports whether the session may hard-delete a defect.
// There is no engineer self-service path.
func CanDeleteDefect(s auth.Session) bool {
	return rbac.Permits(s.Role, rbac.RoleAdmin, rbac.RoleManager)
}
