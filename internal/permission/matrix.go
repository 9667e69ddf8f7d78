package permission

import "ncrtrack/internal/domain"

// roleMatrix is the static role → section-level grid. Roles are additive:
// a user holding several roles gets, per section, the strongest level any of
// them grants.
var roleMatrix = map[domain.Role]map[domain.Section]domain.Level{
	domain.RoleAdmin: {
		domain.SectionIntake:     domain.LevelEdit,
		domain.SectionQuality:    domain.LevelEdit,
		domain.SectionLeadership: domain.LevelEdit,
	},
	domain.RoleIntake: {
		domain.SectionIntake:     domain.LevelEdit,
		domain.SectionQuality:    domain.LevelView,
		domain.SectionLeadership: domain.LevelView,
	},
	domain.RoleQuality: {
		domain.SectionIntake:     domain.LevelView,
		domain.SectionQuality:    domain.LevelEdit,
		domain.SectionLeadership: domain.LevelView,
	},
	domain.RoleLeadership: {
		domain.SectionIntake:     domain.LevelView,
		domain.SectionQuality:    domain.LevelView,
		domain.SectionLeadership: domain.LevelEdit,
	},
	domain.RoleViewer: {
		domain.SectionIntake:     domain.LevelView,
		domain.SectionQuality:    domain.LevelView,
		domain.SectionLeadership: domain.LevelView,
	},
}

// rank orders levels for the merge. Higher wins.
func rank(l domain.Level) int {
	switch l {
	case domain.LevelEdit:
		return 2
	case domain.LevelView:
		return 1
	default:
		return 0
	}
}

// merge folds one role's grants into the accumulated per-section levels.
func merge(acc map[domain.Section]domain.Level, role domain.Role) {
	for section, level := range roleMatrix[role] {
		if rank(level) > rank(acc[section]) {
			acc[section] = level
		}
	}
}

func validRole(role domain.Role) bool {
	_, ok := roleMatrix[role]
	return ok
}
