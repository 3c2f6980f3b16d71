package service

import (
	"strings"

	"github.com/pidb/catalog-api/internal/models"
)

// EditPolicy decides whether a user may modify catalog fields.
type EditPolicy interface {
	CanEdit(user models.UserInfo) bool
}

// AllowAuthenticated lets any logged-in user edit.
type AllowAuthenticated struct{}

func (AllowAuthenticated) CanEdit(user models.UserInfo) bool {
	return strings.TrimSpace(user.Username) != ""
}

// RoleAllowList restricts edits to a set of roles, compared case-insensitively.
type RoleAllowList struct {
	roles map[string]struct{}
}

func (p RoleAllowList) CanEdit(user models.UserInfo) bool {
	if strings.TrimSpace(user.Username) == "" {
		return false
	}
	_, ok := p.roles[strings.ToLower(strings.TrimSpace(user.Role))]
	return ok
}

// NewEditPolicy returns AllowAuthenticated when roles is empty.
func NewEditPolicy(roles []string) EditPolicy {
	if len(roles) == 0 {
		return AllowAuthenticated{}
	}
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			set[r] = struct{}{}
		}
	}
	if len(set) == 0 {
		return AllowAuthenticated{}
	}
	return RoleAllowList{roles: set}
}
