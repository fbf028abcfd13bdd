package todo

import (
	"github.com/eleven-am/todoapi/internal/model"
)

const (
	// Unlimited marks a role without a todo ceiling
	Unlimited = -1
	// CommonQuota is the most todos a COMMON user may hold at once
	CommonQuota = 5
)

// MaxQuota returns how many todos a user with role may own, or Unlimited
func MaxQuota(role model.Role) int {
	switch role {
	case model.RolePremium, model.RoleAdmin:
		return Unlimited
	default:
		return CommonQuota
	}
}

// CheckQuota reports ErrQuotaExceeded when a user with role already owns
// as many todos as the role allows.
func CheckQuota(role model.Role, owned int) error {
	limit := MaxQuota(role)
	if limit != Unlimited && owned >= limit {
		return ErrQuotaExceeded
	}
	return nil
}
