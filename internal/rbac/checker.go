package rbac

import (
	"context"
	"strings"
)

// Checker answers whether a role holds a permission. A grant is an exact
// permission, "*" for everything, or "resource:*" for every action on a resource.
type Checker struct {
	grants map[string][]string
}

// NewChecker uses RolePermissions when rp is nil.
func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{grants: rp}
}

func (c *Checker) Has(role, perm string) bool {
	for _, g := range c.grants[role] {
		if grants(g, perm) {
			return true
		}
	}
	return false
}

func grants(grant, perm string) bool {
	switch {
	case grant == "*", grant == perm:
		return true
	case strings.HasSuffix(grant, ":*"):
		return strings.HasPrefix(perm, strings.TrimSuffix(grant, "*"))
	}
	return false
}

type roleKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext returns "" for anonymous requests.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
