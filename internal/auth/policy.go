package auth

import (
	"strings"

	"github.com/spec-kit/crm-access/internal/domain"
)

// RouteRule restricts every path under Prefix to the listed roles.
type RouteRule struct {
	Prefix string
	Roles  []domain.StaffRole
}

// RouteTable is an ordered list of route rules; the first matching prefix
// wins and unmatched paths are public.
type RouteTable struct {
	rules []compiledRule
}

type compiledRule struct {
	prefix string
	roles  roleSet
}

// NewRouteTable compiles rules in the given order.
func NewRouteTable(rules ...RouteRule) *RouteTable {
	table := &RouteTable{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		table.rules = append(table.rules, compiledRule{
			prefix: strings.TrimRight(rule.Prefix, "/"),
			roles:  newRoleSet(rule.Roles...),
		})
	}
	return table
}

// DefaultRouteTable protects the admin API, the rest of the API, and the
// session endpoints that need an identity.
func DefaultRouteTable() *RouteTable {
	return NewRouteTable(
		RouteRule{Prefix: "/api/admin", Roles: []domain.StaffRole{domain.StaffRoleAdmin}},
		RouteRule{Prefix: "/api", Roles: domain.AllStaffRoles},
		RouteRule{Prefix: "/auth/me", Roles: domain.AllStaffRoles},
		RouteRule{Prefix: "/auth/logout", Roles: domain.AllStaffRoles},
	)
}

// Protected reports whether path matches a rule.
func (t *RouteTable) Protected(path string) bool {
	_, ok := t.match(path)
	return ok
}

// Allows reports whether role may access path. Public paths allow everyone.
func (t *RouteTable) Allows(path string, role domain.StaffRole) bool {
	rule, ok := t.match(path)
	if !ok {
		return true
	}
	return rule.roles.has(role)
}

// match compares on segment boundaries so "/api" does not cover "/apiary".
// Comparison ignores case because the router does too.
func (t *RouteTable) match(path string) (compiledRule, bool) {
	if t == nil {
		return compiledRule{}, false
	}
	for _, rule := range t.rules {
		if hasSegmentPrefix(path, rule.prefix) {
			return rule, true
		}
	}
	return compiledRule{}, false
}

func hasSegmentPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	if len(path) < len(prefix) || !strings.EqualFold(path[:len(prefix)], prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
