package auth

import "github.com/spec-kit/crm-access/internal/domain"

// roleSet is an allow-list of staff roles.
type roleSet map[domain.StaffRole]struct{}

func newRoleSet(roles ...domain.StaffRole) roleSet {
	set := make(roleSet, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}

func (s roleSet) has(role domain.StaffRole) bool {
	_, ok := s[role]
	return ok
}

var (
	// Exempt from the single-resource ownership check.
	leadOwnershipBypass = newRoleSet(domain.StaffRoleCLevel, domain.StaffRoleAdmin)

	// Receive unfiltered lead lists. Deliberately wider than
	// leadOwnershipBypass: managers see every lead in listings but are held
	// to ownership on single-lead access.
	leadListBypass = newRoleSet(domain.StaffRoleCLevel, domain.StaffRoleAdmin, domain.StaffRoleManager)
)

// IsPrivilegedForLeads reports whether role may read or modify any lead
// regardless of assignment.
func IsPrivilegedForLeads(role domain.StaffRole) bool {
	return leadOwnershipBypass.has(role)
}

// SeesAllLeads reports whether lead listings for role are left unfiltered.
func SeesAllLeads(role domain.StaffRole) bool {
	return leadListBypass.has(role)
}

// IsAdmin reports whether role may use administrative routes.
func IsAdmin(role domain.StaffRole) bool {
	return role == domain.StaffRoleAdmin
}
