// Package access decides which roles may reach which resources.
package access

import "github.com/trezcool/ibdp/core/user"

type Resource string

// Resources
const (
	Dashboard     Resource = "dashboard"
	Students      Resource = "students"
	CAS           Resource = "cas"
	Assessments   Resource = "assessments"
	AIInsights    Resource = "ai-insights"
	Notifications Resource = "notifications"
	Reports       Resource = "reports"
	Admin         Resource = "admin"
)

// Resources in navigation order.
var Resources = []Resource{Dashboard, Students, CAS, Assessments, AIInsights, Notifications, Reports, Admin}

type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "unauthenticated"
	default:
		return "forbidden"
	}
}

// Table maps each protected resource to the roles allowed to reach it.
type Table map[Resource][]user.Role

var (
	everyone   = []user.Role{user.RoleStudent, user.RoleTeacher, user.RoleCoordinator, user.RoleAdmin}
	staff      = []user.Role{user.RoleTeacher, user.RoleCoordinator, user.RoleAdmin}
	adminsOnly = []user.Role{user.RoleAdmin}
)

// DefaultTable returns the application access table.
func DefaultTable() Table {
	return Table{
		Dashboard:     everyone,
		Students:      staff,
		CAS:           everyone,
		Assessments:   everyone,
		AIInsights:    everyone,
		Notifications: everyone,
		Reports:       staff,
		Admin:         adminsOnly,
	}
}

// Authorizer is immutable once built and safe for concurrent use.
type Authorizer struct {
	allowed map[Resource]map[user.Role]struct{}
}

func NewAuthorizer(table Table) *Authorizer {
	allowed := make(map[Resource]map[user.Role]struct{}, len(table))
	for res, roles := range table {
		set := make(map[user.Role]struct{}, len(roles))
		for _, role := range roles {
			set[role] = struct{}{}
		}
		allowed[res] = set
	}
	return &Authorizer{allowed: allowed}
}

// Decide is a pure function of (resource, role). An empty role means the caller is not authenticated.
// Unknown resources are denied.
func (a *Authorizer) Decide(res Resource, role user.Role) Decision {
	if role == "" {
		return DenyUnauthenticated
	}
	roles, ok := a.allowed[res]
	if !ok {
		return DenyForbidden
	}
	if _, ok := roles[role]; !ok {
		return DenyForbidden
	}
	return Allow
}

func (a *Authorizer) Allowed(res Resource, role user.Role) bool {
	return a.Decide(res, role) == Allow
}

type NavItem struct {
	Resource Resource `json:"resource"`
	Name     string   `json:"name"`
	Href     string   `json:"href"`
}

var navItems = []NavItem{
	{Resource: Dashboard, Name: "Dashboard", Href: "/dashboard"},
	{Resource: Students, Name: "Students", Href: "/students"},
	{Resource: CAS, Name: "CAS Activities", Href: "/cas"},
	{Resource: Assessments, Name: "Assessments", Href: "/assessments"},
	{Resource: AIInsights, Name: "AI Insights", Href: "/ai-insights"},
	{Resource: Notifications, Name: "Notifications", Href: "/notifications"},
	{Resource: Reports, Name: "Reports", Href: "/reports"},
	{Resource: Admin, Name: "Admin", Href: "/admin"},
}

// Navigation returns the navigation items role may reach, in display order.
func (a *Authorizer) Navigation(role user.Role) []NavItem {
	items := make([]NavItem, 0, len(navItems))
	for _, item := range navItems {
		if a.Allowed(item.Resource, role) {
			items = append(items, item)
		}
	}
	return items
}
