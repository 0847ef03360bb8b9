package auth

import "strings"

type Role string

const (
	RoleAdmin       Role = "admin"
	RoleHR          Role = "hr"
	RoleHoD         Role = "hod"
	RoleLineManager Role = "line_manager"
	RoleEmployee    Role = "employee"
)

var roleAliases = map[string]Role{
	"admin":              RoleAdmin,
	"administrator":      RoleAdmin,
	"superadmin":         RoleAdmin,
	"hr":                 RoleHR,
	"hr_manager":         RoleHR,
	"human_resources":    RoleHR,
	"hod":                RoleHoD,
	"head_of_department": RoleHoD,
	"line_manager":       RoleLineManager,
	"linemanager":        RoleLineManager,
	"manager":            RoleLineManager,
	"employee":           RoleEmployee,
	"staff":              RoleEmployee,
}

var roleDisplayNames = map[Role]string{
	RoleAdmin:       "Admin",
	RoleHR:          "HR",
	RoleHoD:         "HoD",
	RoleLineManager: "Line Manager",
	RoleEmployee:    "Employee",
}

// ParseRole normalizes upstream spellings such as "HR", "HoD",
// "LINE_MANAGER" or "Line Manager". Unknown values yield "".
func ParseRole(raw string) Role {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	return roleAliases[key]
}

func (r Role) DisplayName() string {
	if name, ok := roleDisplayNames[r]; ok {
		return name
	}
	return string(r)
}

// Privileged reports whether the role may act on other people's evaluations.
func (r Role) Privileged() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleHoD, RoleLineManager:
		return true
	}
	return false
}
