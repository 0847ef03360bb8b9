package auth

const (
	PermEvaluationsRead   = "evaluations.read"
	PermEvaluationsWrite  = "evaluations.write"
	PermEvaluationsReport = "evaluations.report"
	PermSelfEvaluation    = "evaluations.self"
	PermEmployeesRead     = "core.employees.read"
	PermEmployeesWrite    = "core.employees.write"
	PermOrgRead           = "core.org.read"
	PermOrgWrite          = "core.org.write"
	PermPlacementsWrite   = "core.placements.write"
	PermUsersRead         = "core.users.read"
	PermImport            = "core.import"
	PermProfileWrite      = "profile.write"
	PermJournal           = "ops.journal"
)

var DefaultPermissions = []string{
	PermEvaluationsRead,
	PermEvaluationsWrite,
	PermEvaluationsReport,
	PermSelfEvaluation,
	PermEmployeesRead,
	PermEmployeesWrite,
	PermOrgRead,
	PermOrgWrite,
	PermPlacementsWrite,
	PermUsersRead,
	PermImport,
	PermProfileWrite,
	PermJournal,
}

var RolePermissions = map[Role][]string{
	RoleEmployee: {
		PermEvaluationsRead,
		PermEvaluationsReport,
		PermSelfEvaluation,
		PermOrgRead,
		PermProfileWrite,
	},
	RoleLineManager: {
		PermEvaluationsRead,
		PermEvaluationsWrite,
		PermEvaluationsReport,
		PermSelfEvaluation,
		PermEmployeesRead,
		PermOrgRead,
		PermUsersRead,
		PermProfileWrite,
	},
	RoleHoD: {
		PermEvaluationsRead,
		PermEvaluationsWrite,
		PermEvaluationsReport,
		PermSelfEvaluation,
		PermEmployeesRead,
		PermOrgRead,
		PermUsersRead,
		PermProfileWrite,
	},
	RoleHR: {
		PermEvaluationsRead,
		PermEvaluationsWrite,
		PermEvaluationsReport,
		PermSelfEvaluation,
		PermEmployeesRead,
		PermEmployeesWrite,
		PermOrgRead,
		PermOrgWrite,
		PermPlacementsWrite,
		PermUsersRead,
		PermImport,
		PermProfileWrite,
		PermJournal,
	},
	RoleAdmin: {
		PermEvaluationsRead,
		PermEvaluationsWrite,
		PermEvaluationsReport,
		PermEmployeesRead,
		PermEmployeesWrite,
		PermOrgRead,
		PermOrgWrite,
		PermPlacementsWrite,
		PermUsersRead,
		PermImport,
		PermProfileWrite,
		PermJournal,
	},
}

// Capabilities is the permission set of one session, evaluated once from the
// role. It drives UX pre-checks only; the remote API stays the authority.
type Capabilities struct {
	Role  Role
	perms map[string]struct{}
}

func CapabilitiesFor(role Role) Capabilities {
	perms := make(map[string]struct{}, len(RolePermissions[role]))
	for _, perm := range RolePermissions[role] {
		perms[perm] = struct{}{}
	}
	return Capabilities{Role: role, perms: perms}
}

func (c Capabilities) Can(perm string) bool {
	_, ok := c.perms[perm]
	return ok
}

func (c Capabilities) CanManageOrg() bool {
	return c.Can(PermOrgWrite)
}

func (c Capabilities) CanManageEvaluations() bool {
	return c.Can(PermEvaluationsWrite)
}

func (c Capabilities) CanManagePlacements() bool {
	return c.Can(PermPlacementsWrite)
}

func (c Capabilities) CanImport() bool {
	return c.Can(PermImport)
}

// List returns the granted permissions in DefaultPermissions order.
func (c Capabilities) List() []string {
	out := make([]string, 0, len(c.perms))
	for _, perm := range DefaultPermissions {
		if c.Can(perm) {
			out = append(out, perm)
		}
	}
	return out
}
