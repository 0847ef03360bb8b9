package auth

import "testing"

func TestRolePermissionsSubset(t *testing.T) {
	allowed := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		allowed[perm] = struct{}{}
	}

	for role, perms := range RolePermissions {
		if len(perms) == 0 {
			t.Fatalf("role %s has no permissions", role)
		}
		for _, perm := range perms {
			if _, ok := allowed[perm]; !ok {
				t.Fatalf("role %s has unknown permission %s", role, perm)
			}
		}
	}
}

func TestDefaultPermissionsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for _, perm := range DefaultPermissions {
		if _, ok := seen[perm]; ok {
			t.Fatalf("duplicate permission %s", perm)
		}
		seen[perm] = struct{}{}
	}
}

func TestCapabilitiesForRole(t *testing.T) {
	hr := CapabilitiesFor(RoleHR)
	if !hr.CanManageOrg() || !hr.CanImport() || !hr.CanManagePlacements() {
		t.Fatalf("hr should manage org, placements and imports: %v", hr.List())
	}

	employee := CapabilitiesFor(RoleEmployee)
	if employee.CanManageOrg() || employee.CanManageEvaluations() {
		t.Fatalf("employee should not manage org or evaluations: %v", employee.List())
	}
	if !employee.Can(PermSelfEvaluation) {
		t.Fatal("employee should be able to run a self evaluation")
	}

	unknown := CapabilitiesFor(Role("intern"))
	if len(unknown.List()) != 0 {
		t.Fatalf("unknown role should have no permissions, got %v", unknown.List())
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"HR":                 RoleHR,
		"HoD":                RoleHoD,
		"LINE_MANAGER":       RoleLineManager,
		"Line Manager":       RoleLineManager,
		"head-of-department": RoleHoD,
		" employee ":         RoleEmployee,
		"Admin":              RoleAdmin,
		"intern":             "",
	}
	for raw, want := range cases {
		if got := ParseRole(raw); got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", raw, got, want)
		}
	}
}
