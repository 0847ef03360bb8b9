package org

import "evalconsole/internal/domain/auth"

// FilterEmployeeFields blanks sensitive fields the caller should not see.
// HR and admin see everything; others never see pay or identity data.
func FilterEmployeeFields(emp *Employee, user auth.UserContext) {
	switch user.Role {
	case auth.RoleHR, auth.RoleAdmin:
		return
	}
	emp.NationalID = ""
	emp.BankAccount = ""
	emp.Salary = nil
}
