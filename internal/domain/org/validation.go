package org

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrUnknownLevel = errors.New("unknown organization level")
)

// ValidationError lists every failing field of one form.
type ValidationError struct {
	issues map[string]string
}

func (e *ValidationError) add(field, message string) {
	if e.issues == nil {
		e.issues = map[string]string{}
	}
	if _, seen := e.issues[field]; !seen {
		e.issues[field] = message
	}
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.issues))
	for field := range e.issues {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e.issues[field])
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Fields() map[string]string {
	out := make(map[string]string, len(e.issues))
	for k, v := range e.issues {
		out[k] = v
	}
	return out
}

func (e *ValidationError) err() error {
	if len(e.issues) == 0 {
		return nil
	}
	return e
}

var (
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{3,30}$`)
	codePattern     = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,20}$`)
)

const MinPasswordLength = 8

func ValidateUnit(u Unit) error {
	v := &ValidationError{}
	if _, ok := ParseLevel(string(u.Level)); !ok {
		v.add("level", ErrUnknownLevel.Error())
		return v
	}
	if strings.TrimSpace(u.Name) == "" {
		v.add("name", "name is required")
	}
	code := strings.TrimSpace(u.Code)
	switch {
	case code == "":
		v.add("code", "code is required")
	case !codePattern.MatchString(code):
		v.add("code", "code may only contain letters, digits, dashes and underscores")
	}
	if u.Level != LevelCompany && strings.TrimSpace(string(u.ParentID)) == "" {
		v.add(u.Level.ParentField(), "parent is required")
	}
	return v.err()
}

func ValidateEmployee(e Employee) error {
	v := &ValidationError{}
	if strings.TrimSpace(e.FirstName) == "" {
		v.add("first_name", "first name is required")
	}
	if strings.TrimSpace(e.LastName) == "" {
		v.add("last_name", "last name is required")
	}
	if strings.TrimSpace(e.EmployeeNumber) == "" {
		v.add("employee_number", "employee number is required")
	}
	if !emailPattern.MatchString(strings.TrimSpace(e.Email)) {
		v.add("email", "email is invalid")
	}
	if e.Phone != "" && !phonePattern.MatchString(e.Phone) {
		v.add("phone", "phone number is invalid")
	}
	return v.err()
}

func ValidatePlacement(p Placement) error {
	v := &ValidationError{}
	if p.EmployeeID == "" {
		v.add("employee_id", "employee is required")
	}
	if p.CompanyID == "" {
		v.add("company_id", "company is required")
	}
	if p.DepartmentID == "" {
		v.add("department_id", "department is required")
	}
	if p.SubSectionID != "" && p.SectionID == "" {
		v.add("section_id", "section is required when a sub-section is set")
	}
	if p.SectionID != "" && p.SubDepartmentID == "" {
		v.add("sub_department_id", "sub-department is required when a section is set")
	}
	if p.LineManagerID != "" && p.LineManagerID == p.EmployeeID {
		v.add("line_manager_id", "an employee cannot manage themselves")
	}
	return v.err()
}

func ValidateProfile(p ProfileUpdate) error {
	v := &ValidationError{}
	if p.Username != "" && !usernamePattern.MatchString(p.Username) {
		v.add("username", "username must be 3-30 letters, digits, dots or underscores")
	}
	if p.Email != "" && !emailPattern.MatchString(p.Email) {
		v.add("email", "email is invalid")
	}
	if p.Phone != "" && !phonePattern.MatchString(p.Phone) {
		v.add("phone", "phone number is invalid")
	}
	if p == (ProfileUpdate{}) {
		v.add("profile", "nothing to update")
	}
	return v.err()
}

func ValidatePasswordChange(p PasswordChange) error {
	v := &ValidationError{}
	if p.CurrentPassword == "" {
		v.add("current_password", "current password is required")
	}
	switch {
	case len(p.NewPassword) < MinPasswordLength:
		v.add("new_password", "new password must be at least 8 characters")
	case !hasLetterAndDigit(p.NewPassword):
		v.add("new_password", "new password must contain a letter and a digit")
	case p.NewPassword == p.CurrentPassword:
		v.add("new_password", "new password must differ from the current one")
	}
	if p.ConfirmPassword != p.NewPassword {
		v.add("confirm_password", "passwords do not match")
	}
	return v.err()
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}
