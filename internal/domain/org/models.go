package org

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID is a record key. The API sends it as a number or a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*id = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported id %s", data)
		}
		*id = ID(n.String())
	}
	return nil
}

// Level is one tier of the organization chart, named by its collection path.
type Level string

const (
	LevelCompany       Level = "companies"
	LevelDepartment    Level = "departments"
	LevelSubDepartment Level = "sub-departments"
	LevelSection       Level = "sections"
	LevelSubSection    Level = "sub-sections"
)

var Levels = []Level{LevelCompany, LevelDepartment, LevelSubDepartment, LevelSection, LevelSubSection}

// parentFields names the foreign key each level carries to its parent.
var parentFields = map[Level]string{
	LevelDepartment:    "company_id",
	LevelSubDepartment: "department_id",
	LevelSection:       "sub_department_id",
	LevelSubSection:    "section_id",
}

func ParseLevel(raw string) (Level, bool) {
	level := Level(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range Levels {
		if candidate == level {
			return level, true
		}
	}
	return "", false
}

// ParentField is empty for companies.
func (l Level) ParentField() string {
	return parentFields[l]
}

func (l Level) Parent() Level {
	for i, candidate := range Levels {
		if candidate == l && i > 0 {
			return Levels[i-1]
		}
	}
	return ""
}

// Unit is a company, department, sub-department, section or sub-section.
type Unit struct {
	ID          ID     `json:"id"`
	Level       Level  `json:"level"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	ParentID    ID     `json:"parent_id,omitempty"`
	ManagerID   ID     `json:"manager_id,omitempty"`
	Description string `json:"description,omitempty"`
}

func (u *Unit) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID              ID     `json:"id"`
		Name            string `json:"name"`
		Code            string `json:"code"`
		ParentID        ID     `json:"parent_id"`
		CompanyID       ID     `json:"company_id"`
		DepartmentID    ID     `json:"department_id"`
		SubDepartmentID ID     `json:"sub_department_id"`
		SectionID       ID     `json:"section_id"`
		ManagerID       ID     `json:"manager_id"`
		Description     string `json:"description"`
		Level           Level  `json:"level"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	parent := wire.ParentID
	for _, candidate := range []ID{wire.SectionID, wire.SubDepartmentID, wire.DepartmentID, wire.CompanyID} {
		if parent == "" {
			parent = candidate
		}
	}
	*u = Unit{
		ID:          wire.ID,
		Level:       wire.Level,
		Name:        wire.Name,
		Code:        wire.Code,
		ParentID:    parent,
		ManagerID:   wire.ManagerID,
		Description: wire.Description,
	}
	return nil
}

// Payload is the body the API expects for a create or update, with the parent
// under its level-specific key.
func (u Unit) Payload() map[string]any {
	body := map[string]any{
		"name": strings.TrimSpace(u.Name),
		"code": strings.TrimSpace(u.Code),
	}
	if u.Description != "" {
		body["description"] = u.Description
	}
	if u.ManagerID != "" {
		body["manager_id"] = string(u.ManagerID)
	}
	if field := u.Level.ParentField(); field != "" {
		body[field] = string(u.ParentID)
	}
	return body
}

type Employee struct {
	ID             ID         `json:"id"`
	UserID         ID         `json:"user_id,omitempty"`
	EmployeeNumber string     `json:"employee_number"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone,omitempty"`
	JobTitle       string     `json:"job_title,omitempty"`
	NationalID     string     `json:"national_id,omitempty"`
	BankAccount    string     `json:"bank_account,omitempty"`
	Salary         *float64   `json:"salary,omitempty"`
	ManagerID      ID         `json:"manager_id,omitempty"`
	Status         string     `json:"status,omitempty"`
	HireDate       *time.Time `json:"hire_date,omitempty"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Placement puts an employee in the chart and names their approvers.
type Placement struct {
	ID              ID     `json:"id,omitempty"`
	EmployeeID      ID     `json:"employee_id"`
	CompanyID       ID     `json:"company_id"`
	DepartmentID    ID     `json:"department_id"`
	SubDepartmentID ID     `json:"sub_department_id,omitempty"`
	SectionID       ID     `json:"section_id,omitempty"`
	SubSectionID    ID     `json:"sub_section_id,omitempty"`
	LineManagerID   ID     `json:"line_manager_id,omitempty"`
	HoDID           ID     `json:"hod_id,omitempty"`
	EffectiveFrom   string `json:"effective_from,omitempty"`
}

type User struct {
	ID         ID     `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Role       string `json:"role"`
	EmployeeID ID     `json:"employee_id,omitempty"`
}

// ProfileUpdate is what a user may change about themselves.
type ProfileUpdate struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// ImportKind is the collection an uploaded spreadsheet targets.
type ImportKind string

const (
	ImportEmployees  ImportKind = "employees"
	ImportOrgChart   ImportKind = "org-chart"
	ImportPlacements ImportKind = "placements"
	ImportUsers      ImportKind = "users"
)

var ImportKinds = []ImportKind{ImportEmployees, ImportOrgChart, ImportPlacements, ImportUsers}

func ParseImportKind(raw string) (ImportKind, bool) {
	kind := ImportKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range ImportKinds {
		if candidate == kind {
			return kind, true
		}
	}
	return "", false
}

type ImportIssue struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImportResult is the server's verdict on an upload. With DryRun set nothing
// was committed.
type ImportResult struct {
	DryRun  bool          `json:"dry_run"`
	Total   int           `json:"total"`
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Skipped int           `json:"skipped"`
	Errors  []ImportIssue `json:"errors"`
}
