package org

import (
	"context"
	"fmt"
	"io"
	"strings"

	"evalconsole/internal/domain/auth"
)

type Service struct {
	API   RemoteAPI
	Cache Cache
}

func NewService(api RemoteAPI, cache Cache) *Service {
	return &Service{API: api, Cache: cache}
}

func cached[T any](ctx context.Context, s *Service, namespace string, user auth.UserContext, key string, load func(context.Context) (T, error)) (T, error) {
	if s.Cache == nil {
		return load(ctx)
	}
	var zero T
	value, err := s.Cache.Do(ctx, namespace, user.UserID, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	out, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("cache %s: unexpected %T", namespace, value)
	}
	return out, nil
}

func (s *Service) invalidate(namespace string) {
	if s.Cache != nil {
		s.Cache.Invalidate(namespace, "")
	}
}

func require(user auth.UserContext, perm string) error {
	if !user.Capabilities().Can(perm) {
		return ErrForbidden
	}
	return nil
}

func (s *Service) ListUnits(ctx context.Context, user auth.UserContext, level Level, parentID ID) ([]Unit, error) {
	if err := require(user, auth.PermOrgRead); err != nil {
		return nil, err
	}
	if _, ok := ParseLevel(string(level)); !ok {
		return nil, ErrUnknownLevel
	}
	units, err := cached(ctx, s, CacheNamespace(level), user, string(parentID), func(ctx context.Context) ([]Unit, error) {
		return s.API.ListUnits(ctx, level, parentID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]Unit, len(units))
	for i, u := range units {
		u.Level = level
		out[i] = u
	}
	return out, nil
}

func (s *Service) SaveUnit(ctx context.Context, user auth.UserContext, unit Unit) (Unit, error) {
	if !user.Capabilities().CanManageOrg() {
		return Unit{}, ErrForbidden
	}
	unit.Name = strings.TrimSpace(unit.Name)
	unit.Code = strings.TrimSpace(unit.Code)
	if err := ValidateUnit(unit); err != nil {
		return Unit{}, err
	}
	var (
		saved Unit
		err   error
	)
	if unit.ID == "" {
		saved, err = s.API.CreateUnit(ctx, unit)
	} else {
		saved, err = s.API.UpdateUnit(ctx, unit)
	}
	if err != nil {
		return Unit{}, err
	}
	saved.Level = unit.Level
	s.invalidate(CacheNamespace(unit.Level))
	return saved, nil
}

func (s *Service) DeleteUnit(ctx context.Context, user auth.UserContext, level Level, id ID) error {
	if !user.Capabilities().CanManageOrg() {
		return ErrForbidden
	}
	if _, ok := ParseLevel(string(level)); !ok {
		return ErrUnknownLevel
	}
	if err := s.API.DeleteUnit(ctx, level, id); err != nil {
		return err
	}
	s.invalidate(CacheNamespace(level))
	return nil
}

func (s *Service) ListEmployees(ctx context.Context, user auth.UserContext, search string) ([]Employee, error) {
	if err := require(user, auth.PermEmployeesRead); err != nil {
		return nil, err
	}
	employees, err := cached(ctx, s, CacheEmployees, user, strings.ToLower(strings.TrimSpace(search)), func(ctx context.Context) ([]Employee, error) {
		return s.API.ListEmployees(ctx, search)
	})
	if err != nil {
		return nil, err
	}
	out := make([]Employee, len(employees))
	for i, emp := range employees {
		FilterEmployeeFields(&emp, user)
		out[i] = emp
	}
	return out, nil
}

// GetEmployee lets anyone read their own record.
func (s *Service) GetEmployee(ctx context.Context, user auth.UserContext, id ID) (Employee, error) {
	if string(id) != user.EmployeeID {
		if err := require(user, auth.PermEmployeesRead); err != nil {
			return Employee{}, err
		}
	}
	emp, err := s.API.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	FilterEmployeeFields(&emp, user)
	return emp, nil
}

func (s *Service) SaveEmployee(ctx context.Context, user auth.UserContext, emp Employee) (Employee, error) {
	if err := require(user, auth.PermEmployeesWrite); err != nil {
		return Employee{}, err
	}
	if err := ValidateEmployee(emp); err != nil {
		return Employee{}, err
	}
	var (
		saved Employee
		err   error
	)
	if emp.ID == "" {
		saved, err = s.API.CreateEmployee(ctx, emp)
	} else {
		saved, err = s.API.UpdateEmployee(ctx, emp)
	}
	if err != nil {
		return Employee{}, err
	}
	s.invalidate(CacheEmployees)
	return saved, nil
}

func (s *Service) ListPlacements(ctx context.Context, user auth.UserContext, employeeID ID) ([]Placement, error) {
	if string(employeeID) != user.EmployeeID {
		if err := require(user, auth.PermEmployeesRead); err != nil {
			return nil, err
		}
	}
	return cached(ctx, s, CachePlacements, user, string(employeeID), func(ctx context.Context) ([]Placement, error) {
		return s.API.ListPlacements(ctx, employeeID)
	})
}

func (s *Service) Place(ctx context.Context, user auth.UserContext, p Placement) (Placement, error) {
	if !user.Capabilities().CanManagePlacements() {
		return Placement{}, ErrForbidden
	}
	if err := ValidatePlacement(p); err != nil {
		return Placement{}, err
	}
	saved, err := s.API.CreatePlacement(ctx, p)
	if err != nil {
		return Placement{}, err
	}
	s.invalidate(CachePlacements)
	return saved, nil
}

// ListUsers feeds reviewer and manager pickers; role narrows the list.
func (s *Service) ListUsers(ctx context.Context, user auth.UserContext, role string) ([]User, error) {
	if err := require(user, auth.PermUsersRead); err != nil {
		return nil, err
	}
	return cached(ctx, s, CacheUsers, user, strings.ToLower(role), func(ctx context.Context) ([]User, error) {
		return s.API.ListUsers(ctx, role)
	})
}

func (s *Service) Profile(ctx context.Context, user auth.UserContext) (User, error) {
	return s.API.GetUser(ctx, ID(user.UserID))
}

func (s *Service) UpdateProfile(ctx context.Context, user auth.UserContext, p ProfileUpdate) (User, error) {
	if err := require(user, auth.PermProfileWrite); err != nil {
		return User{}, err
	}
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	if err := ValidateProfile(p); err != nil {
		return User{}, err
	}
	saved, err := s.API.UpdateUser(ctx, ID(user.UserID), p)
	if err != nil {
		return User{}, err
	}
	s.invalidate(CacheUsers)
	return saved, nil
}

func (s *Service) ChangePassword(ctx context.Context, p PasswordChange) error {
	if err := ValidatePasswordChange(p); err != nil {
		return err
	}
	return s.API.ChangePassword(ctx, p)
}

// Import forwards a spreadsheet. Parsing and row validation stay server-side;
// dryRun asks the server to validate without committing.
func (s *Service) Import(ctx context.Context, user auth.UserContext, kind ImportKind, filename string, file io.Reader, dryRun bool) (ImportResult, error) {
	if !user.Capabilities().CanImport() {
		return ImportResult{}, ErrForbidden
	}
	if _, ok := ParseImportKind(string(kind)); !ok {
		v := &ValidationError{}
		v.add("kind", "unknown import kind")
		return ImportResult{}, v
	}
	if !hasSpreadsheetExt(filename) {
		v := &ValidationError{}
		v.add("file", "file must be .xlsx, .xls or .csv")
		return ImportResult{}, v
	}
	res, err := s.API.Import(ctx, kind, filename, file, dryRun)
	if err != nil {
		return ImportResult{}, err
	}
	res.DryRun = dryRun
	if !dryRun {
		switch kind {
		case ImportEmployees:
			s.invalidate(CacheEmployees)
		case ImportPlacements:
			s.invalidate(CachePlacements)
		case ImportUsers:
			s.invalidate(CacheUsers)
		case ImportOrgChart:
			for _, level := range Levels {
				s.invalidate(CacheNamespace(level))
			}
		}
	}
	return res, nil
}

func hasSpreadsheetExt(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range []string{".xlsx", ".xls", ".csv"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
