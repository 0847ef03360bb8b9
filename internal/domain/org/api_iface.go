package org

import (
	"context"
	"io"
)

type RemoteAPI interface {
	ListUnits(ctx context.Context, level Level, parentID ID) ([]Unit, error)
	CreateUnit(ctx context.Context, unit Unit) (Unit, error)
	UpdateUnit(ctx context.Context, unit Unit) (Unit, error)
	DeleteUnit(ctx context.Context, level Level, id ID) error
	ListEmployees(ctx context.Context, search string) ([]Employee, error)
	GetEmployee(ctx context.Context, id ID) (Employee, error)
	CreateEmployee(ctx context.Context, emp Employee) (Employee, error)
	UpdateEmployee(ctx context.Context, emp Employee) (Employee, error)
	ListPlacements(ctx context.Context, employeeID ID) ([]Placement, error)
	CreatePlacement(ctx context.Context, p Placement) (Placement, error)
	ListUsers(ctx context.Context, role string) ([]User, error)
	GetUser(ctx context.Context, id ID) (User, error)
	UpdateUser(ctx context.Context, id ID, p ProfileUpdate) (User, error)
	ChangePassword(ctx context.Context, p PasswordChange) error
	Import(ctx context.Context, kind ImportKind, filename string, file io.Reader, dryRun bool) (ImportResult, error)
}

// Cache matches the evaluation service's advisory cache.
type Cache interface {
	Do(ctx context.Context, namespace, owner, key string, load func(context.Context) (any, error)) (any, error)
	Invalidate(namespace, key string)
}

const (
	CacheEmployees  = "employees"
	CacheUsers      = "users"
	CachePlacements = "placements"
)

// CacheNamespace is the cache namespace of one chart level.
func CacheNamespace(level Level) string {
	return "org:" + string(level)
}
