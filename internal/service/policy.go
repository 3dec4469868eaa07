package service

import (
	"errors"

	"github.com/google/uuid"

	"github.com/votefield/canvass/internal/repo"
)

var (
	// ErrForbidden means the principal's role or ownership does not
	// permit the operation.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrValidation means the input failed a semantic check the struct
	// validator could not express, such as an unknown enum value.
	ErrValidation = errors.New("invalid input")
)

// The policy functions below are the only place role semantics live.
// Handlers and services call these; nothing else inspects Role values.
// Existence checks run before authorization: a missing target is 404 to
// every caller, whatever their role.

// ManagerOrAdmin reports whether the principal holds an elevated role.
func ManagerOrAdmin(principal *repo.User) bool {
	return principal.Role == repo.RoleManager || principal.Role == repo.RoleAdmin
}

// AdminOnly reports whether the principal is an admin.
func AdminOnly(principal *repo.User) bool {
	return principal.Role == repo.RoleAdmin
}

// SelfOrManager allows a principal to act on their own record, and
// managers/admins to act on anyone's.
func SelfOrManager(principal *repo.User, targetUserID uuid.UUID) bool {
	return principal.ID == targetUserID || ManagerOrAdmin(principal)
}

// SelfOrAdmin allows a principal to act on their own record, and admins
// to act on anyone's. Used for user updates; role changes are gated
// separately by AdminOnly.
func SelfOrAdmin(principal *repo.User, targetUserID uuid.UUID) bool {
	return principal.ID == targetUserID || AdminOnly(principal)
}

// OwnsAssignment allows the assigned canvasser and managers/admins.
func OwnsAssignment(principal *repo.User, assignment *repo.Assignment) bool {
	return assignment.UserID == principal.ID || ManagerOrAdmin(principal)
}

// OwnsContactLog allows the user who logged the contact and
// managers/admins.
func OwnsContactLog(principal *repo.User, log *repo.ContactLog) bool {
	return log.UserID == principal.ID || ManagerOrAdmin(principal)
}
