// Package access guards privileged operations behind a role check.
package access

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/bookclub-orders/internal/apperr"
	"github.com/xenking/bookclub-orders/internal/domain/auth"
)

// Role is a user role as stored in the users table.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleCustomer Role = "Customer"
)

// RoleSource resolves the stored role of a user. ok is false when the user
// has no role row.
type RoleSource interface {
	UserRole(ctx context.Context, userID int64) (role Role, ok bool, err error)
}

// Gate authorizes callers against a required role. The role is looked up on
// every call and never cached.
type Gate struct {
	roles RoleSource
}

// NewGate creates a Gate backed by roles.
func NewGate(roles RoleSource) *Gate {
	return &Gate{roles: roles}
}

// Require returns the caller's role if it equals required. Otherwise it
// returns an apperr.KindPermissionDenied error and the caller must not
// proceed. Data failures during the lookup are returned as they are.
func (g *Gate) Require(ctx context.Context, id auth.Identity, required Role) (Role, error) {
	role, ok, err := g.roles.UserRole(ctx, id.Subject)
	if err != nil {
		return "", errors.Wrap(err, "resolve role")
	}
	if !ok {
		return "", apperr.PermissionDenied("user has no role")
	}
	if role != required {
		return "", apperr.PermissionDenied("role " + string(role) + " is not " + string(required))
	}
	return role, nil
}
