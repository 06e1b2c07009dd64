// Package actor carries the acting identity (role + id) through a request
// context. Session issuance happens outside this service; the API layer only
// forwards the already-authenticated identity.
package actor

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
)

// Actor identifies who is executing a workflow command.
type Actor struct {
	ID   snowflake.ID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsTechnician() bool {
	return a.Role == RoleTechnician
}

type contextKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(Actor)
	if !ok || a.ID == 0 {
		return Actor{}, false
	}
	return a, true
}

// ParseRole normalizes a role string, returning false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleTechnician:
		return RoleTechnician, true
	default:
		return "", false
	}
}
