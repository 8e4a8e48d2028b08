package auth

import (
	"context"
	"fmt"

	"qvcs-go/internal/config"
	"qvcs-go/internal/qvcs"
)

// Role is a permission level. Higher roles include the lower ones.
type Role int

const (
	RoleNone Role = iota
	RoleReader
	RoleWriter
	RoleAdmin
)

// ParseRole maps a config role name to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "reader":
		return RoleReader, nil
	case "writer":
		return RoleWriter, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleNone, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleReader:
		return "reader"
	case RoleWriter:
		return "writer"
	case RoleAdmin:
		return "admin"
	}
	return "none"
}

// RequiredRole is the least role that may issue kind.
func RequiredRole(kind qvcs.RequestKind) Role {
	switch {
	case kind == qvcs.KindTransactionBegin || kind == qvcs.KindTransactionEnd:
		return RoleNone
	case kind.Mutates():
		return RoleWriter
	}
	return RoleReader
}

type grant struct {
	user    string
	project string
	role    Role
}

// RoleAuthorizer grants requests from the role table in the config. User
// and project "*" are wildcards.
type RoleAuthorizer struct {
	grants []grant
}

var _ qvcs.Authorizer = (*RoleAuthorizer)(nil)

// NewRoleAuthorizer validates the role table.
func NewRoleAuthorizer(roles []config.RoleConfig) (*RoleAuthorizer, error) {
	a := &RoleAuthorizer{}
	for i, rc := range roles {
		role, err := ParseRole(rc.Role)
		if err != nil {
			return nil, fmt.Errorf("auth.roles[%d]: %w", i, err)
		}
		if rc.User == "" || rc.Project == "" {
			return nil, fmt.Errorf("auth.roles[%d]: user and project are required", i)
		}
		a.grants = append(a.grants, grant{user: rc.User, project: rc.Project, role: role})
	}
	return a, nil
}

// RoleOf returns the highest role userName holds on projectName.
func (a *RoleAuthorizer) RoleOf(userName, projectName string) Role {
	best := RoleNone
	for _, g := range a.grants {
		if g.user != "*" && g.user != userName {
			continue
		}
		if g.project != "*" && g.project != projectName {
			continue
		}
		if g.role > best {
			best = g.role
		}
	}
	return best
}

func (a *RoleAuthorizer) Authorize(_ context.Context, userName string, kind qvcs.RequestKind, projectName string) error {
	need := RequiredRole(kind)
	if need == RoleNone {
		return nil
	}
	if have := a.RoleOf(userName, projectName); have < need {
		return fmt.Errorf("user %q needs %s on project %q for %s: %w",
			userName, need, projectName, kind, qvcs.ErrUnauthorized)
	}
	return nil
}
