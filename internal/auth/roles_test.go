package auth

import (
	"context"
	"errors"
	"testing"

	"qvcs-go/internal/config"
	"qvcs-go/internal/qvcs"
)

func TestRoleAuthorizer(t *testing.T) {
	a, err := NewRoleAuthorizer([]config.RoleConfig{
		{User: "alice", Project: "*", Role: "admin"},
		{User: "bob", Project: "P", Role: "writer"},
		{User: "carol", Project: "P", Role: "reader"},
		{User: "*", Project: "Public", Role: "reader"},
	})
	if err != nil {
		t.Fatalf("NewRoleAuthorizer() error = %v", err)
	}

	tests := []struct {
		name    string
		user    string
		kind    qvcs.RequestKind
		project string
		allowed bool
	}{
		{name: "admin anywhere", user: "alice", kind: qvcs.KindPromoteSimple, project: "Q", allowed: true},
		{name: "writer promotes", user: "bob", kind: qvcs.KindPromoteMove, project: "P", allowed: true},
		{name: "writer tags", user: "bob", kind: qvcs.KindApplyTag, project: "P", allowed: true},
		{name: "writer on other project", user: "bob", kind: qvcs.KindGetTags, project: "Q", allowed: false},
		{name: "reader reads", user: "carol", kind: qvcs.KindGetBriefCommitInfoList, project: "P", allowed: true},
		{name: "reader cannot promote", user: "carol", kind: qvcs.KindPromoteSimple, project: "P", allowed: false},
		{name: "reader cannot check in", user: "carol", kind: qvcs.KindCheckIn, project: "P", allowed: false},
		{name: "wildcard user", user: "dave", kind: qvcs.KindGetTags, project: "Public", allowed: true},
		{name: "stranger", user: "dave", kind: qvcs.KindGetTags, project: "P", allowed: false},
		{name: "transaction bracket needs nothing", user: "dave", kind: qvcs.KindTransactionBegin, allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authorize(context.Background(), tt.user, tt.kind, tt.project)
			if tt.allowed && err != nil {
				t.Errorf("Authorize() error = %v, want nil", err)
			}
			if !tt.allowed && !errors.Is(err, qvcs.ErrUnauthorized) {
				t.Errorf("Authorize() error = %v, want ErrUnauthorized", err)
			}
		})
	}
}

func TestNewRoleAuthorizer_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		roles []config.RoleConfig
	}{
		{name: "unknown role", roles: []config.RoleConfig{{User: "a", Project: "P", Role: "owner"}}},
		{name: "missing user", roles: []config.RoleConfig{{Project: "P", Role: "reader"}}},
		{name: "missing project", roles: []config.RoleConfig{{User: "a", Role: "reader"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRoleAuthorizer(tt.roles); err == nil {
				t.Error("NewRoleAuthorizer() expected error")
			}
		})
	}
}
