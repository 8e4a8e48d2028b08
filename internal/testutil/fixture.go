package testutil

import (
	"context"
	"testing"

	"qvcs-go/internal/qvcs"
)

// Fixture is a project "P" with a trunk and a feature branch "Feat".
type Fixture struct {
	DB      qvcs.Database
	Project *qvcs.Project
	Trunk   *qvcs.Branch
	Feat    *qvcs.Branch
}

// NewFixture seeds db with project P, its trunk and branch Feat off the trunk.
func NewFixture(t *testing.T, db qvcs.Database) *Fixture {
	t.Helper()
	ctx := context.Background()

	project, trunk, err := qvcs.CreateProject(ctx, db, "P")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	feat, err := qvcs.CreateBranch(ctx, db, "P", "Feat", "")
	if err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}
	return &Fixture{DB: db, Project: project, Trunk: trunk, Feat: feat}
}

// AddBranch creates branch name off parent.
func (f *Fixture) AddBranch(t *testing.T, name, parent string) *qvcs.Branch {
	t.Helper()
	b, err := qvcs.CreateBranch(context.Background(), f.DB, f.Project.Name, name, parent)
	if err != nil {
		t.Fatalf("CreateBranch(%s) error = %v", name, err)
	}
	return b
}
