package qvcs

import (
	"context"
	"fmt"
)

// CreateProject inserts a project together with its trunk branch.
func CreateProject(ctx context.Context, db Database, name string) (*Project, *Branch, error) {
	if name == "" {
		return nil, nil, invalidf("project name is required")
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := tx.FindProjectByName(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("finding project %q: %w", name, err)
	}
	if existing != nil {
		return nil, nil, invalidf("project %q already exists", name)
	}

	project, err := tx.InsertProject(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("creating project %q: %w", name, err)
	}
	trunk, err := tx.InsertBranch(ctx, project.ID, TrunkBranchName, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating trunk: %w", err)
	}
	if _, err := tx.InsertDirectory(ctx, project.ID, ""); err != nil {
		return nil, nil, fmt.Errorf("creating root directory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing project %q: %w", name, err)
	}
	return project, trunk, nil
}

// CreateBranch inserts a branch of projectName whose parent is parentName
// (the trunk when empty).
func CreateBranch(ctx context.Context, db Database, projectName, branchName, parentName string) (*Branch, error) {
	if branchName == "" || branchName == TrunkBranchName {
		return nil, invalidf("invalid branch name %q", branchName)
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	project, parent, err := ResolveBranch(ctx, tx, projectName, parentName)
	if err != nil {
		return nil, err
	}
	existing, err := tx.FindBranchByProjectIDAndName(ctx, project.ID, branchName)
	if err != nil {
		return nil, fmt.Errorf("finding branch %q: %w", branchName, err)
	}
	if existing != nil {
		return nil, invalidf("branch %q already exists in project %q", branchName, projectName)
	}

	branch, err := tx.InsertBranch(ctx, project.ID, branchName, &parent.ID)
	if err != nil {
		return nil, fmt.Errorf("creating branch %q: %w", branchName, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing branch %q: %w", branchName, err)
	}
	return branch, nil
}
