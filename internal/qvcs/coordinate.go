package qvcs

import (
	"context"
	"fmt"
)

// ResolveBranch maps a (project, branch) pair to its rows. An empty branch
// name resolves to the trunk.
func ResolveBranch(ctx context.Context, store Store, projectName, branchName string) (*Project, *Branch, error) {
	project, err := store.FindProjectByName(ctx, projectName)
	if err != nil {
		return nil, nil, fmt.Errorf("finding project %q: %w", projectName, err)
	}
	if project == nil {
		return nil, nil, notFoundf("project %q", projectName)
	}

	if branchName == "" {
		branchName = TrunkBranchName
	}
	branch, err := store.FindBranchByProjectIDAndName(ctx, project.ID, branchName)
	if err != nil {
		return nil, nil, fmt.Errorf("finding branch %q: %w", branchName, err)
	}
	if branch == nil {
		return nil, nil, notFoundf("branch %q in project %q", branchName, projectName)
	}
	return project, branch, nil
}

// Resolve maps a directory coordinate to its numeric ids. It is a pure
// lookup: a directory that has never been created is NotFound.
func Resolve(ctx context.Context, store Store, coord DirectoryCoordinate) (DirectoryCoordinateIDs, error) {
	project, branch, err := ResolveBranch(ctx, store, coord.ProjectName, coord.BranchName)
	if err != nil {
		return DirectoryCoordinateIDs{}, err
	}

	appendedPath := CleanAppendedPath(coord.AppendedPath)
	dir, err := store.FindDirectory(ctx, project.ID, appendedPath)
	if err != nil {
		return DirectoryCoordinateIDs{}, fmt.Errorf("finding directory %q: %w", appendedPath, err)
	}
	if dir == nil {
		return DirectoryCoordinateIDs{}, notFoundf("directory %q in project %q", appendedPath, coord.ProjectName)
	}

	return DirectoryCoordinateIDs{
		ProjectID:   project.ID,
		BranchID:    branch.ID,
		DirectoryID: dir.ID,
	}, nil
}

// EnsureDirectory finds or creates the directory row for appendedPath. Only
// call it with a Store bound to a mutating transaction.
func EnsureDirectory(ctx context.Context, store Store, projectID int64, appendedPath string) (*Directory, error) {
	appendedPath = CleanAppendedPath(appendedPath)
	dir, err := store.FindDirectory(ctx, projectID, appendedPath)
	if err != nil {
		return nil, fmt.Errorf("finding directory %q: %w", appendedPath, err)
	}
	if dir != nil {
		return dir, nil
	}
	dir, err = store.InsertDirectory(ctx, projectID, appendedPath)
	if err != nil {
		return nil, fmt.Errorf("creating directory %q: %w", appendedPath, err)
	}
	return dir, nil
}
