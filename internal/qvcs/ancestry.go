package qvcs

import (
	"context"
	"fmt"
)

// AncestryOf returns branchID followed by its parent, grandparent and so on,
// ending at the project's trunk. A cycle in the parent pointers is corrupted
// data and yields ErrFatal.
func AncestryOf(ctx context.Context, store Store, branchID int64) ([]int64, error) {
	var chain []int64
	var projectID int64
	visited := make(map[int64]bool)

	current := branchID
	for {
		if visited[current] {
			return nil, fmt.Errorf("branch ancestry cycle at branch %d (chain %v): %w", current, chain, ErrFatal)
		}
		visited[current] = true

		branch, err := store.FindBranchByID(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("finding branch %d: %w", current, err)
		}
		if branch == nil {
			if current == branchID {
				return nil, notFoundf("branch %d", branchID)
			}
			return nil, fmt.Errorf("branch %d has dangling parent %d: %w", chain[len(chain)-1], current, ErrFatal)
		}

		if len(chain) == 0 {
			projectID = branch.ProjectID
		} else if branch.ProjectID != projectID {
			return nil, fmt.Errorf("branch %d has parent %d in another project: %w", chain[len(chain)-1], branch.ID, ErrFatal)
		}

		chain = append(chain, branch.ID)
		if branch.IsTrunk() {
			return chain, nil
		}
		current = *branch.ParentBranchID
	}
}

// ParentOf returns the immediate parent of branchID. The trunk has no parent
// and yields ErrInvalidRequest.
func ParentOf(ctx context.Context, store Store, branchID int64) (*Branch, error) {
	chain, err := AncestryOf(ctx, store, branchID)
	if err != nil {
		return nil, err
	}
	if len(chain) < 2 {
		return nil, invalidf("branch %d is the trunk and has no parent", branchID)
	}
	parent, err := store.FindBranchByID(ctx, chain[1])
	if err != nil {
		return nil, fmt.Errorf("finding parent branch %d: %w", chain[1], err)
	}
	if parent == nil {
		return nil, notFoundf("branch %d", chain[1])
	}
	return parent, nil
}
