package qvcs

import (
	"context"
	"fmt"
)

// TipRevision returns the newest revision of fileID visible on branchID: the
// branch's own newest revision if it has one, otherwise the newest revision
// of the nearest ancestor that has one. A branch whose newest revision was
// promoted has handed the file to its parent and is skipped.
func TipRevision(ctx context.Context, store Store, branchID, fileID int64) (*FileRevision, error) {
	chain, err := AncestryOf(ctx, store, branchID)
	if err != nil {
		return nil, err
	}
	return tipRevisionInChain(ctx, store, chain, fileID)
}

func tipRevisionInChain(ctx context.Context, store Store, chain []int64, fileID int64) (*FileRevision, error) {
	for _, id := range chain {
		rev, err := store.FindBranchTipRevision(ctx, id, fileID)
		if err != nil {
			return nil, fmt.Errorf("finding tip of file %d on branch %d: %w", fileID, id, err)
		}
		if rev == nil {
			continue
		}
		promoted, err := store.FindPromotion(ctx, rev.ID)
		if err != nil {
			return nil, fmt.Errorf("checking promotion of revision %d: %w", rev.ID, err)
		}
		if promoted == nil {
			return rev, nil
		}
	}
	return nil, notFoundf("file %d on branch %d", fileID, chain[0])
}

// SkinnyInfo projects revisionID into its skinny info.
func SkinnyInfo(ctx context.Context, store Store, revisionID int64) (*SkinnyLogfileInfo, error) {
	info, err := store.GetSkinnyLogfileInfo(ctx, revisionID)
	if err != nil {
		return nil, fmt.Errorf("projecting revision %d: %w", revisionID, err)
	}
	if info == nil {
		return nil, notFoundf("revision %d", revisionID)
	}
	return info, nil
}

// TipSkinnyInfo is TipRevision followed by SkinnyInfo.
func TipSkinnyInfo(ctx context.Context, store Store, branchID, fileID int64) (*SkinnyLogfileInfo, error) {
	rev, err := TipRevision(ctx, store, branchID, fileID)
	if err != nil {
		return nil, err
	}
	return SkinnyInfo(ctx, store, rev.ID)
}
