package qvcs

import (
	"context"
	"fmt"
	"time"
)

// PromotionVariant selects which location fields a promotion carries from
// the feature branch onto the parent branch.
type PromotionVariant int

const (
	PromoteSimple PromotionVariant = iota
	PromoteRename
	PromoteMove
	PromoteMoveAndRename
)

var promotionVariantNames = map[PromotionVariant]string{
	PromoteSimple:        "Simple",
	PromoteRename:        "Rename",
	PromoteMove:          "Move",
	PromoteMoveAndRename: "MoveAndRename",
}

func (v PromotionVariant) String() string {
	if name, ok := promotionVariantNames[v]; ok {
		return name
	}
	return "unknown"
}

func (v PromotionVariant) renames() bool {
	return v == PromoteRename || v == PromoteMoveAndRename
}

func (v PromotionVariant) moves() bool {
	return v == PromoteMove || v == PromoteMoveAndRename
}

// VariantFor derives the variant implied by where the file lives on each branch.
func VariantFor(info FilePromotionInfo) PromotionVariant {
	renamed := info.FeatureShortName != info.ParentShortName
	moved := CleanAppendedPath(info.FeatureAppendedPath) != CleanAppendedPath(info.ParentAppendedPath)
	switch {
	case renamed && moved:
		return PromoteMoveAndRename
	case renamed:
		return PromoteRename
	case moved:
		return PromoteMove
	default:
		return PromoteSimple
	}
}

// PromotionRequest is one promotion of one file from a feature branch onto
// its parent.
type PromotionRequest struct {
	Variant           PromotionVariant
	ProjectName       string
	FeatureBranchName string
	Info              FilePromotionInfo
	UserID            int64
	At                time.Time
}

// PromotionResult carries everything the response and the notifications need.
type PromotionResult struct {
	FeatureBranch       *Branch
	ParentBranch        *Branch
	CommitID            int64
	ParentTipRevisionID int64
	// PromotedTo is the parent branch tip after the promotion.
	PromotedTo *SkinnyLogfileInfo
	// PromotedFrom is the feature branch revision that was promoted.
	PromotedFrom *SkinnyLogfileInfo
	// Superseded is the parent branch tip before the promotion, nil when the
	// file did not exist on the parent.
	Superseded        *SkinnyLogfileInfo
	FeatureCoordinate DirectoryCoordinate
	ParentCoordinate  DirectoryCoordinate
}

// Promote merges the feature branch revision named in req.Info onto the
// feature branch's parent. store must be bound to the request transaction;
// any error leaves the caller to roll back, and the caller queues the
// Remove/AddFile notifications only after committing.
func Promote(ctx context.Context, store Store, req PromotionRequest) (*PromotionResult, error) {
	info := req.Info
	info.FeatureAppendedPath = CleanAppendedPath(info.FeatureAppendedPath)
	info.ParentAppendedPath = CleanAppendedPath(info.ParentAppendedPath)

	if info.FileID == 0 || info.FeatureBranchRevisionID == 0 {
		return nil, invalidf("file id and feature branch revision id are required")
	}
	if info.FeatureShortName == "" || info.ParentShortName == "" {
		return nil, invalidf("short names are required")
	}
	if implied := VariantFor(info); implied != req.Variant {
		return nil, invalidf("%s promotion requested but file locations imply %s", req.Variant, implied)
	}

	// 1. Resolve both sides.
	featureCoord := DirectoryCoordinate{
		ProjectName:  req.ProjectName,
		BranchName:   req.FeatureBranchName,
		AppendedPath: info.FeatureAppendedPath,
	}
	featureIDs, err := Resolve(ctx, store, featureCoord)
	if err != nil {
		return nil, err
	}
	feature, err := store.FindBranchByID(ctx, featureIDs.BranchID)
	if err != nil {
		return nil, fmt.Errorf("finding feature branch: %w", err)
	}
	if feature == nil {
		return nil, notFoundf("branch %d", featureIDs.BranchID)
	}
	featureCoord.BranchName = feature.Name

	parent, err := ParentOf(ctx, store, feature.ID)
	if err != nil {
		return nil, err
	}

	// 2. Parent tip before the promotion.
	var superseded *SkinnyLogfileInfo
	parentTip, err := TipRevision(ctx, store, parent.ID, info.FileID)
	switch {
	case err == nil:
		superseded, err = SkinnyInfo(ctx, store, parentTip.ID)
		if err != nil {
			return nil, err
		}
		if superseded.AppendedPath != info.ParentAppendedPath || superseded.ShortName != info.ParentShortName {
			return nil, invalidf("file %d is at %q/%q on %s, not %q/%q",
				info.FileID, superseded.AppendedPath, superseded.ShortName, parent.Name,
				info.ParentAppendedPath, info.ParentShortName)
		}
		parentCoord := DirectoryCoordinate{
			ProjectName:  req.ProjectName,
			BranchName:   parent.Name,
			AppendedPath: info.ParentAppendedPath,
		}
		if _, err := Resolve(ctx, store, parentCoord); err != nil {
			return nil, err
		}
	case Classify(err) == KindNotFound:
		// The file was created on the feature branch; its parent directory
		// may not exist yet and is created in step 4.
	default:
		return nil, err
	}

	// 3. The feature branch revision being promoted.
	featureRev, err := store.FindFileRevisionByID(ctx, info.FeatureBranchRevisionID)
	if err != nil {
		return nil, fmt.Errorf("finding feature revision: %w", err)
	}
	if featureRev == nil {
		return nil, notFoundf("revision %d", info.FeatureBranchRevisionID)
	}
	if featureRev.FileID != info.FileID {
		return nil, invalidf("revision %d belongs to file %d, not %d", featureRev.ID, featureRev.FileID, info.FileID)
	}
	if featureRev.BranchID != feature.ID {
		return nil, invalidf("revision %d is not on branch %s", featureRev.ID, feature.Name)
	}
	earlier, err := store.FindPromotion(ctx, featureRev.ID)
	if err != nil {
		return nil, fmt.Errorf("checking promotion of revision %d: %w", featureRev.ID, err)
	}
	if earlier != nil {
		return nil, invalidf("revision %d was already promoted as revision %d", featureRev.ID, earlier.ParentRevisionID)
	}
	promotedFrom, err := SkinnyInfo(ctx, store, featureRev.ID)
	if err != nil {
		return nil, err
	}
	if promotedFrom.AppendedPath != info.FeatureAppendedPath || promotedFrom.ShortName != info.FeatureShortName {
		return nil, invalidf("revision %d is at %q/%q, not %q/%q",
			featureRev.ID, promotedFrom.AppendedPath, promotedFrom.ShortName,
			info.FeatureAppendedPath, info.FeatureShortName)
	}

	// 4. Apply the variant: pick the location, check nothing else occupies it
	// on the parent, then record the new parent revision and the promotion.
	shortName, appendedPath := info.ParentShortName, info.ParentAppendedPath
	if superseded == nil || req.Variant.renames() {
		shortName = info.FeatureShortName
	}
	if superseded == nil || req.Variant.moves() {
		appendedPath = info.FeatureAppendedPath
	}
	targetDir, err := EnsureDirectory(ctx, store, featureIDs.ProjectID, appendedPath)
	if err != nil {
		return nil, err
	}

	if err := ensureLocationFree(ctx, store, parent.ID, targetDir.ID, shortName, info.FileID); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Promote %s from %s to %s", shortName, feature.Name, parent.Name)
	commitID, err := AppendCommit(ctx, store, req.UserID, parent.ID, message, req.At)
	if err != nil {
		return nil, err
	}

	newRevID, err := store.InsertFileRevision(ctx, &FileRevision{
		FileID:      info.FileID,
		BranchID:    parent.ID,
		CommitID:    commitID,
		DirectoryID: targetDir.ID,
		ShortName:   shortName,
		ContentID:   featureRev.ContentID,
		Size:        featureRev.Size,
		Attributes:  featureRev.Attributes,
		CreatedAt:   req.At,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting promoted revision: %w", err)
	}
	if err := store.InsertPromotion(ctx, &Promotion{FeatureRevisionID: featureRev.ID, ParentRevisionID: newRevID}); err != nil {
		return nil, fmt.Errorf("recording promotion: %w", err)
	}

	// 5. The tip changed as a side effect of the new commit; recompute it.
	promotedTo, err := TipSkinnyInfo(ctx, store, parent.ID, info.FileID)
	if err != nil {
		return nil, err
	}
	if promotedTo.RevisionID != newRevID {
		return nil, fmt.Errorf("parent tip of file %d is revision %d after inserting %d: %w",
			info.FileID, promotedTo.RevisionID, newRevID, ErrFatal)
	}

	// 6. Response payload and notification coordinates.
	return &PromotionResult{
		FeatureBranch:       feature,
		ParentBranch:        parent,
		CommitID:            commitID,
		ParentTipRevisionID: newRevID,
		PromotedTo:          promotedTo,
		PromotedFrom:        promotedFrom,
		Superseded:          superseded,
		FeatureCoordinate:   featureCoord,
		ParentCoordinate: DirectoryCoordinate{
			ProjectName:  req.ProjectName,
			BranchName:   parent.Name,
			AppendedPath: appendedPath,
		},
	}, nil
}
