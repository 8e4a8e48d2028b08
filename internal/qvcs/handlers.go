package qvcs

import (
	"bytes"
	"context"
	"fmt"
)

func (s *Service) promote(variant PromotionVariant) handlerFunc {
	return func(ctx context.Context, c *call) error {
		req := c.req
		if req.Promotion == nil {
			return invalidf("promotion info is required")
		}
		if req.BranchName == "" {
			return invalidf("feature branch name is required")
		}

		var result *PromotionResult
		err := s.mutate(ctx, c.sess, func(store Store, n *notifications) error {
			uid, err := userID(ctx, store, c.user)
			if err != nil {
				return err
			}
			result, err = Promote(ctx, store, PromotionRequest{
				Variant:           variant,
				ProjectName:       req.ProjectName,
				FeatureBranchName: req.BranchName,
				Info:              *req.Promotion,
				UserID:            uid,
				At:                s.clock.Now(),
			})
			if err != nil {
				return err
			}
			n.add(result.FeatureCoordinate, result.PromotedFrom, ActionRemove)
			n.add(result.ParentCoordinate, result.PromotedTo, ActionAddFile)
			return nil
		})
		if err != nil {
			return err
		}

		c.resp.ParentTipRevisionID = result.ParentTipRevisionID
		c.resp.PromotedTo = result.PromotedTo
		c.resp.PromotedFrom = result.PromotedFrom
		c.resp.Superseded = result.Superseded
		c.resp.CommitID = result.CommitID

		s.recorder.PromotionCompleted(variant)
		s.logger.Info("file promoted",
			"session", c.sess.ID,
			"variant", variant.String(),
			"file_id", req.Promotion.FileID,
			"from", result.FeatureBranch.Name,
			"to", result.ParentBranch.Name,
			"revision_id", result.ParentTipRevisionID)
		return nil
	}
}

func (s *Service) applyTag(ctx context.Context, c *call) error {
	return s.mutate(ctx, c.sess, func(store Store, _ *notifications) error {
		uid, err := userID(ctx, store, c.user)
		if err != nil {
			return err
		}
		_, branch, err := ResolveBranch(ctx, store, c.req.ProjectName, c.req.BranchName)
		if err != nil {
			return err
		}
		tagID, commitID, err := CreateTag(ctx, store, uid, branch.ID,
			c.req.TagText, c.req.TagDescription, c.req.Moveable, s.clock.Now())
		if err != nil {
			return err
		}
		c.resp.TagID = tagID
		c.resp.CommitID = commitID
		return nil
	})
}

func (s *Service) getTags(ctx context.Context, c *call) error {
	store := s.reader(c.sess)
	_, branch, err := ResolveBranch(ctx, store, c.req.ProjectName, c.req.BranchName)
	if err != nil {
		return err
	}
	tags, err := ListTags(ctx, store, branch.ID)
	if err != nil {
		return err
	}
	c.resp.Tags = tags
	return nil
}

func (s *Service) getTagsInfo(ctx context.Context, c *call) error {
	store := s.reader(c.sess)
	_, branch, err := ResolveBranch(ctx, store, c.req.ProjectName, c.req.BranchName)
	if err != nil {
		return err
	}
	tags, err := ListTagInfo(ctx, store, branch.ID)
	if err != nil {
		return err
	}
	for _, t := range tags {
		c.resp.TagInfo = append(c.resp.TagInfo, TagInfo{
			TagID:       t.ID,
			TagText:     t.TagText,
			Description: t.Description,
			Moveable:    t.Moveable,
			CommitID:    t.CommitID,
		})
	}
	return nil
}

func (s *Service) getBriefCommitInfoList(ctx context.Context, c *call) error {
	if c.req.CommitID <= 0 {
		return invalidf("commit id is required")
	}
	store := s.reader(c.sess)
	_, branch, err := ResolveBranch(ctx, store, c.req.ProjectName, c.req.BranchName)
	if err != nil {
		return err
	}
	chain, err := AncestryOf(ctx, store, branch.ID)
	if err != nil {
		return err
	}
	commits, err := ListCommitsSince(ctx, store, chain, c.req.CommitID)
	if err != nil {
		return err
	}
	c.resp.Commits = briefCommits(commits)
	return nil
}

func (s *Service) getMostRecentActivity(ctx context.Context, c *call) error {
	store := s.reader(c.sess)
	_, branch, err := ResolveBranch(ctx, store, c.req.ProjectName, c.req.BranchName)
	if err != nil {
		return err
	}
	chain, err := AncestryOf(ctx, store, branch.ID)
	if err != nil {
		return err
	}

	var onlyUser *int64
	if c.req.UserOnly {
		user, err := store.FindUserByName(ctx, c.user)
		if err != nil {
			return fmt.Errorf("finding user %q: %w", c.user, err)
		}
		if user == nil {
			// A user who never committed has no activity.
			return nil
		}
		onlyUser = &user.ID
	}

	commits, err := MostRecentCommits(ctx, store, chain, onlyUser, c.req.Limit)
	if err != nil {
		return err
	}
	c.resp.Commits = briefCommits(commits)
	if len(commits) > 0 {
		at := commits[0].CommitDate
		c.resp.MostRecentActivity = &at
	}
	return nil
}

func briefCommits(commits []*Commit) []BriefCommitInfo {
	out := make([]BriefCommitInfo, 0, len(commits))
	for _, cm := range commits {
		out = append(out, BriefCommitInfo{
			CommitID:   cm.ID,
			BranchID:   cm.BranchID,
			UserName:   cm.UserName,
			CommitDate: cm.CommitDate,
			Message:    cm.Message,
		})
	}
	return out
}

func (s *Service) transactionBegin(ctx context.Context, c *call) error {
	if c.sess.InTransaction() {
		return invalidf("a transaction is already open on this session")
	}
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	c.sess.tx = tx
	c.sess.held = nil
	s.logger.Debug("transaction opened", "session", c.sess.ID)
	return nil
}

func (s *Service) transactionEnd(ctx context.Context, c *call) error {
	if !c.sess.InTransaction() {
		return nil
	}
	tx, held := c.sess.tx, c.sess.held
	c.sess.tx, c.sess.held = nil, nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	s.release(c.sess, held)
	s.logger.Debug("transaction committed", "session", c.sess.ID, "notifications", len(held))
	return nil
}

// checkIn records a new revision of a file on a branch, creating the file when
// the request carries no file id. Supplying a different location for an
// existing file renames or moves it on that branch.
func (s *Service) checkIn(ctx context.Context, c *call) error {
	req := c.req
	if req.ShortName == "" {
		return invalidf("short name is required")
	}
	if s.content == nil {
		return invalidf("content storage is not configured")
	}

	contentID, size, err := s.content.Put(ctx, bytes.NewReader(req.Content))
	if err != nil {
		return fmt.Errorf("storing content: %w: %w", ErrStorageFailure, err)
	}

	appendedPath := CleanAppendedPath(req.AppendedPath)
	coord := DirectoryCoordinate{ProjectName: req.ProjectName, BranchName: req.BranchName, AppendedPath: appendedPath}

	return s.mutate(ctx, c.sess, func(store Store, n *notifications) error {
		uid, err := userID(ctx, store, c.user)
		if err != nil {
			return err
		}
		project, branch, err := ResolveBranch(ctx, store, req.ProjectName, req.BranchName)
		if err != nil {
			return err
		}
		coord.BranchName = branch.Name
		dir, err := EnsureDirectory(ctx, store, project.ID, appendedPath)
		if err != nil {
			return err
		}

		var previous *SkinnyLogfileInfo
		fileID := req.FileID
		if fileID == 0 {
			if err := ensureLocationFree(ctx, store, branch.ID, dir.ID, req.ShortName, 0); err != nil {
				return err
			}
			fileID, err = store.InsertFile(ctx, &File{ProjectID: project.ID, CreatedOnBranchID: branch.ID})
			if err != nil {
				return fmt.Errorf("inserting file: %w", err)
			}
		} else {
			file, err := store.FindFileByID(ctx, fileID)
			if err != nil {
				return fmt.Errorf("finding file %d: %w", fileID, err)
			}
			if file == nil || file.ProjectID != project.ID {
				return notFoundf("file %d in project %q", fileID, req.ProjectName)
			}
			previous, err = TipSkinnyInfo(ctx, store, branch.ID, fileID)
			if err != nil {
				return err
			}
			if previous.AppendedPath != appendedPath || previous.ShortName != req.ShortName {
				if err := ensureLocationFree(ctx, store, branch.ID, dir.ID, req.ShortName, fileID); err != nil {
					return err
				}
			}
		}

		message := req.Message
		if message == "" {
			message = "Check in " + req.ShortName
		}
		now := s.clock.Now()
		commitID, err := AppendCommit(ctx, store, uid, branch.ID, message, now)
		if err != nil {
			return err
		}
		revID, err := store.InsertFileRevision(ctx, &FileRevision{
			FileID:      fileID,
			BranchID:    branch.ID,
			CommitID:    commitID,
			DirectoryID: dir.ID,
			ShortName:   req.ShortName,
			ContentID:   contentID,
			Size:        size,
			Attributes:  req.Attributes,
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("inserting revision: %w", err)
		}
		info, err := SkinnyInfo(ctx, store, revID)
		if err != nil {
			return err
		}

		switch {
		case previous == nil:
			n.add(coord, info, ActionAddFile)
		case previous.AppendedPath == appendedPath && previous.ShortName == req.ShortName:
			n.add(coord, info, ActionUpdate)
		default:
			old := coord
			old.AppendedPath = previous.AppendedPath
			n.add(old, previous, ActionRemove)
			n.add(coord, info, ActionAddFile)
		}

		c.resp.Info = info
		c.resp.CommitID = commitID
		return nil
	})
}

// ensureLocationFree fails when a file other than exceptFileID is visible on
// branchID at the given location.
func ensureLocationFree(ctx context.Context, store Store, branchID, directoryID int64, shortName string, exceptFileID int64) error {
	ids, err := store.FindFileIDsAtLocation(ctx, directoryID, shortName)
	if err != nil {
		return fmt.Errorf("checking location: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	chain, err := AncestryOf(ctx, store, branchID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == exceptFileID {
			continue
		}
		tip, err := tipRevisionInChain(ctx, store, chain, id)
		if Classify(err) == KindNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if tip.DirectoryID == directoryID && tip.ShortName == shortName {
			return invalidf("file %q already exists as file %d", shortName, id)
		}
	}
	return nil
}

// getRevision returns a revision's skinny info and content. Without a
// revision id it returns the tip of the file visible on the branch.
func (s *Service) getRevision(ctx context.Context, c *call) error {
	store := s.reader(c.sess)
	project, branch, err := ResolveBranch(ctx, store, c.req.ProjectName, c.req.BranchName)
	if err != nil {
		return err
	}

	var rev *FileRevision
	switch {
	case c.req.RevisionID != 0:
		rev, err = store.FindFileRevisionByID(ctx, c.req.RevisionID)
		if err != nil {
			return fmt.Errorf("finding revision %d: %w", c.req.RevisionID, err)
		}
		if rev == nil {
			return notFoundf("revision %d", c.req.RevisionID)
		}
		owner, err := store.FindBranchByID(ctx, rev.BranchID)
		if err != nil {
			return fmt.Errorf("finding branch %d: %w", rev.BranchID, err)
		}
		if owner == nil || owner.ProjectID != project.ID {
			return notFoundf("revision %d in project %q", c.req.RevisionID, c.req.ProjectName)
		}
	case c.req.FileID != 0:
		rev, err = TipRevision(ctx, store, branch.ID, c.req.FileID)
		if err != nil {
			return err
		}
	default:
		return invalidf("revision id or file id is required")
	}

	info, err := SkinnyInfo(ctx, store, rev.ID)
	if err != nil {
		return err
	}
	c.resp.Info = info

	if s.content == nil {
		return nil
	}
	var buf bytes.Buffer
	if err := s.content.Get(ctx, rev.ContentID, &buf); err != nil {
		return fmt.Errorf("reading content %s: %w", rev.ContentID, err)
	}
	c.resp.Content = buf.Bytes()
	return nil
}

func (s *Service) registerObserver(ctx context.Context, c *call) error {
	if _, _, err := ResolveBranch(ctx, s.reader(c.sess), c.req.ProjectName, c.req.BranchName); err != nil {
		return err
	}
	return s.dispatcher.Watch(c.sess.ID, c.coordinate())
}

func (s *Service) unregisterObserver(_ context.Context, c *call) error {
	return s.dispatcher.Unwatch(c.sess.ID, c.coordinate())
}

func (s *Service) getInfoForMerge(context.Context, *call) error {
	return invalidf("%s is not supported", KindGetInfoForMerge)
}

func (c *call) coordinate() DirectoryCoordinate {
	return DirectoryCoordinate{
		ProjectName:  c.req.ProjectName,
		BranchName:   c.req.BranchName,
		AppendedPath: c.req.AppendedPath,
	}
}
