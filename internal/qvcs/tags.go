package qvcs

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// TagCommitMessage is the message of the synthetic commit that records a tag.
func TagCommitMessage(tagText string) string {
	return "Apply tag: " + tagText
}

// CreateTag appends a commit recording the tag and then inserts the tag
// pointing at that commit. It returns the tag id and the commit id.
func CreateTag(ctx context.Context, store Store, userID, branchID int64, text, description string, moveable bool, at time.Time) (int64, int64, error) {
	if text == "" {
		return 0, 0, invalidf("tag text is required")
	}

	commitID, err := AppendCommit(ctx, store, userID, branchID, TagCommitMessage(text), at)
	if err != nil {
		return 0, 0, err
	}

	tagID, err := store.InsertTag(ctx, &Tag{
		BranchID:    branchID,
		CommitID:    commitID,
		TagText:     text,
		Description: description,
		Moveable:    moveable,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("inserting tag %q: %w", text, err)
	}
	return tagID, commitID, nil
}

// ListTags returns the distinct tag texts on branchID, sorted.
func ListTags(ctx context.Context, store Store, branchID int64) ([]string, error) {
	tags, err := ListTagInfo(ctx, store, branchID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(tags))
	var texts []string
	for _, t := range tags {
		if seen[t.TagText] {
			continue
		}
		seen[t.TagText] = true
		texts = append(texts, t.TagText)
	}
	sort.Strings(texts)
	return texts, nil
}

// ListTagInfo returns every tag row on branchID in creation order.
func ListTagInfo(ctx context.Context, store Store, branchID int64) ([]*Tag, error) {
	tags, err := store.ListTagsByBranchID(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	return tags, nil
}
