package qvcs

import (
	"path"
	"time"
)

// TrunkBranchName is the well-known name of every project's root branch.
// An empty branch name in a request resolves to this branch.
const TrunkBranchName = "Trunk"

// Project is the top-level namespace. Immutable once created.
type Project struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Branch belongs to a project. A nil ParentBranchID marks the trunk.
type Branch struct {
	ID             int64
	ProjectID      int64
	Name           string
	ParentBranchID *int64
	CreatedAt      time.Time
}

// IsTrunk reports whether the branch has no parent.
func (b *Branch) IsTrunk() bool {
	return b.ParentBranchID == nil
}

// User is a known requester.
type User struct {
	ID   int64
	Name string
}

// Commit is an append-only audit record. Every mutation (check-in, tag,
// promotion) is attached to exactly one commit.
type Commit struct {
	ID         int64
	UserID     int64
	BranchID   int64
	CommitDate time.Time
	Message    string
	// UserName is filled in by reads; inserts ignore it.
	UserName string
}

// Tag is a named pointer at a commit, scoped to a branch.
type Tag struct {
	ID          int64
	BranchID    int64
	CommitID    int64
	TagText     string
	Description string
	Moveable    bool
}

// Directory is the project-wide identity of an appended path.
// The project root has the empty path.
type Directory struct {
	ID           int64
	ProjectID    int64
	AppendedPath string
}

// File is the identity that all revisions of one logical file share.
type File struct {
	ID                int64
	ProjectID         int64
	CreatedOnBranchID int64
}

// FileRevision is one version of one file on one branch. The location
// (directory + short name) is recorded with every revision so renames and
// moves are versioned like content.
type FileRevision struct {
	ID          int64
	FileID      int64
	BranchID    int64
	CommitID    int64
	DirectoryID int64
	ShortName   string
	ContentID   string
	Size        int64
	Attributes  uint32
	CreatedAt   time.Time
}

// Promotion links a feature branch revision to the parent branch revision
// that promoted it. A promoted revision no longer counts as the feature
// branch's own copy of the file.
type Promotion struct {
	FeatureRevisionID int64
	ParentRevisionID  int64
}

// SkinnyLogfileInfo is the lightweight projection of a file revision used in
// responses and notifications. It is always recomputed from storage.
type SkinnyLogfileInfo struct {
	FileID       int64     `json:"fileId"`
	RevisionID   int64     `json:"revisionId"`
	CommitID     int64     `json:"commitId"`
	BranchID     int64     `json:"branchId"`
	ShortName    string    `json:"shortName"`
	AppendedPath string    `json:"appendedPath"`
	Size         int64     `json:"size"`
	Attributes   uint32    `json:"attributes"`
	ContentID    string    `json:"contentId"`
	LastEditBy   string    `json:"lastEditBy"`
	LastEditAt   time.Time `json:"lastEditAt"`
}

// DirectoryCoordinate names a logical directory in the versioned tree.
type DirectoryCoordinate struct {
	ProjectName  string `json:"projectName"`
	BranchName   string `json:"branchName"`
	AppendedPath string `json:"appendedPath"`
}

// String renders the coordinate as project/branch/path for logs.
func (c DirectoryCoordinate) String() string {
	return path.Join(c.ProjectName, c.branchOrTrunk(), c.AppendedPath)
}

func (c DirectoryCoordinate) branchOrTrunk() string {
	if c.BranchName == "" {
		return TrunkBranchName
	}
	return c.BranchName
}

// DirectoryCoordinateIDs is the resolved form of a DirectoryCoordinate.
type DirectoryCoordinateIDs struct {
	ProjectID   int64
	BranchID    int64
	DirectoryID int64
}

// FilePromotionInfo describes one pending promotion. The Feature fields give
// the file's location on the feature branch, the Parent fields its location on
// the parent branch before the promotion.
type FilePromotionInfo struct {
	FileID                  int64  `json:"fileId"`
	FeatureBranchRevisionID int64  `json:"featureBranchRevisionId"`
	FeatureAppendedPath     string `json:"featureAppendedPath"`
	FeatureShortName        string `json:"featureShortName"`
	ParentAppendedPath      string `json:"parentAppendedPath"`
	ParentShortName         string `json:"parentShortName"`
}

// CleanAppendedPath normalizes a client supplied directory path: forward
// slashes, no leading or trailing separators, "" for the project root.
func CleanAppendedPath(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return ""
	}
	return cleaned[1:]
}
