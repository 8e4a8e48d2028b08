package qvcs

import "time"

// RequestKind names an inbound request type.
type RequestKind string

const (
	KindPromoteSimple          RequestKind = "PromoteSimple"
	KindPromoteRename          RequestKind = "PromoteRename"
	KindPromoteMove            RequestKind = "PromoteMove"
	KindPromoteMoveAndRename   RequestKind = "PromoteMoveAndRename"
	KindApplyTag               RequestKind = "ApplyTag"
	KindGetTags                RequestKind = "GetTags"
	KindGetTagsInfo            RequestKind = "GetTagsInfo"
	KindGetBriefCommitInfoList RequestKind = "GetBriefCommitInfoList"
	KindGetMostRecentActivity  RequestKind = "GetMostRecentActivity"
	KindTransactionBegin       RequestKind = "TransactionBegin"
	KindTransactionEnd         RequestKind = "TransactionEnd"
	KindCheckIn                RequestKind = "CheckIn"
	KindGetRevision            RequestKind = "GetRevision"
	KindRegisterObserver       RequestKind = "RegisterObserver"
	KindUnregisterObserver     RequestKind = "UnregisterObserver"
	KindGetInfoForMerge        RequestKind = "GetInfoForMerge"
)

// promotionKinds maps each promotion request kind to its variant.
var promotionKinds = map[RequestKind]PromotionVariant{
	KindPromoteSimple:        PromoteSimple,
	KindPromoteRename:        PromoteRename,
	KindPromoteMove:          PromoteMove,
	KindPromoteMoveAndRename: PromoteMoveAndRename,
}

// Mutates reports whether requests of this kind write to storage.
func (k RequestKind) Mutates() bool {
	switch k {
	case KindApplyTag, KindCheckIn:
		return true
	}
	_, ok := promotionKinds[k]
	return ok
}

// Request is one inbound client request. Fields beyond the common header are
// read only by the kinds that need them.
type Request struct {
	Kind         RequestKind `json:"kind"`
	SyncToken    string      `json:"syncToken"`
	UserName     string      `json:"userName"`
	ProjectName  string      `json:"projectName"`
	BranchName   string      `json:"branchName"`
	AppendedPath string      `json:"appendedPath,omitempty"`

	Promotion *FilePromotionInfo `json:"promotion,omitempty"`

	TagText        string `json:"tagText,omitempty"`
	TagDescription string `json:"tagDescription,omitempty"`
	Moveable       bool   `json:"moveable,omitempty"`

	CommitID int64 `json:"commitId,omitempty"`
	UserOnly bool  `json:"userOnly,omitempty"`
	Limit    int   `json:"limit,omitempty"`

	FileID     int64  `json:"fileId,omitempty"`
	RevisionID int64  `json:"revisionId,omitempty"`
	ShortName  string `json:"shortName,omitempty"`
	Content    []byte `json:"content,omitempty"`
	Attributes uint32 `json:"attributes,omitempty"`
	Message    string `json:"message,omitempty"`
}

// ErrorPayload is the error half of a response.
type ErrorPayload struct {
	Kind         ErrorKind `json:"kind"`
	Message      string    `json:"message"`
	ProjectName  string    `json:"projectName"`
	BranchName   string    `json:"branchName"`
	AppendedPath string    `json:"appendedPath"`
}

// BriefCommitInfo is one row of a commit listing.
type BriefCommitInfo struct {
	CommitID   int64     `json:"commitId"`
	BranchID   int64     `json:"branchId"`
	UserName   string    `json:"userName"`
	CommitDate time.Time `json:"commitDate"`
	Message    string    `json:"message"`
}

// TagInfo is one row of a detailed tag listing.
type TagInfo struct {
	TagID       int64  `json:"tagId"`
	TagText     string `json:"tagText"`
	Description string `json:"description"`
	Moveable    bool   `json:"moveable"`
	CommitID    int64  `json:"commitId"`
}

// Response mirrors a Request. Exactly one is produced per request.
type Response struct {
	Kind      RequestKind   `json:"kind"`
	SyncToken string        `json:"syncToken"`
	Error     *ErrorPayload `json:"error,omitempty"`

	ParentTipRevisionID int64              `json:"parentTipRevisionId,omitempty"`
	PromotedTo          *SkinnyLogfileInfo `json:"promotedToSkinnyLogfileInfo,omitempty"`
	PromotedFrom        *SkinnyLogfileInfo `json:"promotedFromSkinnyLogfileInfo,omitempty"`
	Superseded          *SkinnyLogfileInfo `json:"supersededSkinnyLogfileInfo,omitempty"`

	TagID    int64     `json:"tagId,omitempty"`
	CommitID int64     `json:"commitId,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	TagInfo  []TagInfo `json:"tagInfo,omitempty"`

	Commits            []BriefCommitInfo `json:"commits,omitempty"`
	MostRecentActivity *time.Time        `json:"mostRecentActivity,omitempty"`

	Info    *SkinnyLogfileInfo `json:"info,omitempty"`
	Content []byte             `json:"content,omitempty"`

	TransactionOpen bool `json:"transactionOpen,omitempty"`
}

// OK reports whether the response carries no error.
func (r *Response) OK() bool {
	return r.Error == nil
}
