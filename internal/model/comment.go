package model

// A CommentState is the moderation state of a comment.
type CommentState string

// All known comment states.
const (
	CommentApproved   CommentState = "approved"
	CommentUnapproved CommentState = "unapproved"
	CommentSpam       CommentState = "spam"
	CommentTrashed    CommentState = "trashed"
	CommentDeleted    CommentState = "deleted"
)

// A Comment represents a database record mirroring a comment left on an item.
type Comment struct {
	Base `msgpack:",inline" storm:"inline"`

	ItemID   string       `json:"item_id"   msgpack:"item_id"   storm:"index"`
	AuthorID string       `json:"author_id" msgpack:"author_id" storm:"index"`
	State    CommentState `json:"state"     msgpack:"state"     storm:"index"`
}
