package model

// An ItemStatus is the publication status of an item.
type ItemStatus string

// All known item statuses.
const (
	StatusPublic     ItemStatus = "public"
	StatusRestricted ItemStatus = "restricted"
	StatusTrashed    ItemStatus = "trashed"
	StatusPending    ItemStatus = "pending"
	StatusDraft      ItemStatus = "draft"
)

// An Item represents a database record mirroring a submitted content entry.
// The canonical item lives in the submission application; this mirror is fed
// by its lifecycle events.
type Item struct {
	Base `msgpack:",inline" storm:"inline"`

	Title    string     `json:"title"     msgpack:"title"`
	Status   ItemStatus `json:"status"    msgpack:"status"    storm:"index"`
	Password string     `json:"password"  msgpack:"password"`
	AuthorID string     `json:"author_id" msgpack:"author_id" storm:"index"`
}

// SoftRemoved returns true when the item must not appear on any feed and the
// absence of activity records is a valid state.
func (i *Item) SoftRemoved() bool {
	if i.Password != "" {
		return true
	}

	switch i.Status {
	case StatusTrashed, StatusDraft, StatusPending:
		return true
	}
	return false
}
