package model

// A SubjectType identifies what an activity record announces.
type SubjectType string

// All known activity subject types.
const (
	SubjectNewItem        SubjectType = "new-item"
	SubjectNewItemComment SubjectType = "new-item-comment"
)

// A Channel is the feed context an activity record belongs to.
type Channel string

// All known feed channels.
const (
	ChannelGroupFeed  Channel = "group-feed"
	ChannelMemberFeed Channel = "member-feed"
)

// A FeedVisibility is the audience level of an activity record.
type FeedVisibility string

// All known feed visibilities.
const (
	FeedPublic     FeedVisibility = "public"
	FeedRestricted FeedVisibility = "restricted"
)

// DefaultChannelItemID is the channel item id of records outside of any group.
const DefaultChannelItemID = "0"

// An Activity represents a feed store record, a denormalized announcement of
// an item or comment event. At most one active record exists per target.
type Activity struct {
	Base `msgpack:",inline" storm:"inline"`

	SubjectType   SubjectType    `json:"subject_type"    msgpack:"subject_type"    storm:"index"`
	Channel       Channel        `json:"channel"         msgpack:"channel"         storm:"index"`
	ChannelItemID string         `json:"channel_item_id" msgpack:"channel_item_id" storm:"index"`
	TargetID      string         `json:"target_id"       msgpack:"target_id"       storm:"index"`
	Visibility    FeedVisibility `json:"visibility"      msgpack:"visibility"      storm:"index"`
	AuthorID      string         `json:"author_id"       msgpack:"author_id"       storm:"index"`
}
