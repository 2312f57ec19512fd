package model

// A GroupVisibility is the audience level of a community group.
type GroupVisibility string

// All known group visibilities.
const (
	GroupPublic  GroupVisibility = "public"
	GroupPrivate GroupVisibility = "private"
	GroupHidden  GroupVisibility = "hidden"
)

type (
	// A Group represents a database record mirroring a community group that
	// items can be scoped to.
	Group struct {
		Base `msgpack:",inline" storm:"inline"`

		Name       string          `json:"name"       msgpack:"name"`
		Visibility GroupVisibility `json:"visibility" msgpack:"visibility" storm:"index"`
	}

	// A Membership is the join between a user and a group. Exactly one
	// record per (user, group) pair.
	Membership struct {
		Base `msgpack:",inline" storm:"inline"`

		UserID  string `json:"user_id"  msgpack:"user_id"  storm:"index"`
		GroupID string `json:"group_id" msgpack:"group_id" storm:"index"`
	}
)
