// Package feed implements the reconciliation engine keeping activity records
// in agreement with the canonical items and their group attachments.
package feed

import (
	"github.com/imath/ideastream/internal/model"
)

// A Placement is the computed feed destination of an activity record.
type Placement struct {
	Visibility    model.FeedVisibility
	Channel       model.Channel
	ChannelItemID string
}

// Place maps an item state to its feed placement. First match wins:
//  1. a password always forces a restricted member-feed record,
//  2. without a group the member feed is used, public only for public items,
//  3. with a group the group feed is used, public only when both the item
//     status and the group visibility are public.
//
// Place performs no I/O. The synchronizer and the reconciliation job share it
// so they can never disagree on a record's correct state.
func Place(status model.ItemStatus, password string, group *model.Group) Placement {
	if password != "" {
		return Placement{
			Visibility:    model.FeedRestricted,
			Channel:       model.ChannelMemberFeed,
			ChannelItemID: model.DefaultChannelItemID,
		}
	}

	if group == nil {
		visibility := model.FeedRestricted
		if status == model.StatusPublic {
			visibility = model.FeedPublic
		}

		return Placement{
			Visibility:    visibility,
			Channel:       model.ChannelMemberFeed,
			ChannelItemID: model.DefaultChannelItemID,
		}
	}

	visibility := model.FeedRestricted
	if status == model.StatusPublic && group.Visibility == model.GroupPublic {
		visibility = model.FeedPublic
	}

	return Placement{
		Visibility:    visibility,
		Channel:       model.ChannelGroupFeed,
		ChannelItemID: group.ID,
	}
}

// Compatible returns true when an item status can coexist with a group
// visibility: public items belong to public groups, restricted items to
// private or hidden ones. Attachments violating this rule are detached.
func Compatible(status model.ItemStatus, visibility model.GroupVisibility) bool {
	switch status {
	case model.StatusPublic:
		return visibility == model.GroupPublic
	case model.StatusRestricted:
		return visibility == model.GroupPrivate || visibility == model.GroupHidden
	}
	return false
}

// ValidUnattached returns true when an item keeps a meaningful status once
// detached from its group. Restricted items without a password are restricted
// only by group scoping and must be republished when they lose their group.
func ValidUnattached(item *model.Item) bool {
	return item.Password != "" || item.Status != model.StatusRestricted
}
