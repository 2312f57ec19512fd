package feed

import (
	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/iserror"
	"github.com/imath/ideastream/internal/model"
	"github.com/pkg/errors"
)

// A Tracker owns the item to group attachments. It validates status and
// membership compatibility before storing a mapping and it never touches
// activity records: callers resync those when the effective group changes.
type Tracker struct {
	db database.Client
}

// NewTracker instantiates a new Tracker.
func NewTracker(db database.Client) *Tracker {
	return &Tracker{db: db}
}

// Attach maps the item to the group. It fails with IncompatibleVisibility
// when the item status does not match the group visibility and with
// NotAMember when the item author does not belong to the group; both leave no
// partial state. It returns the prior attachment, if any, so the caller can
// resync the records of the previous group.
func (t *Tracker) Attach(item *model.Item, group *model.Group) (*model.Attachment, error) {
	if !Compatible(item.Status, group.Visibility) {
		return nil, iserror.IncompatibleVisibility("item status is not compatible with the group visibility")
	}

	member, err := t.db.IsGroupMember(item.AuthorID, group.ID)
	if err != nil {
		return nil, errors.Wrap(err, "could not check group membership")
	}
	if !member {
		return nil, iserror.NotAMember("item author does not belong to the group")
	}

	prior, err := t.Get(item.ID)
	if err != nil {
		return nil, err
	}

	if prior != nil {
		if prior.GroupID == group.ID {
			return prior, nil
		}

		previous := *prior
		prior.GroupID = group.ID
		if err := t.db.Save(prior); err != nil {
			return nil, errors.Wrap(err, "could not move attachment")
		}
		return &previous, nil
	}

	attachment := &model.Attachment{
		ItemID:  item.ID,
		GroupID: group.ID,
	}
	if err := t.db.Save(attachment); err != nil {
		return nil, errors.Wrap(err, "could not save attachment")
	}
	return nil, nil
}

// Detach removes the item's attachment. Detaching an unattached item is a
// no-op.
func (t *Tracker) Detach(itemID string) error {
	return errors.Wrap(t.db.DeleteAttachment(itemID), "could not detach item")
}

// Get returns the item's attachment or nil when the item is unattached.
func (t *Tracker) Get(itemID string) (*model.Attachment, error) {
	attachment, err := t.db.FindAttachment(itemID)
	if err != nil {
		if t.db.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not get attachment")
	}
	return attachment, nil
}

// BulkDetach removes every mapping to the group, used when the group is
// deleted. Items whose status is only meaningful inside the group are
// bulk-republished through the item storage before the affected item ids are
// returned.
func (t *Tracker) BulkDetach(group *model.Group) ([]string, error) {
	attachments, err := t.db.FindAttachmentsByGroup(group.ID)
	if err != nil {
		return nil, err
	}

	affected := make([]string, 0, len(attachments))
	repair := make([]string, 0)

	for _, attachment := range attachments {
		if err := t.db.DeleteAttachment(attachment.ItemID); err != nil {
			return affected, errors.Wrap(err, "could not bulk detach")
		}
		affected = append(affected, attachment.ItemID)

		item, err := t.db.FindItem(attachment.ItemID)
		if err != nil {
			if t.db.IsNotFound(err) {
				continue
			}
			return affected, errors.Wrap(err, "could not load detached item")
		}

		if !ValidUnattached(item) {
			repair = append(repair, item.ID)
		}
	}

	if len(repair) > 0 {
		if err := t.db.BulkSetItemStatus(repair, model.StatusPublic); err != nil {
			return affected, errors.Wrap(err, "could not repair detached item statuses")
		}
	}

	return affected, nil
}
