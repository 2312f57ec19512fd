package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/msgpack"
	"github.com/asdine/storm/v3/q"
	"github.com/gofrs/uuid"
	"github.com/imath/ideastream/internal/iserror"
	"github.com/imath/ideastream/internal/model"
	"github.com/imath/ideastream/pkg/stormbinc"
	"github.com/imath/ideastream/pkg/stormcbor"
	"github.com/pkg/errors"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the default format used to store data in the database.
var StormCodec = storm.Codec(msgpack.Codec)

// StormCodecOption returns the storm codec option for the given codec name.
// An empty name falls back to msgpack.
func StormCodecOption(name string) (func(*storm.Options) error, error) {
	switch name {
	case "", "msgpack":
		return StormCodec, nil
	case "binc":
		return storm.Codec(stormbinc.Codec), nil
	case "cbor":
		return storm.Codec(stormcbor.Codec), nil
	}
	return nil, errors.Errorf("unknown database codec: %s", name)
}

var indexedModels = []model.Model{
	&model.Item{},
	&model.Comment{},
	&model.Group{},
	&model.Membership{},
	&model.Activity{},
	&model.Attachment{},
}

// StormInit initializes Storm database.
func StormInit(database, codec string) error {
	option, err := StormCodecOption(codec)
	if err != nil {
		return err
	}

	db, err := storm.Open(database, option)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for _, m := range indexedModels {
		if err := db.Init(m); err != nil {
			return errors.Wrap(err, "could not init index")
		}
	}
	return nil
}

// StormReIndex reindex Storm database.
func StormReIndex(database, codec string) error {
	option, err := StormCodecOption(codec)
	if err != nil {
		return err
	}

	db, err := storm.Open(database, option)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	for _, m := range indexedModels {
		if err := db.ReIndex(m); err != nil {
			return errors.Wrap(err, "could not reindex")
		}
	}
	return nil
}

// StormOpen returns a new Storm database connection using the default codec.
func StormOpen(database string) (Client, error) {
	return StormOpenCodec(database, "")
}

// StormOpenCodec returns a new Storm database connection using the given codec.
func StormOpenCodec(database, codec string) (Client, error) {
	option, err := StormCodecOption(codec)
	if err != nil {
		return nil, err
	}

	db, err := storm.Open(database, option)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

// Save inserts or updates the entry in database with the given model.
func (c *strm) Save(m model.Model) error {
	t := time.Now().UTC()
	m.SetUpdatedAt(t)

	if m.GetID() == "" {
		m.SetID(uuid.Must(uuid.NewV4()).String())
		m.SetCreatedAt(t)
	}

	return errors.Wrap(c.db.Save(m), "could not save the model")
}

// Delete deletes the entry in database with the given model.
func (c *strm) Delete(m model.Model) error {
	return errors.Wrap(c.db.DeleteStruct(m), "could not delete the model")
}

// Close the database.
func (c *strm) Close() error {
	return c.db.Close()
}

// IsNotFound returns true if err is a not found error.
func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

// FindItem returns the item for the given id (UUID).
func (c *strm) FindItem(id string) (*model.Item, error) {
	var item model.Item
	if err := c.db.One("ID", id, &item); err != nil {
		return nil, errors.Wrap(err, "find item by id")
	}
	return &item, nil
}

// BulkSetItemStatus sets the status of every given item.
func (c *strm) BulkSetItemStatus(ids []string, status model.ItemStatus) error {
	var failed []string
	for _, id := range ids {
		err := c.db.UpdateField(&model.Item{Base: model.Base{ID: id}}, "Status", status)
		if err != nil {
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		return iserror.PartialBatchFailure(failed)
	}
	return nil
}

// FindComment returns the comment for the given id (UUID).
func (c *strm) FindComment(id string) (*model.Comment, error) {
	var comment model.Comment
	if err := c.db.One("ID", id, &comment); err != nil {
		return nil, errors.Wrap(err, "find comment by id")
	}
	return &comment, nil
}

// FindCommentsByItem returns all the comments currently on the given item.
func (c *strm) FindCommentsByItem(itemID string) ([]*model.Comment, error) {
	comments := make([]*model.Comment, 0)
	err := c.db.Select(q.Eq("ItemID", itemID)).OrderBy("CreatedAt").Find(&comments)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find comments by item")
	}
	return comments, nil
}

// FindGroup returns the group for the given id (UUID).
func (c *strm) FindGroup(id string) (*model.Group, error) {
	var group model.Group
	if err := c.db.One("ID", id, &group); err != nil {
		return nil, errors.Wrap(err, "find group by id")
	}
	return &group, nil
}

// FindMembership returns the membership joining the given user and group.
func (c *strm) FindMembership(userID, groupID string) (*model.Membership, error) {
	var membership model.Membership
	err := c.db.Select(q.Eq("UserID", userID), q.Eq("GroupID", groupID)).First(&membership)
	if err != nil {
		return nil, errors.Wrap(err, "find membership")
	}
	return &membership, nil
}

// FindMembershipsByGroup returns every membership of the given group.
func (c *strm) FindMembershipsByGroup(groupID string) ([]*model.Membership, error) {
	memberships := make([]*model.Membership, 0)
	err := c.db.Select(q.Eq("GroupID", groupID)).OrderBy("CreatedAt").Find(&memberships)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find memberships by group")
	}
	return memberships, nil
}

// IsGroupMember returns true when the given user belongs to the given group.
func (c *strm) IsGroupMember(userID, groupID string) (bool, error) {
	_, err := c.FindMembership(userID, groupID)
	if err != nil {
		if c.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// FindActivity returns the activity record for the given id (UUID).
func (c *strm) FindActivity(id string) (*model.Activity, error) {
	var activity model.Activity
	if err := c.db.One("ID", id, &activity); err != nil {
		return nil, errors.Wrap(err, "find activity by id")
	}
	return &activity, nil
}

// FindActivityBySubject returns the newest activity record for the given
// subject type and target.
func (c *strm) FindActivityBySubject(st model.SubjectType, targetID string) (*model.Activity, error) {
	var activity model.Activity
	err := c.db.Select(q.Eq("SubjectType", st), q.Eq("TargetID", targetID)).
		OrderBy("CreatedAt").Reverse().First(&activity)
	if err != nil {
		return nil, errors.Wrap(err, "find activity by subject")
	}
	return &activity, nil
}

// FindActivitiesBySubject returns every activity record for the given subject
// type and target, newest first.
func (c *strm) FindActivitiesBySubject(st model.SubjectType, targetID string) ([]*model.Activity, error) {
	activities := make([]*model.Activity, 0)
	err := c.db.Select(q.Eq("SubjectType", st), q.Eq("TargetID", targetID)).
		OrderBy("CreatedAt").Reverse().Find(&activities)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find activities by subject")
	}
	return activities, nil
}

// FindActivitiesByTargets returns the activity records for the given subject
// type and targets.
func (c *strm) FindActivitiesByTargets(st model.SubjectType, targetIDs []string) ([]*model.Activity, error) {
	activities := make([]*model.Activity, 0)
	err := c.db.Select(q.Eq("SubjectType", st), q.In("TargetID", targetIDs)).
		OrderBy("CreatedAt").Find(&activities)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find activities by targets")
	}
	return activities, nil
}

// FindActivitiesBySubjectTypes returns all the activity records of the given
// subject types.
func (c *strm) FindActivitiesBySubjectTypes(types []model.SubjectType) ([]*model.Activity, error) {
	activities := make([]*model.Activity, 0)
	err := c.db.Select(q.In("SubjectType", types)).OrderBy("CreatedAt").Find(&activities)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find activities by subject types")
	}
	return activities, nil
}

// FindActivitiesByAuthor returns all the activity records authored by the
// given user.
func (c *strm) FindActivitiesByAuthor(authorID string) ([]*model.Activity, error) {
	activities := make([]*model.Activity, 0)
	err := c.db.Select(q.Eq("AuthorID", authorID)).OrderBy("CreatedAt").Find(&activities)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find activities by author")
	}
	return activities, nil
}

// DeleteActivity deletes the activity record for the given id.
func (c *strm) DeleteActivity(id string) error {
	err := c.db.Select(q.Eq("ID", id)).Delete(&model.Activity{})
	if err != nil && err != storm.ErrNotFound {
		return errors.Wrap(err, "could not delete activity")
	}
	return nil
}

// BulkSetActivityVisibility sets the feed visibility of every given record.
func (c *strm) BulkSetActivityVisibility(ids []string, visibility model.FeedVisibility) error {
	var failed []string
	for _, id := range ids {
		err := c.db.UpdateField(&model.Activity{Base: model.Base{ID: id}}, "Visibility", visibility)
		if err != nil {
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		return iserror.PartialBatchFailure(failed)
	}
	return nil
}

// BulkSetActivityChannel sets the channel and channel item id of every given record.
func (c *strm) BulkSetActivityChannel(ids []string, channel model.Channel, channelItemID string) error {
	var failed []string
	for _, id := range ids {
		record := &model.Activity{Base: model.Base{ID: id}}
		if err := c.db.UpdateField(record, "Channel", channel); err != nil {
			failed = append(failed, id)
			continue
		}
		if err := c.db.UpdateField(record, "ChannelItemID", channelItemID); err != nil {
			failed = append(failed, id)
		}
	}

	if len(failed) > 0 {
		return iserror.PartialBatchFailure(failed)
	}
	return nil
}

// FindAttachment returns the attachment for the given item id.
func (c *strm) FindAttachment(itemID string) (*model.Attachment, error) {
	var attachment model.Attachment
	if err := c.db.One("ItemID", itemID, &attachment); err != nil {
		return nil, errors.Wrap(err, "find attachment by item id")
	}
	return &attachment, nil
}

// FindAttachmentsByGroup returns every attachment mapping to the given group.
func (c *strm) FindAttachmentsByGroup(groupID string) ([]*model.Attachment, error) {
	attachments := make([]*model.Attachment, 0)
	err := c.db.Select(q.Eq("GroupID", groupID)).OrderBy("CreatedAt").Find(&attachments)
	if err != nil && !c.IsNotFound(err) {
		return nil, errors.Wrap(err, "could not find attachments by group")
	}
	return attachments, nil
}

// DeleteAttachment removes the attachment for the given item id.
func (c *strm) DeleteAttachment(itemID string) error {
	err := c.db.Select(q.Eq("ItemID", itemID)).Delete(&model.Attachment{})
	if err != nil && err != storm.ErrNotFound {
		return errors.Wrap(err, "could not delete attachment")
	}
	return nil
}
