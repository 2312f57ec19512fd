package feed_test

import (
	"testing"

	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/feed"
	"github.com/imath/ideastream/internal/model"
	"github.com/stretchr/testify/assert"
)

// synchronizer builds a fresh processing unit, the way one handled event does.
func synchronizer(db database.Client) *feed.Synchronizer {
	return feed.NewSynchronizer(db, feed.NewRequestCache())
}

func TestSynchronizerOnItemCreated(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	item := createItem(db, model.StatusPublic, "", "author")

	assert.NoError(t, synchronizer(db).OnItemCreated(item, feed.NoGroup()))

	record, err := db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.FeedPublic, record.Visibility)
	assert.Equal(t, model.ChannelMemberFeed, record.Channel)
	assert.Equal(t, model.DefaultChannelItemID, record.ChannelItemID)
	assert.Equal(t, "author", record.AuthorID)

	// A replayed creation does not duplicate the record.
	assert.NoError(t, synchronizer(db).OnItemCreated(item, feed.NoGroup()))

	records, err := db.FindActivitiesBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSynchronizerOnItemCreatedSoftRemoved(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	for _, item := range []*model.Item{
		createItem(db, model.StatusDraft, "", "author"),
		createItem(db, model.StatusPending, "", "author"),
		createItem(db, model.StatusPublic, "s3cret", "author"),
	} {
		assert.NoError(t, synchronizer(db).OnItemCreated(item, feed.NoGroup()))

		records, err := db.FindActivitiesBySubject(model.SubjectNewItem, item.ID)
		assert.NoError(t, err)
		assert.Empty(t, records)
	}
}

func TestSynchronizerOnItemCreatedRestrictedInPrivateGroup(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPrivate)
	item := createItem(db, model.StatusRestricted, "", "author")
	join(db, "author", group.ID)

	comment1 := createComment(db, item.ID, "alice", model.CommentApproved)
	comment2 := createComment(db, item.ID, "bob", model.CommentApproved)
	createComment(db, item.ID, "carol", model.CommentUnapproved)

	sync := synchronizer(db)
	_, err := sync.Tracker().Attach(item, group)
	assert.NoError(t, err)
	assert.NoError(t, sync.OnItemCreated(item, feed.NoGroup()))

	// The item record is created directly as restricted on the group feed.
	record, err := db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.FeedRestricted, record.Visibility)
	assert.Equal(t, model.ChannelGroupFeed, record.Channel)
	assert.Equal(t, group.ID, record.ChannelItemID)

	// So are the records of the already approved comments.
	for _, commentID := range []string{comment1.ID, comment2.ID} {
		record, err = db.FindActivityBySubject(model.SubjectNewItemComment, commentID)
		assert.NoError(t, err)
		assert.Equal(t, model.FeedRestricted, record.Visibility)
		assert.Equal(t, model.ChannelGroupFeed, record.Channel)
		assert.Equal(t, group.ID, record.ChannelItemID)
	}

	// The unapproved comment got none.
	records, err := db.FindActivitiesBySubjectTypes([]model.SubjectType{model.SubjectNewItemComment})
	assert.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSynchronizerOnItemStatusChanged(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	item := createItem(db, model.StatusPublic, "", "author")
	assert.NoError(t, synchronizer(db).OnItemCreated(item, feed.NoGroup()))

	record, err := db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)

	// Privatize: the same record flips to restricted, no delete/recreate.
	item.Status = model.StatusRestricted
	assert.NoError(t, db.Save(item))
	assert.NoError(t, synchronizer(db).OnItemStatusChanged(item, model.StatusPublic, feed.NoGroup()))

	flipped, err := db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, record.ID, flipped.ID)
	assert.Equal(t, model.FeedRestricted, flipped.Visibility)

	// And back.
	item.Status = model.StatusPublic
	assert.NoError(t, db.Save(item))
	assert.NoError(t, synchronizer(db).OnItemStatusChanged(item, model.StatusRestricted, feed.NoGroup()))

	flipped, err = db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, record.ID, flipped.ID)
	assert.Equal(t, model.FeedPublic, flipped.Visibility)
}

func TestSynchronizerOnItemStatusChangedSoftRemoved(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	item := createItem(db, model.StatusPublic, "", "author")
	comment := createComment(db, item.ID, "alice", model.CommentApproved)

	sync := synchronizer(db)
	assert.NoError(t, sync.OnItemCreated(item, feed.NoGroup()))
	assert.NoError(t, sync.OnCommentApprovalChanged(comment, model.CommentUnapproved, item, feed.NoGroup()))

	item.Status = model.StatusTrashed
	assert.NoError(t, db.Save(item))
	assert.NoError(t, synchronizer(db).OnItemStatusChanged(item, model.StatusPublic, feed.NoGroup()))

	records, err := db.FindActivitiesBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Empty(t, records)

	records, err = db.FindActivitiesBySubject(model.SubjectNewItemComment, comment.ID)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestSynchronizerOnItemStatusChangedDedupe(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	item := createItem(db, model.StatusRestricted, "", "author")
	assert.NoError(t, synchronizer(db).OnItemCreated(item, feed.NoGroup()))

	// A duplicate left behind by a privatize/republish race.
	duplicate := &model.Activity{
		SubjectType:   model.SubjectNewItem,
		Channel:       model.ChannelMemberFeed,
		ChannelItemID: model.DefaultChannelItemID,
		TargetID:      item.ID,
		Visibility:    model.FeedRestricted,
		AuthorID:      "author",
	}
	assert.NoError(t, db.Save(duplicate))

	item.Status = model.StatusPublic
	assert.NoError(t, db.Save(item))
	assert.NoError(t, synchronizer(db).OnItemStatusChanged(item, model.StatusRestricted, feed.NoGroup()))

	records, err := db.FindActivitiesBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, model.FeedPublic, records[0].Visibility)
}

func TestSynchronizerOnCommentApprovalChanged(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	item := createItem(db, model.StatusPublic, "", "author")
	assert.NoError(t, synchronizer(db).OnItemCreated(item, feed.NoGroup()))

	comment := createComment(db, item.ID, "alice", model.CommentApproved)

	sync := synchronizer(db)
	assert.NoError(t, sync.OnCommentApprovalChanged(comment, model.CommentUnapproved, item, feed.NoGroup()))

	record, err := db.FindActivityBySubject(model.SubjectNewItemComment, comment.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.FeedPublic, record.Visibility)
	assert.Equal(t, "alice", record.AuthorID)

	// A re-approval triggered by an edit within the same unit is a no-op.
	assert.NoError(t, sync.OnCommentApprovalChanged(comment, model.CommentApproved, item, feed.NoGroup()))

	records, err := db.FindActivitiesBySubject(model.SubjectNewItemComment, comment.ID)
	assert.NoError(t, err)
	assert.Len(t, records, 1)

	// Unapproving deletes the record.
	comment.State = model.CommentUnapproved
	assert.NoError(t, db.Save(comment))
	assert.NoError(t, synchronizer(db).OnCommentApprovalChanged(comment, model.CommentApproved, item, feed.NoGroup()))

	records, err = db.FindActivitiesBySubject(model.SubjectNewItemComment, comment.ID)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestSynchronizerOnCommentApprovalChangedCurrentGroup(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPublic)
	item := createItem(db, model.StatusPublic, "", "author")
	assert.NoError(t, synchronizer(db).OnItemCreated(item, feed.NoGroup()))

	// Moderated from the group screen while the item has no attachment: the
	// group the event happened in scopes the record.
	comment := createComment(db, item.ID, "alice", model.CommentApproved)
	assert.NoError(t, synchronizer(db).OnCommentApprovalChanged(comment, model.CommentUnapproved, item, feed.CurrentGroup(group.ID)))

	record, err := db.FindActivityBySubject(model.SubjectNewItemComment, comment.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelGroupFeed, record.Channel)
	assert.Equal(t, group.ID, record.ChannelItemID)
	assert.Equal(t, model.FeedPublic, record.Visibility)
}

func TestSynchronizerOnCommentApprovalChangedCurrentGroupAttachmentWins(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	attached := createGroup(db, model.GroupPublic)
	other := createGroup(db, model.GroupPublic)
	item := createItem(db, model.StatusPublic, "", "author")
	join(db, "author", attached.ID)

	sync := synchronizer(db)
	_, err := sync.Tracker().Attach(item, attached)
	assert.NoError(t, err)

	comment := createComment(db, item.ID, "alice", model.CommentApproved)
	assert.NoError(t, sync.OnCommentApprovalChanged(comment, model.CommentUnapproved, item, feed.CurrentGroup(other.ID)))

	// The stored attachment wins over the screen the moderation came from.
	record, err := db.FindActivityBySubject(model.SubjectNewItemComment, comment.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelGroupFeed, record.Channel)
	assert.Equal(t, attached.ID, record.ChannelItemID)
}

func TestSynchronizerOnGroupAttachmentChanged(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPublic)
	item := createItem(db, model.StatusPublic, "", "author")
	join(db, "author", group.ID)

	assert.NoError(t, synchronizer(db).OnItemCreated(item, feed.NoGroup()))

	sync := synchronizer(db)
	_, err := sync.Tracker().Attach(item, group)
	assert.NoError(t, err)
	assert.NoError(t, sync.OnGroupAttachmentChanged(item, feed.NoGroup()))

	record, err := db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelGroupFeed, record.Channel)
	assert.Equal(t, group.ID, record.ChannelItemID)
	assert.Equal(t, model.FeedPublic, record.Visibility)
}

func TestSynchronizerOnItemRemovedFromGroup(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPublic)
	item := createItem(db, model.StatusPublic, "", "author")
	join(db, "author", group.ID)

	sync := synchronizer(db)
	_, err := sync.Tracker().Attach(item, group)
	assert.NoError(t, err)
	assert.NoError(t, sync.OnItemCreated(item, feed.NoGroup()))

	assert.NoError(t, synchronizer(db).OnItemRemovedFromGroup(item))

	record, err := db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelMemberFeed, record.Channel)
	assert.Equal(t, model.DefaultChannelItemID, record.ChannelItemID)

	attachment, err := feed.NewTracker(db).Get(item.ID)
	assert.NoError(t, err)
	assert.Nil(t, attachment)
}

func TestSynchronizerOnItemRemovedFromGroupRepublishes(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPrivate)
	item := createItem(db, model.StatusRestricted, "", "author")
	join(db, "author", group.ID)

	sync := synchronizer(db)
	_, err := sync.Tracker().Attach(item, group)
	assert.NoError(t, err)
	assert.NoError(t, sync.OnItemCreated(item, feed.NoGroup()))

	assert.NoError(t, synchronizer(db).OnItemRemovedFromGroup(item))

	// The status was restricted only by the group scoping, the item is
	// republished and its record follows.
	stored, err := db.FindItem(item.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPublic, stored.Status)

	record, err := db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelMemberFeed, record.Channel)
	assert.Equal(t, model.DefaultChannelItemID, record.ChannelItemID)
	assert.Equal(t, model.FeedPublic, record.Visibility)
}

func TestSynchronizerOnGroupVisibilityChanged(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPrivate)
	item := createItem(db, model.StatusRestricted, "", "author")
	join(db, "author", group.ID)

	sync := synchronizer(db)
	_, err := sync.Tracker().Attach(item, group)
	assert.NoError(t, err)
	assert.NoError(t, sync.OnItemCreated(item, feed.NoGroup()))

	// Going public makes the restricted item incompatible: it is detached
	// and republished.
	group.Visibility = model.GroupPublic
	assert.NoError(t, db.Save(group))
	assert.NoError(t, synchronizer(db).OnGroupVisibilityChanged(group, model.GroupPrivate))

	attachment, err := feed.NewTracker(db).Get(item.ID)
	assert.NoError(t, err)
	assert.Nil(t, attachment)

	stored, err := db.FindItem(item.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusPublic, stored.Status)

	record, err := db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelMemberFeed, record.Channel)
	assert.Equal(t, model.FeedPublic, record.Visibility)
}

func TestSynchronizerOnGroupDeleted(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPrivate)
	scoped := createItem(db, model.StatusRestricted, "", "author")
	locked := createItem(db, model.StatusRestricted, "s3cret", "author")
	join(db, "author", group.ID)

	sync := synchronizer(db)
	for _, item := range []*model.Item{scoped, locked} {
		_, err := sync.Tracker().Attach(item, group)
		assert.NoError(t, err)
		assert.NoError(t, sync.OnItemCreated(item, feed.NoGroup()))
	}

	assert.NoError(t, synchronizer(db).OnGroupDeleted(group))

	tracker := feed.NewTracker(db)
	for _, item := range []*model.Item{scoped, locked} {
		attachment, err := tracker.Get(item.ID)
		assert.NoError(t, err)
		assert.Nil(t, attachment)
	}

	// The group-scoped item is republished on the member feed.
	record, err := db.FindActivityBySubject(model.SubjectNewItem, scoped.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelMemberFeed, record.Channel)
	assert.Equal(t, model.FeedPublic, record.Visibility)

	// The passworded one never had a record to begin with.
	records, err := db.FindActivitiesBySubject(model.SubjectNewItem, locked.ID)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestSynchronizerOnItemPermanentlyRemoved(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPublic)
	item := createItem(db, model.StatusPublic, "", "author")
	join(db, "author", group.ID)
	comment := createComment(db, item.ID, "alice", model.CommentApproved)

	sync := synchronizer(db)
	_, err := sync.Tracker().Attach(item, group)
	assert.NoError(t, err)
	assert.NoError(t, sync.OnItemCreated(item, feed.NoGroup()))
	assert.NoError(t, sync.OnCommentApprovalChanged(comment, model.CommentUnapproved, item, feed.NoGroup()))

	assert.NoError(t, synchronizer(db).OnItemPermanentlyRemoved(item.ID))

	records, err := db.FindActivitiesBySubject(model.SubjectNewItem, item.ID)
	assert.NoError(t, err)
	assert.Empty(t, records)

	records, err = db.FindActivitiesBySubject(model.SubjectNewItemComment, comment.ID)
	assert.NoError(t, err)
	assert.Empty(t, records)

	attachment, err := feed.NewTracker(db).Get(item.ID)
	assert.NoError(t, err)
	assert.Nil(t, attachment)

	// Deleting twice is a no-op.
	assert.NoError(t, synchronizer(db).OnItemPermanentlyRemoved(item.ID))
}

func TestSynchronizerOnUserRemoved(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	mine := createItem(db, model.StatusPublic, "", "alice")
	other := createItem(db, model.StatusPublic, "", "bob")

	sync := synchronizer(db)
	assert.NoError(t, sync.OnItemCreated(mine, feed.NoGroup()))
	assert.NoError(t, sync.OnItemCreated(other, feed.NoGroup()))

	assert.NoError(t, synchronizer(db).OnUserRemoved("alice", ""))

	records, err := db.FindActivitiesBySubject(model.SubjectNewItem, mine.ID)
	assert.NoError(t, err)
	assert.Empty(t, records)

	records, err = db.FindActivitiesBySubject(model.SubjectNewItem, other.ID)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSynchronizerOnUserRemovedFromGroup(t *testing.T) {
	db, cleanup := setup()
	defer cleanup()

	group := createGroup(db, model.GroupPublic)
	mine := createItem(db, model.StatusPublic, "", "alice")
	other := createItem(db, model.StatusPublic, "", "bob")
	join(db, "alice", group.ID)
	join(db, "bob", group.ID)

	sync := synchronizer(db)
	for _, item := range []*model.Item{mine, other} {
		_, err := sync.Tracker().Attach(item, group)
		assert.NoError(t, err)
		assert.NoError(t, sync.OnItemCreated(item, feed.NoGroup()))
	}

	assert.NoError(t, synchronizer(db).OnUserRemoved("alice", group.ID))

	tracker := feed.NewTracker(db)

	// Only alice's item leaves the group, its record moves to her member feed.
	attachment, err := tracker.Get(mine.ID)
	assert.NoError(t, err)
	assert.Nil(t, attachment)

	record, err := db.FindActivityBySubject(model.SubjectNewItem, mine.ID)
	assert.NoError(t, err)
	assert.Equal(t, model.ChannelMemberFeed, record.Channel)

	attachment, err = tracker.Get(other.ID)
	assert.NoError(t, err)
	assert.NotNil(t, attachment)
}
