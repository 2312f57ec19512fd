package feed

import (
	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/iserror"
	"github.com/imath/ideastream/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type groupContextKind int

const (
	gctxNone groupContextKind = iota
	gctxCurrent
	gctxExplicit
)

// A GroupContext threads the group applying to an event explicitly through
// its payload instead of relying on ambient "currently displayed" state.
type GroupContext struct {
	kind    groupContextKind
	groupID string
}

// NoGroup resolves the group from the item's stored attachment.
func NoGroup() GroupContext {
	return GroupContext{kind: gctxNone}
}

// CurrentGroup is the group the event happened in. The stored attachment
// still wins when one exists.
func CurrentGroup(groupID string) GroupContext {
	return GroupContext{kind: gctxCurrent, groupID: groupID}
}

// ExplicitGroup forces the given group, bypassing the stored attachment.
// An empty id forces the member feed.
func ExplicitGroup(groupID string) GroupContext {
	return GroupContext{kind: gctxExplicit, groupID: groupID}
}

// A Synchronizer reacts to lifecycle events with one idempotent entry point
// per event. It computes the desired state of an item's records through the
// shared placement rules and applies minimal create, update and delete
// operations against the feed store.
//
// A failed write on one record within a batch is logged and skipped, the rest
// of the batch proceeds. The reconciliation job is the backstop for anything
// left inconsistent.
type Synchronizer struct {
	db      database.Client
	tracker *Tracker
	locator *Locator
	cache   *RequestCache
}

// NewSynchronizer instantiates a Synchronizer for one processing unit. The
// given cache must not outlive the unit.
func NewSynchronizer(db database.Client, cache *RequestCache) *Synchronizer {
	if cache == nil {
		cache = NewRequestCache()
	}

	return &Synchronizer{
		db:      db,
		tracker: NewTracker(db),
		locator: NewLocator(db, cache),
		cache:   cache,
	}
}

// Tracker returns the attachment tracker bound to this processing unit.
func (s *Synchronizer) Tracker() *Tracker {
	return s.tracker
}

func (s *Synchronizer) resolveGroup(item *model.Item, gctx GroupContext) (*model.Group, error) {
	groupID := ""

	switch gctx.kind {
	case gctxExplicit:
		groupID = gctx.groupID
	default:
		attachment, err := s.tracker.Get(item.ID)
		if err != nil {
			return nil, err
		}
		if attachment != nil {
			groupID = attachment.GroupID
		} else if gctx.kind == gctxCurrent {
			groupID = gctx.groupID
		}
	}

	if groupID == "" {
		return nil, nil
	}

	group, err := s.db.FindGroup(groupID)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not resolve group")
	}
	return group, nil
}

// createRecord writes a new activity record. Restricted records are skipped
// unless allowRestricted is set, which is the explicit replacement of the
// source's toggled "skip private" global.
func (s *Synchronizer) createRecord(st model.SubjectType, targetID, authorID string, placement Placement, allowRestricted bool) error {
	if placement.Visibility == model.FeedRestricted && !allowRestricted {
		return nil
	}

	record := &model.Activity{
		SubjectType:   st,
		Channel:       placement.Channel,
		ChannelItemID: placement.ChannelItemID,
		TargetID:      targetID,
		Visibility:    placement.Visibility,
		AuthorID:      authorID,
	}
	return errors.Wrap(s.db.Save(record), "could not create activity record")
}

// deleteRecords removes the given records one by one. Failures are logged and
// skipped so the rest of the batch proceeds.
func (s *Synchronizer) deleteRecords(ids []string) {
	for _, id := range ids {
		if err := s.db.DeleteActivity(id); err != nil {
			logrus.WithError(err).WithField("record", id).Error("could not delete activity record")
		}
	}
}

// OnItemCreated handles the creation of an item, or its first edit carrying a
// final status. Public items get a public record right away. Items whose
// status and group map to a restricted placement get their record created
// directly as restricted, with the item's already attached comments synced in
// the same call. Soft-removed items get no record yet.
func (s *Synchronizer) OnItemCreated(item *model.Item, gctx GroupContext) error {
	if item.SoftRemoved() {
		return nil
	}

	group, err := s.resolveGroup(item, gctx)
	if err != nil {
		return err
	}

	placement := Place(item.Status, item.Password, group)

	located, err := s.locator.FindForItem(item)
	if err != nil {
		return err
	}
	if located.ItemRecordID == "" {
		if err := s.createRecord(model.SubjectNewItem, item.ID, item.AuthorID, placement, true); err != nil {
			return err
		}
		s.invalidate(item.ID)
	}

	if placement.Visibility == model.FeedRestricted {
		if err := s.syncComments(item, placement); err != nil {
			return err
		}
	}
	return nil
}

// syncComments creates the missing records of the item's approved comments
// using the item's placement.
func (s *Synchronizer) syncComments(item *model.Item, placement Placement) error {
	comments, err := s.db.FindCommentsByItem(item.ID)
	if err != nil {
		return errors.Wrap(err, "could not list comments for sync")
	}

	for _, comment := range comments {
		if comment.State != model.CommentApproved {
			continue
		}

		_, err := s.db.FindActivityBySubject(model.SubjectNewItemComment, comment.ID)
		if err == nil {
			continue
		}
		if !s.db.IsNotFound(err) {
			return errors.Wrap(err, "could not check comment record")
		}

		if err := s.createRecord(model.SubjectNewItemComment, comment.ID, comment.AuthorID, placement, true); err != nil {
			return err
		}
		s.cache.MarkRecorded(comment.ID)
		s.invalidate(item.ID)
	}
	return nil
}

// OnItemStatusChanged reconciles the item's records after a status or
// password transition. Records that should not exist anymore are deleted,
// missing records are created, and visibility transitions are applied as a
// single batched update with redundant writes skipped.
func (s *Synchronizer) OnItemStatusChanged(item *model.Item, _ model.ItemStatus, gctx GroupContext) error {
	located, err := s.locator.FindForItem(item)
	if err != nil {
		return err
	}

	if item.SoftRemoved() {
		s.deleteRecords(located.AllIDs())
		s.invalidate(item.ID)
		return nil
	}

	if located.Empty() {
		return s.OnItemCreated(item, gctx)
	}

	group, err := s.resolveGroup(item, gctx)
	if err != nil {
		return err
	}
	placement := Place(item.Status, item.Password, group)

	if placement.Visibility == model.FeedPublic {
		located, err = s.dedupe(item, located)
		if err != nil {
			return err
		}
	}

	return s.syncVisibility(item, located, placement)
}

// dedupe keeps the newest item record and deletes the others. Duplicates can
// appear when an item was privatized while a public record still existed.
func (s *Synchronizer) dedupe(item *model.Item, located Located) (Located, error) {
	records, err := s.db.FindActivitiesBySubject(model.SubjectNewItem, item.ID)
	if err != nil {
		return located, err
	}
	if len(records) < 2 {
		return located, nil
	}

	stale := make([]string, 0, len(records)-1)
	for _, record := range records[1:] {
		stale = append(stale, record.ID)
	}
	s.deleteRecords(stale)
	s.invalidate(item.ID)

	return s.locator.FindForItem(item)
}

// syncVisibility applies the target visibility to every found record in one
// batched write, skipped entirely when the found restricted set already
// matches the target.
func (s *Synchronizer) syncVisibility(item *model.Item, located Located, placement Placement) error {
	ids := located.AllIDs()
	if len(ids) == 0 {
		return nil
	}

	switch placement.Visibility {
	case model.FeedRestricted:
		if len(located.AlreadyRestrictedIDs) == len(ids) {
			return nil
		}
	case model.FeedPublic:
		if len(located.AlreadyRestrictedIDs) == 0 {
			return nil
		}
	}

	err := s.db.BulkSetActivityVisibility(ids, placement.Visibility)
	if err != nil {
		if !iserror.IsPartialBatchFailure(err) {
			return err
		}
		logrus.WithField("records", iserror.FailedRecords(err)).Warn("visibility update left records behind")
	}

	s.invalidate(item.ID)
	return nil
}

// OnCommentApprovalChanged reconciles a comment's record after a moderation
// transition. Approved comments on feed-visible items get a record, created
// with restricted explicitly allowed so restricted items announce their
// comments too. Any other transition deletes the record. A re-approval of a
// comment already processed during this unit is a no-op.
func (s *Synchronizer) OnCommentApprovalChanged(comment *model.Comment, _ model.CommentState, item *model.Item, gctx GroupContext) error {
	if comment.State == model.CommentApproved {
		if s.cache.Recorded(comment.ID) {
			return nil
		}
		if item.SoftRemoved() {
			return nil
		}

		_, err := s.db.FindActivityBySubject(model.SubjectNewItemComment, comment.ID)
		if err == nil {
			s.cache.MarkRecorded(comment.ID)
			return nil
		}
		if !s.db.IsNotFound(err) {
			return errors.Wrap(err, "could not check comment record")
		}

		group, err := s.resolveGroup(item, gctx)
		if err != nil {
			return err
		}

		placement := Place(item.Status, item.Password, group)
		if err := s.createRecord(model.SubjectNewItemComment, comment.ID, comment.AuthorID, placement, true); err != nil {
			return err
		}
		s.cache.MarkRecorded(comment.ID)
		s.invalidate(item.ID)
		return nil
	}

	record, err := s.db.FindActivityBySubject(model.SubjectNewItemComment, comment.ID)
	if err != nil {
		if s.db.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(err, "could not check comment record")
	}

	s.deleteRecords([]string{record.ID})
	s.invalidate(item.ID)
	return nil
}

// OnGroupAttachmentChanged re-targets the item's records after its effective
// group changed. Only the channel and channel item id move here, visibility
// is governed by status transitions.
func (s *Synchronizer) OnGroupAttachmentChanged(item *model.Item, gctx GroupContext) error {
	group, err := s.resolveGroup(item, gctx)
	if err != nil {
		return err
	}
	placement := Place(item.Status, item.Password, group)

	located, err := s.locator.FindForItem(item)
	if err != nil {
		return err
	}

	ids := located.AllIDs()
	if len(ids) == 0 {
		return nil
	}

	err = s.db.BulkSetActivityChannel(ids, placement.Channel, placement.ChannelItemID)
	if err != nil {
		if !iserror.IsPartialBatchFailure(err) {
			return err
		}
		logrus.WithField("records", iserror.FailedRecords(err)).Warn("channel update left records behind")
	}

	s.invalidate(item.ID)
	return nil
}

// OnItemRemovedFromGroup detaches the item and resets its records to the
// member feed. Items whose status was only meaningful inside the group are
// republished first, which also reconciles their visibility.
func (s *Synchronizer) OnItemRemovedFromGroup(item *model.Item) error {
	if err := s.tracker.Detach(item.ID); err != nil {
		return err
	}

	if ValidUnattached(item) {
		return s.OnGroupAttachmentChanged(item, ExplicitGroup(""))
	}

	old := item.Status
	if err := s.db.BulkSetItemStatus([]string{item.ID}, model.StatusPublic); err != nil {
		return errors.Wrap(err, "could not republish detached item")
	}
	item.Status = model.StatusPublic

	if err := s.OnGroupAttachmentChanged(item, ExplicitGroup("")); err != nil {
		return err
	}
	return s.OnItemStatusChanged(item, old, ExplicitGroup(""))
}

// OnGroupVisibilityChanged reconciles every item attached to the group after
// its visibility changed. Items no longer compatible with the group are
// detached, the others get their records' visibility recomputed.
func (s *Synchronizer) OnGroupVisibilityChanged(group *model.Group, _ model.GroupVisibility) error {
	attachments, err := s.db.FindAttachmentsByGroup(group.ID)
	if err != nil {
		return err
	}

	for _, attachment := range attachments {
		item, err := s.db.FindItem(attachment.ItemID)
		if err != nil {
			if s.db.IsNotFound(err) {
				continue
			}
			return errors.Wrap(err, "could not load attached item")
		}

		if !Compatible(item.Status, group.Visibility) {
			if err := s.OnItemRemovedFromGroup(item); err != nil {
				return err
			}
			continue
		}

		located, err := s.locator.FindForItem(item)
		if err != nil {
			return err
		}
		if err := s.syncVisibility(item, located, Place(item.Status, item.Password, group)); err != nil {
			return err
		}
	}
	return nil
}

// OnGroupDeleted detaches every item of the group and resets their records to
// the member feed, reconciling visibility for the republished ones.
func (s *Synchronizer) OnGroupDeleted(group *model.Group) error {
	affected, err := s.tracker.BulkDetach(group)
	if err != nil {
		return err
	}

	for _, itemID := range affected {
		item, err := s.db.FindItem(itemID)
		if err != nil {
			if s.db.IsNotFound(err) {
				continue
			}
			return errors.Wrap(err, "could not load detached item")
		}

		if err := s.OnGroupAttachmentChanged(item, ExplicitGroup("")); err != nil {
			return err
		}
		if err := s.OnItemStatusChanged(item, item.Status, ExplicitGroup("")); err != nil {
			return err
		}
	}
	return nil
}

// OnItemPermanentlyRemoved deletes every record of the item and of its
// comments, and drops its attachment. A second call is a no-op.
func (s *Synchronizer) OnItemPermanentlyRemoved(itemID string) error {
	records, err := s.db.FindActivitiesBySubject(model.SubjectNewItem, itemID)
	if err != nil {
		return err
	}
	for _, record := range records {
		s.deleteRecords([]string{record.ID})
	}

	comments, err := s.db.FindCommentsByItem(itemID)
	if err != nil {
		return err
	}
	for _, comment := range comments {
		record, err := s.db.FindActivityBySubject(model.SubjectNewItemComment, comment.ID)
		if err != nil {
			if s.db.IsNotFound(err) {
				continue
			}
			return err
		}
		s.deleteRecords([]string{record.ID})
	}

	if err := s.tracker.Detach(itemID); err != nil {
		return err
	}

	s.invalidate(itemID)
	return nil
}

// OnUserRemoved deletes every record authored by the user when the user is
// removed from the site, or detaches the user's items from the given group
// when only the membership was lost.
func (s *Synchronizer) OnUserRemoved(userID, groupID string) error {
	if groupID == "" {
		records, err := s.db.FindActivitiesByAuthor(userID)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.ID)
		}
		s.deleteRecords(ids)
		return nil
	}

	attachments, err := s.db.FindAttachmentsByGroup(groupID)
	if err != nil {
		return err
	}

	for _, attachment := range attachments {
		item, err := s.db.FindItem(attachment.ItemID)
		if err != nil {
			if s.db.IsNotFound(err) {
				continue
			}
			return errors.Wrap(err, "could not load attached item")
		}

		if item.AuthorID != userID {
			continue
		}
		if err := s.OnItemRemovedFromGroup(item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Synchronizer) invalidate(itemID string) {
	if s.cache != nil {
		s.cache.Invalidate(itemID)
	}
}
