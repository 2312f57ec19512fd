package feed

import (
	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/iserror"
	"github.com/imath/ideastream/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// A Reconciler recomputes the correct state of every activity record from
// scratch and corrects drift. It is idempotent, bypasses the request cache
// and is safe to run concurrently with live traffic: two consecutive runs
// with no intervening writes correct zero records.
type Reconciler struct {
	db database.Client
}

// NewReconciler instantiates a new Reconciler.
func NewReconciler(db database.Client) *Reconciler {
	return &Reconciler{db: db}
}

// correctionSet accumulates the records destined to one group, or to the
// member feed when the key group id is empty, so writes are batched per group.
type correctionSet struct {
	channel       model.Channel
	channelItemID string

	retarget   []string
	publics    []string
	restricted []string
}

// Run scans every item and comment record, deletes duplicates keeping the
// newest per target, resolves each survivor to its parent item's current
// attachment and corrects channel and visibility drift with one batched
// update per group. Attachments the tracker would no longer accept are
// dropped on the way. It returns the number of corrected records, deletions
// of records that should not exist included.
func (r *Reconciler) Run() (int, error) {
	records, err := r.db.FindActivitiesBySubjectTypes([]model.SubjectType{
		model.SubjectNewItem,
		model.SubjectNewItemComment,
	})
	if err != nil {
		return 0, errors.Wrap(err, "could not load activity records")
	}

	records, corrected := r.dedupe(records)

	groups := map[string]*model.Group{}
	sets := map[string]*correctionSet{}

	for _, record := range records {
		item, comment, ok, err := r.resolveTarget(record)
		if err != nil {
			return corrected, err
		}
		if !ok || item.SoftRemoved() || (comment != nil && comment.State != model.CommentApproved) {
			if r.deleteRecord(record.ID) {
				corrected++
			}
			continue
		}

		group, err := r.resolveGroup(item, groups)
		if err != nil {
			return corrected, err
		}

		desired := Place(item.Status, item.Password, group)

		key := ""
		if group != nil {
			key = group.ID
		}
		set := sets[key]
		if set == nil {
			set = &correctionSet{channel: desired.Channel, channelItemID: desired.ChannelItemID}
			sets[key] = set
		}

		if record.Channel != desired.Channel || record.ChannelItemID != desired.ChannelItemID {
			set.retarget = append(set.retarget, record.ID)
		}
		if record.Visibility != desired.Visibility {
			if desired.Visibility == model.FeedPublic {
				set.publics = append(set.publics, record.ID)
			} else {
				set.restricted = append(set.restricted, record.ID)
			}
		}
	}

	for _, set := range sets {
		corrected += r.apply(set.retarget, func(ids []string) error {
			return r.db.BulkSetActivityChannel(ids, set.channel, set.channelItemID)
		})
		corrected += r.apply(set.publics, func(ids []string) error {
			return r.db.BulkSetActivityVisibility(ids, model.FeedPublic)
		})
		corrected += r.apply(set.restricted, func(ids []string) error {
			return r.db.BulkSetActivityVisibility(ids, model.FeedRestricted)
		})
	}

	return corrected, nil
}

// dedupe deletes every record of a target but the newest one. At most one
// active record may exist per item and per comment, the live path only
// cleans this up for items re-entering public.
func (r *Reconciler) dedupe(records []*model.Activity) ([]*model.Activity, int) {
	latest := map[string]string{}
	for _, record := range records {
		// Records are loaded oldest first, the last one wins.
		latest[subjectKey(record)] = record.ID
	}

	kept := make([]*model.Activity, 0, len(latest))
	var deleted int

	for _, record := range records {
		if latest[subjectKey(record)] != record.ID {
			if r.deleteRecord(record.ID) {
				deleted++
			}
			continue
		}
		kept = append(kept, record)
	}
	return kept, deleted
}

func subjectKey(record *model.Activity) string {
	return string(record.SubjectType) + "/" + record.TargetID
}

// resolveTarget loads the record's item, through the parent comment for
// comment records. ok is false when the target does not exist anymore.
func (r *Reconciler) resolveTarget(record *model.Activity) (item *model.Item, comment *model.Comment, ok bool, err error) {
	itemID := record.TargetID

	if record.SubjectType == model.SubjectNewItemComment {
		comment, err = r.db.FindComment(record.TargetID)
		if err != nil {
			if r.db.IsNotFound(err) {
				return nil, nil, false, nil
			}
			return nil, nil, false, errors.Wrap(err, "could not resolve comment record")
		}
		itemID = comment.ItemID
	}

	item, err = r.db.FindItem(itemID)
	if err != nil {
		if r.db.IsNotFound(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, errors.Wrap(err, "could not resolve item record")
	}
	return item, comment, true, nil
}

// resolveGroup returns the group the item's records are destined to,
// fetching each group's visibility only once per run. Attachments the
// tracker would refuse today are dropped on the way: a mapping to a removed
// group, an item status incompatible with the group visibility, or an author
// who is no longer a member.
func (r *Reconciler) resolveGroup(item *model.Item, groups map[string]*model.Group) (*model.Group, error) {
	attachment, err := r.db.FindAttachment(item.ID)
	if err != nil {
		if r.db.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not resolve attachment")
	}

	group, cached := groups[attachment.GroupID]
	if !cached {
		group, err = r.db.FindGroup(attachment.GroupID)
		if err != nil {
			if !r.db.IsNotFound(err) {
				return nil, errors.Wrap(err, "could not resolve group")
			}
			group = nil
		}
		groups[attachment.GroupID] = group
	}

	if group == nil || !Compatible(item.Status, group.Visibility) {
		r.detachInvalid(item)
		return nil, nil
	}

	member, err := r.db.IsGroupMember(item.AuthorID, group.ID)
	if err != nil {
		return nil, errors.Wrap(err, "could not check group membership")
	}
	if !member {
		r.detachInvalid(item)
		return nil, nil
	}

	return group, nil
}

// detachInvalid drops an attachment the tracker would no longer accept and
// republishes the item when its status was only meaningful inside the group.
func (r *Reconciler) detachInvalid(item *model.Item) {
	if err := r.db.DeleteAttachment(item.ID); err != nil {
		logrus.WithError(err).WithField("item", item.ID).Error("could not drop invalid attachment")
		return
	}

	if !ValidUnattached(item) {
		if err := r.db.BulkSetItemStatus([]string{item.ID}, model.StatusPublic); err != nil {
			logrus.WithError(err).WithField("item", item.ID).Error("could not republish detached item")
			return
		}
		item.Status = model.StatusPublic
	}
}

// apply runs one bulk correction and returns how many records were actually
// corrected, partial failures deducted and logged.
func (r *Reconciler) apply(ids []string, write func([]string) error) int {
	if len(ids) == 0 {
		return 0
	}

	err := write(ids)
	if err == nil {
		return len(ids)
	}
	if !iserror.IsPartialBatchFailure(err) {
		logrus.WithError(err).Error("bulk correction failed")
		return 0
	}

	failed := iserror.FailedRecords(err)
	logrus.WithField("records", failed).Warn("bulk correction left records behind")
	return len(ids) - len(failed)
}

func (r *Reconciler) deleteRecord(id string) bool {
	if err := r.db.DeleteActivity(id); err != nil {
		logrus.WithError(err).WithField("record", id).Error("could not delete activity record")
		return false
	}
	return true
}
