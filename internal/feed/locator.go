package feed

import (
	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/model"
	"github.com/pkg/errors"
)

type (
	// A Located lists the activity records currently announcing an item and
	// its comments. The zero value is the valid "nothing recorded" state.
	Located struct {
		ItemRecordID         string
		CommentRecordIDs     []string
		AlreadyRestrictedIDs []string
	}

	// A RequestCache memoizes record lookups for a single processing unit.
	// It is built when the handling of a lifecycle event starts and discarded
	// when it ends, and must never be shared across units.
	RequestCache struct {
		located  map[string]Located
		recorded map[string]bool
	}
)

// Empty returns true when no record was found.
func (l Located) Empty() bool {
	return l.ItemRecordID == "" && len(l.CommentRecordIDs) == 0
}

// AllIDs returns every found record id, the item's own record first.
func (l Located) AllIDs() []string {
	ids := make([]string, 0, len(l.CommentRecordIDs)+1)
	if l.ItemRecordID != "" {
		ids = append(ids, l.ItemRecordID)
	}
	return append(ids, l.CommentRecordIDs...)
}

// NewRequestCache instantiates the cache of one processing unit.
func NewRequestCache() *RequestCache {
	return &RequestCache{
		located:  map[string]Located{},
		recorded: map[string]bool{},
	}
}

// Invalidate drops the memoized lookup of the given item. The synchronizer
// calls it whenever it creates, deletes or re-targets the item's records.
func (c *RequestCache) Invalidate(itemID string) {
	delete(c.located, itemID)
}

// MarkRecorded remembers that a record was created for the given comment
// during this processing unit.
func (c *RequestCache) MarkRecorded(commentID string) {
	c.recorded[commentID] = true
}

// Recorded returns true when a record was already created for the given
// comment during this processing unit. A re-approval triggered by an edit of
// such a comment is a no-op.
func (c *RequestCache) Recorded(commentID string) bool {
	return c.recorded[commentID]
}

// A Locator finds the activity records announcing items and comments.
type Locator struct {
	db    database.Client
	cache *RequestCache
}

// NewLocator instantiates a new Locator. A nil cache bypasses memoization,
// which is how the reconciliation job runs.
func NewLocator(db database.Client, cache *RequestCache) *Locator {
	return &Locator{db: db, cache: cache}
}

// FindForItem returns the records announcing the item and its comments, with
// the already restricted ones partitioned out so redundant visibility writes
// can be skipped. For a soft-removed item finding nothing is a valid state,
// not an error.
func (l *Locator) FindForItem(item *model.Item) (Located, error) {
	if l.cache != nil {
		if located, ok := l.cache.located[item.ID]; ok {
			return located, nil
		}
	}

	var located Located

	record, err := l.db.FindActivityBySubject(model.SubjectNewItem, item.ID)
	switch {
	case err == nil:
		located.ItemRecordID = record.ID
		if record.Visibility == model.FeedRestricted {
			located.AlreadyRestrictedIDs = append(located.AlreadyRestrictedIDs, record.ID)
		}
	case l.db.IsNotFound(err):
		// Absence is valid, soft-removed items have no records at all.
	default:
		return located, errors.Wrap(err, "could not locate item record")
	}

	comments, err := l.db.FindCommentsByItem(item.ID)
	if err != nil {
		return located, errors.Wrap(err, "could not list item comments")
	}

	if len(comments) > 0 {
		targets := make([]string, 0, len(comments))
		for _, comment := range comments {
			targets = append(targets, comment.ID)
		}

		records, err := l.db.FindActivitiesByTargets(model.SubjectNewItemComment, targets)
		if err != nil {
			return located, errors.Wrap(err, "could not locate comment records")
		}

		for _, record := range records {
			located.CommentRecordIDs = append(located.CommentRecordIDs, record.ID)
			if record.Visibility == model.FeedRestricted {
				located.AlreadyRestrictedIDs = append(located.AlreadyRestrictedIDs, record.ID)
			}
		}
	}

	if l.cache != nil {
		l.cache.located[item.ID] = located
	}
	return located, nil
}
