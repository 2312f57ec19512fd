package database

import (
	"github.com/imath/ideastream/internal/model"
)

type (
	// A Client can interacts with the database.
	Client interface {
		// Save inserts or updates the entry in database with the given model.
		Save(m model.Model) error
		// Delete deletes the entry in database with the given model.
		Delete(m model.Model) error
		// Close the database.
		Close() error
		// IsNotFound returns true if err is a not found error.
		IsNotFound(err error) bool

		ItemInteraction
		CommentInteraction
		GroupInteraction
		ActivityInteraction
		AttachmentInteraction
	}

	// An ItemInteraction defines all the methods used to interact with the
	// item mirror records.
	ItemInteraction interface {
		// FindItem returns the item for the given id (UUID).
		FindItem(id string) (*model.Item, error)
		// BulkSetItemStatus sets the status of every given item. Only the
		// attachment tracker is allowed to request status changes.
		BulkSetItemStatus(ids []string, status model.ItemStatus) error
	}

	// A CommentInteraction defines all the methods used to interact with the
	// comment mirror records.
	CommentInteraction interface {
		// FindComment returns the comment for the given id (UUID).
		FindComment(id string) (*model.Comment, error)
		// FindCommentsByItem returns all the comments currently on the given item.
		FindCommentsByItem(itemID string) ([]*model.Comment, error)
	}

	// A GroupInteraction defines the read-only group registry.
	GroupInteraction interface {
		// FindGroup returns the group for the given id (UUID).
		FindGroup(id string) (*model.Group, error)
		// FindMembership returns the membership joining the given user and group.
		FindMembership(userID, groupID string) (*model.Membership, error)
		// FindMembershipsByGroup returns every membership of the given group.
		FindMembershipsByGroup(groupID string) ([]*model.Membership, error)
		// IsGroupMember returns true when the given user belongs to the given group.
		IsGroupMember(userID, groupID string) (bool, error)
	}

	// An ActivityInteraction defines all the methods used to interact with
	// the feed store.
	ActivityInteraction interface {
		// FindActivity returns the activity record for the given id (UUID).
		FindActivity(id string) (*model.Activity, error)
		// FindActivityBySubject returns the newest activity record for the
		// given subject type and target.
		FindActivityBySubject(st model.SubjectType, targetID string) (*model.Activity, error)
		// FindActivitiesBySubject returns every activity record for the given
		// subject type and target, newest first. More than one element means
		// duplicated records.
		FindActivitiesBySubject(st model.SubjectType, targetID string) ([]*model.Activity, error)
		// FindActivitiesByTargets returns the activity records for the given
		// subject type and targets.
		FindActivitiesByTargets(st model.SubjectType, targetIDs []string) ([]*model.Activity, error)
		// FindActivitiesBySubjectTypes returns all the activity records of
		// the given subject types.
		FindActivitiesBySubjectTypes(types []model.SubjectType) ([]*model.Activity, error)
		// FindActivitiesByAuthor returns all the activity records authored by
		// the given user.
		FindActivitiesByAuthor(authorID string) ([]*model.Activity, error)
		// DeleteActivity deletes the activity record for the given id.
		// Deleting an absent record is not an error.
		DeleteActivity(id string) error
		// BulkSetActivityVisibility sets the feed visibility of every given
		// record. Failed records are skipped and reported through a
		// partial-batch-failure error while the rest of the batch proceeds.
		BulkSetActivityVisibility(ids []string, visibility model.FeedVisibility) error
		// BulkSetActivityChannel sets the channel and channel item id of
		// every given record, with the same failure semantics as
		// BulkSetActivityVisibility.
		BulkSetActivityChannel(ids []string, channel model.Channel, channelItemID string) error
	}

	// An AttachmentInteraction defines all the methods used to interact with
	// the item to group mappings owned by the engine.
	AttachmentInteraction interface {
		// FindAttachment returns the attachment for the given item id.
		FindAttachment(itemID string) (*model.Attachment, error)
		// FindAttachmentsByGroup returns every attachment mapping to the given group.
		FindAttachmentsByGroup(groupID string) ([]*model.Attachment, error)
		// DeleteAttachment removes the attachment for the given item id.
		// Removing an absent attachment is not an error.
		DeleteAttachment(itemID string) error
	}
)
