package server

import (
	"net/http"

	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/feed"
	"github.com/imath/ideastream/internal/iserror"
	"github.com/imath/ideastream/internal/model"
	"github.com/labstack/echo/v4"
)

// event contains all lifecycle event handlers.
//
// Each handler is one processing unit: it builds its own request cache and
// synchronizer, updates the mirrored collaborator records carried by the
// event payload and lets the engine reconcile the activity records.
type event struct {
	db database.Client
}

func (h *event) synchronizer() *feed.Synchronizer {
	return feed.NewSynchronizer(h.db, feed.NewRequestCache())
}

func (h *event) unknown(kind string) error {
	return iserror.NewWithTagCode(http.StatusNotFound, "unknown-"+kind, "No such "+kind+".")
}

///// ItemCreated
////
//

type itemCreatedParams struct {
	Item    *model.Item `json:"item"`
	GroupID string      `json:"group_id"`
}

// ItemCreated records a new item, attaches it to the chosen group when one
// was picked at submission time, and creates its activity record.
func (h *event) ItemCreated(c echo.Context) error {
	var params itemCreatedParams
	if err := c.Bind(&params); err != nil || params.Item == nil || params.Item.ID == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get item params."))
	}

	if err := h.db.Save(params.Item); err != nil {
		return err
	}

	sync := h.synchronizer()

	if params.GroupID != "" {
		group, err := h.db.FindGroup(params.GroupID)
		if err != nil {
			if h.db.IsNotFound(err) {
				return h.unknown("group")
			}
			return err
		}

		if _, err := sync.Tracker().Attach(params.Item, group); err != nil {
			return err
		}
	}

	if err := sync.OnItemCreated(params.Item, feed.NoGroup()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

///// ItemStatusChanged
////
//

type itemStatusParams struct {
	ItemID    string           `json:"item_id"`
	OldStatus model.ItemStatus `json:"old_status"`
	NewStatus model.ItemStatus `json:"new_status"`
	Password  *string          `json:"password"`
}

// ItemStatusChanged applies a status or password transition to the item
// mirror and reconciles its records.
func (h *event) ItemStatusChanged(c echo.Context) error {
	var params itemStatusParams
	if err := c.Bind(&params); err != nil || params.ItemID == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get status params."))
	}

	item, err := h.db.FindItem(params.ItemID)
	if err != nil {
		if h.db.IsNotFound(err) {
			return h.unknown("item")
		}
		return err
	}

	old := item.Status
	if params.NewStatus != "" {
		item.Status = params.NewStatus
	}
	if params.Password != nil {
		item.Password = *params.Password
	}
	if err := h.db.Save(item); err != nil {
		return err
	}

	if err := h.synchronizer().OnItemStatusChanged(item, old, feed.NoGroup()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

///// CommentApprovalChanged
////
//

type commentApprovalParams struct {
	Comment  *model.Comment     `json:"comment"`
	OldState model.CommentState `json:"old_state"`
	NewState model.CommentState `json:"new_state"`
	GroupID  string             `json:"group_id"`
}

// CommentApprovalChanged applies a moderation transition to the comment
// mirror and reconciles its record. The optional group id is the group
// screen the moderation happened on; the item's stored attachment still wins
// when one exists.
func (h *event) CommentApprovalChanged(c echo.Context) error {
	var params commentApprovalParams
	if err := c.Bind(&params); err != nil || params.Comment == nil || params.Comment.ID == "" || params.Comment.ItemID == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get comment params."))
	}

	comment := params.Comment
	comment.State = params.NewState
	if err := h.db.Save(comment); err != nil {
		return err
	}

	item, err := h.db.FindItem(comment.ItemID)
	if err != nil {
		if h.db.IsNotFound(err) {
			return h.unknown("item")
		}
		return err
	}

	if err := h.synchronizer().OnCommentApprovalChanged(comment, params.OldState, item, feed.CurrentGroup(params.GroupID)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

///// AttachmentChanged
////
//

type attachmentParams struct {
	ItemID  string `json:"item_id"`
	GroupID string `json:"group_id"`
}

// AttachmentChanged attaches the item to a group, moves it to another one, or
// detaches it when no group is given. The records follow the new channel.
func (h *event) AttachmentChanged(c echo.Context) error {
	var params attachmentParams
	if err := c.Bind(&params); err != nil || params.ItemID == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get attachment params."))
	}

	item, err := h.db.FindItem(params.ItemID)
	if err != nil {
		if h.db.IsNotFound(err) {
			return h.unknown("item")
		}
		return err
	}

	sync := h.synchronizer()

	if params.GroupID == "" {
		if err := sync.OnItemRemovedFromGroup(item); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}

	group, err := h.db.FindGroup(params.GroupID)
	if err != nil {
		if h.db.IsNotFound(err) {
			return h.unknown("group")
		}
		return err
	}

	if _, err := sync.Tracker().Attach(item, group); err != nil {
		return err
	}
	if err := sync.OnGroupAttachmentChanged(item, feed.NoGroup()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

///// GroupUpdated
////
//

type groupUpdatedParams struct {
	Group     *model.Group `json:"group"`
	MemberIDs []string     `json:"member_ids"`
}

// GroupUpdated upserts the group mirror and replaces its membership rows.
// A visibility change or a lost membership triggers the matching
// reconciliation.
func (h *event) GroupUpdated(c echo.Context) error {
	var params groupUpdatedParams
	if err := c.Bind(&params); err != nil || params.Group == nil || params.Group.ID == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get group params."))
	}

	group := params.Group

	var prior *model.Group
	if existing, err := h.db.FindGroup(group.ID); err == nil {
		prior = existing
	} else if !h.db.IsNotFound(err) {
		return err
	}

	if err := h.db.Save(group); err != nil {
		return err
	}

	desired := make(map[string]bool, len(params.MemberIDs))
	for _, id := range params.MemberIDs {
		desired[id] = true
	}

	existing, err := h.db.FindMembershipsByGroup(group.ID)
	if err != nil {
		return err
	}

	sync := h.synchronizer()

	for _, membership := range existing {
		if desired[membership.UserID] {
			delete(desired, membership.UserID)
			continue
		}

		if err := h.db.Delete(membership); err != nil {
			return err
		}
		if err := sync.OnUserRemoved(membership.UserID, group.ID); err != nil {
			return err
		}
	}

	for userID := range desired {
		membership := &model.Membership{UserID: userID, GroupID: group.ID}
		if err := h.db.Save(membership); err != nil {
			return err
		}
	}

	if prior != nil && prior.Visibility != group.Visibility {
		if err := sync.OnGroupVisibilityChanged(group, prior.Visibility); err != nil {
			return err
		}
	}
	return c.NoContent(http.StatusNoContent)
}

///// GroupVisibilityChanged
////
//

type groupVisibilityParams struct {
	GroupID       string                `json:"group_id"`
	NewVisibility model.GroupVisibility `json:"new_visibility"`
}

// GroupVisibilityChanged applies a visibility transition to the group mirror
// and reconciles every item attached to it.
func (h *event) GroupVisibilityChanged(c echo.Context) error {
	var params groupVisibilityParams
	if err := c.Bind(&params); err != nil || params.GroupID == "" || params.NewVisibility == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get group visibility params."))
	}

	group, err := h.db.FindGroup(params.GroupID)
	if err != nil {
		if h.db.IsNotFound(err) {
			return h.unknown("group")
		}
		return err
	}

	old := group.Visibility
	group.Visibility = params.NewVisibility
	if err := h.db.Save(group); err != nil {
		return err
	}

	if err := h.synchronizer().OnGroupVisibilityChanged(group, old); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

///// GroupDeleted
////
//

type groupDeletedParams struct {
	GroupID string `json:"group_id"`
}

// GroupDeleted detaches every item of the group, resets their records to the
// member feed and drops the group mirror with its memberships.
func (h *event) GroupDeleted(c echo.Context) error {
	var params groupDeletedParams
	if err := c.Bind(&params); err != nil || params.GroupID == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get group params."))
	}

	group, err := h.db.FindGroup(params.GroupID)
	if err != nil {
		if h.db.IsNotFound(err) {
			// Already deleted.
			return c.NoContent(http.StatusNoContent)
		}
		return err
	}

	if err := h.synchronizer().OnGroupDeleted(group); err != nil {
		return err
	}

	memberships, err := h.db.FindMembershipsByGroup(group.ID)
	if err != nil {
		return err
	}
	for _, membership := range memberships {
		if err := h.db.Delete(membership); err != nil {
			return err
		}
	}

	if err := h.db.Delete(group); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

///// ItemRemoved
////
//

type itemRemovedParams struct {
	ItemID string `json:"item_id"`
}

// ItemRemoved deletes every record of a permanently removed item and its
// comments. A second call is a no-op.
func (h *event) ItemRemoved(c echo.Context) error {
	var params itemRemovedParams
	if err := c.Bind(&params); err != nil || params.ItemID == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get item params."))
	}

	if err := h.synchronizer().OnItemPermanentlyRemoved(params.ItemID); err != nil {
		return err
	}

	comments, err := h.db.FindCommentsByItem(params.ItemID)
	if err != nil {
		return err
	}
	for _, comment := range comments {
		if err := h.db.Delete(comment); err != nil {
			return err
		}
	}

	item, err := h.db.FindItem(params.ItemID)
	if err == nil {
		if err := h.db.Delete(item); err != nil {
			return err
		}
	} else if !h.db.IsNotFound(err) {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

///// UserRemoved
////
//

type userRemovedParams struct {
	UserID  string `json:"user_id"`
	GroupID string `json:"group_id"`
}

// UserRemoved deletes every record authored by the user, or only detaches the
// user's items from the given group when a membership was lost.
func (h *event) UserRemoved(c echo.Context) error {
	var params userRemovedParams
	if err := c.Bind(&params); err != nil || params.UserID == "" {
		return c.JSON(http.StatusBadRequest, iserror.New("Could not get user params."))
	}

	if err := h.synchronizer().OnUserRemoved(params.UserID, params.GroupID); err != nil {
		return err
	}

	if params.GroupID != "" {
		membership, err := h.db.FindMembership(params.UserID, params.GroupID)
		if err == nil {
			if err := h.db.Delete(membership); err != nil {
				return err
			}
		} else if !h.db.IsNotFound(err) {
			return err
		}
	}
	return c.NoContent(http.StatusNoContent)
}
