package model

// An Attachment associates an item with the group it was submitted in.
// At most one per item; absence means the item is unattached.
//
// It is the only state owned by the reconciliation engine itself, everything
// else mirrors collaborator records.
type Attachment struct {
	Base `msgpack:",inline" storm:"inline"`

	ItemID  string `json:"item_id"  msgpack:"item_id"  storm:"unique"`
	GroupID string `json:"group_id" msgpack:"group_id" storm:"index"`
}
