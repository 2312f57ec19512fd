package feed_test

import (
	"os"

	"github.com/imath/ideastream/internal/database"
	"github.com/imath/ideastream/internal/model"
)

func setup() (db database.Client, cleanup func()) {
	tmpfile, err := os.CreateTemp("", "ideastream.*.db")
	if err != nil {
		panic(err)
	}
	filename := tmpfile.Name()
	tmpfile.Close()

	db, err = database.StormOpen(filename)
	if err != nil {
		panic(err)
	}

	return db, func() {
		db.Close()
		os.RemoveAll(filename)
	}
}

func createItem(db database.Client, status model.ItemStatus, password, authorID string) *model.Item {
	item := &model.Item{
		Title:    "Brainstorm",
		Status:   status,
		Password: password,
		AuthorID: authorID,
	}
	if err := db.Save(item); err != nil {
		panic(err)
	}
	return item
}

func createGroup(db database.Client, visibility model.GroupVisibility) *model.Group {
	group := &model.Group{
		Name:       "Builders",
		Visibility: visibility,
	}
	if err := db.Save(group); err != nil {
		panic(err)
	}
	return group
}

func createComment(db database.Client, itemID, authorID string, state model.CommentState) *model.Comment {
	comment := &model.Comment{
		ItemID:   itemID,
		AuthorID: authorID,
		State:    state,
	}
	if err := db.Save(comment); err != nil {
		panic(err)
	}
	return comment
}

func join(db database.Client, userID, groupID string) {
	membership := &model.Membership{
		UserID:  userID,
		GroupID: groupID,
	}
	if err := db.Save(membership); err != nil {
		panic(err)
	}
}
