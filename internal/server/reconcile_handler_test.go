package server_test

import (
	"net/http"
	"testing"

	"github.com/appleboy/gofight/v2"
	"github.com/imath/ideastream/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestRequestReconcile(t *testing.T) {
	engine, ctrl, r, cleanup := setup()
	defer cleanup()

	payload := gofight.D{
		"item": gofight.D{
			"id":        "item-1",
			"title":     "Brainstorm",
			"status":    "public",
			"author_id": "alice",
		},
	}

	r.POST("/events/item-created").SetHeader(authHeader(ctrl)).SetJSON(payload).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusNoContent, r.Code)
		})

	// Drift: a lost visibility update.
	record, err := ctrl.Database.FindActivityBySubject(model.SubjectNewItem, "item-1")
	assert.NoError(t, err)
	record.Visibility = model.FeedRestricted
	assert.NoError(t, ctrl.Database.Save(record))

	r.POST("/reconcile").SetHeader(authHeader(ctrl)).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			assert.JSONEq(t, `{"corrected":1}`, r.Body.String())
		})

	record, err = ctrl.Database.FindActivityBySubject(model.SubjectNewItem, "item-1")
	assert.NoError(t, err)
	assert.Equal(t, model.FeedPublic, record.Visibility)

	// A second pass corrects nothing.
	r.POST("/reconcile").SetHeader(authHeader(ctrl)).
		Run(engine, func(r gofight.HTTPResponse, rq gofight.HTTPRequest) {
			assert.Equal(t, http.StatusOK, r.Code)
			assert.JSONEq(t, `{"corrected":0}`, r.Body.String())
		})
}
