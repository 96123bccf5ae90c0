package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/api/handlers"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

type fakeNotificationDB struct {
	databases.NotificationDatabase
	items   []models.Notification
	filters []bson.M
	matched int64
}

func (f *fakeNotificationDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Notification, error) {
	f.filters = append(f.filters, filter.(bson.M))
	return f.items, nil
}

func (f *fakeNotificationDB) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	fm := filter.(bson.M)
	f.filters = append(f.filters, fm)
	if fm["isRead"] == false {
		return 1, nil
	}
	return int64(len(f.items)), nil
}

func (f *fakeNotificationDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.filters = append(f.filters, filter.(bson.M))
	return &mongo.UpdateResult{MatchedCount: f.matched, ModifiedCount: f.matched}, nil
}

func (f *fakeNotificationDB) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.filters = append(f.filters, filter.(bson.M))
	return &mongo.UpdateResult{MatchedCount: 3, ModifiedCount: 3}, nil
}

func TestNotification_NotificationsHandlerScopesToCaller(t *testing.T) {
	caller := &models.Principal{Kind: models.KindUser, ID: primitive.NewObjectID()}
	ndb := &fakeNotificationDB{items: []models.Notification{
		{ID: primitive.NewObjectID(), RecipientID: caller.ID, RecipientType: models.KindUser, Title: "Payment received", IsRead: true},
		{ID: primitive.NewObjectID(), RecipientID: caller.ID, RecipientType: models.KindUser, Title: "Deadline approaching"},
	}}
	n := handlers.Notification{NDB: ndb}

	rr := serve(n.NotificationsHandler, newRequest(t, "GET", "/api/client/notifications", nil, nil, caller))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	for _, f := range ndb.filters {
		assert.Equal(t, caller.ID, f["recipientId"])
		assert.Equal(t, models.KindUser, f["recipientType"])
	}
	env := decodeEnvelope(t, rr)
	var data struct {
		Notifications []models.Notification `json:"notifications"`
		UnreadCount   int64                 `json:"unreadCount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Notifications, 2)
	assert.Equal(t, int64(1), data.UnreadCount)
	assert.Equal(t, int64(2), env.Pagination.Total)
}

func TestNotification_MarkRead(t *testing.T) {
	caller := &models.Principal{Kind: models.KindDeveloper, ID: primitive.NewObjectID()}
	id := primitive.NewObjectID()

	t.Run("someone else's notification", func(t *testing.T) {
		ndb := &fakeNotificationDB{}
		n := handlers.Notification{NDB: ndb}
		rr := serve(n.MarkNotificationReadHandler, newRequest(t, "PUT", "/", nil, map[string]string{"id": id.Hex()}, caller))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, caller.ID, ndb.filters[0]["recipientId"])
		assert.Equal(t, id, ndb.filters[0]["_id"])
	})

	t.Run("all", func(t *testing.T) {
		ndb := &fakeNotificationDB{}
		n := handlers.Notification{NDB: ndb}
		rr := serve(n.MarkAllNotificationsReadHandler, newRequest(t, "PUT", "/", nil, nil, caller))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, false, ndb.filters[0]["isRead"])
		assert.Equal(t, models.KindDeveloper, ndb.filters[0]["recipientType"])
	})
}
