package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

type insertResult struct{ id primitive.ObjectID }

func (r insertResult) Decode() interface{} { return r.id }

type fakeNotificationDB struct {
	databases.NotificationDatabase
	inserted []models.Notification
	err      error
}

func (f *fakeNotificationDB) InsertOne(ctx context.Context, n models.Notification) (databases.InsertOneResultHelper, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inserted = append(f.inserted, n)
	return insertResult{id: primitive.NewObjectID()}, nil
}

func (f *fakeNotificationDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return &mongo.UpdateResult{}, nil
}

type recordingHub struct {
	keys   []string
	events []string
}

func (r *recordingHub) Publish(key, event string, data interface{}) int {
	r.keys = append(r.keys, key)
	r.events = append(r.events, event)
	return 1
}

func TestService_Notify(t *testing.T) {
	db := &fakeNotificationDB{}
	hub := &recordingHub{}
	svc := NewService(db, hub)
	dev := primitive.NewObjectID()

	n, err := svc.Notify(context.Background(), models.Notification{
		RecipientID:   dev,
		RecipientType: models.KindDeveloper,
		Type:          models.NotificationProjectAssigned,
		Title:         "New project",
		IsRead:        true,
	})
	require.NoError(t, err)
	assert.False(t, n.ID.IsZero())
	assert.False(t, n.IsRead)
	require.Len(t, db.inserted, 1)
	assert.Equal(t, []string{Key(models.KindDeveloper, dev)}, hub.keys)
	assert.Equal(t, []string{EventNewNotification}, hub.events)
}

func TestService_NotifyInsertFailureSkipsPush(t *testing.T) {
	db := &fakeNotificationDB{err: errors.New("write concern")}
	hub := &recordingHub{}
	_, err := NewService(db, hub).Notify(context.Background(), models.Notification{})
	assert.Error(t, err)
	assert.Empty(t, hub.keys)
}

func TestHub_PublishToConnectedSocket(t *testing.T) {
	hub := NewHub(nil)
	key := Key(models.KindUser, primitive.NewObjectID())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, key)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Connected(key) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.Publish(key, EventNewNotification, map[string]string{"title": "hi"}))
	assert.Equal(t, 0, hub.Publish("user:other", EventNewNotification, nil))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventNewNotification, msg.Event)
	assert.Equal(t, "hi", msg.Data["title"])

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connected(key) == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub([]string{"https://app.webnest.io"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "user:x")
	}))
	defer srv.Close()

	header := http.Header{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
