package notify

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

// EventNewNotification is the websocket event name for a stored notification
const EventNewNotification = "new_notification"

// Publisher pushes an event to the live sockets of a principal
type Publisher interface {
	Publish(key, event string, data interface{}) int
}

// Service persists notifications and pushes them to live sockets
type Service struct {
	DB  databases.NotificationDatabase
	Hub Publisher
	Now func() time.Time
}

// NewService returns a Service using the wall clock
func NewService(db databases.NotificationDatabase, hub Publisher) *Service {
	return &Service{DB: db, Hub: hub, Now: func() time.Time { return time.Now().UTC() }}
}

// Notify stores n and then pushes it. The push is best effort; the stored row is the
// record of delivery.
func (s *Service) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.IsRead = false
	n.CreatedAt = s.Now()
	res, err := s.DB.InsertOne(ctx, n)
	if err != nil {
		return n, fmt.Errorf("insert notification: %w", err)
	}
	if res != nil {
		if id, ok := res.Decode().(primitive.ObjectID); ok {
			n.ID = id
		}
	}
	if s.Hub != nil {
		s.Hub.Publish(Key(n.RecipientType, n.RecipientID), EventNewNotification, n)
	}
	return n, nil
}
