package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types
const (
	NotificationDeadlineReminder = "deadline_reminder"
	NotificationProjectAssigned  = "project_assigned"
	NotificationAssignmentUpdate = "assignment_update"
	NotificationPayment          = "payment"
)

// Notification is an in-app message for a principal
type Notification struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecipientID   primitive.ObjectID `bson:"recipientId" json:"recipientId"`
	RecipientType PrincipalKind      `bson:"recipientType" json:"recipientType"`
	Type          string             `bson:"type" json:"type"`
	Title         string             `bson:"title" json:"title"`
	Message       string             `bson:"message" json:"message"`
	Link          string             `bson:"link,omitempty" json:"link,omitempty"`
	IsRead        bool               `bson:"isRead" json:"isRead"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// SchedulerLock is a lease on a background job held by one instance
type SchedulerLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}
