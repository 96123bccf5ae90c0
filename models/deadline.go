package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reminder types, named by their offset before the deadline
const (
	Reminder7Days  = "7_days"
	Reminder3Days  = "3_days"
	Reminder1Day   = "1_day"
	Reminder2Hours = "2_hours"
)

// ProjectDeadline is a dated milestone with scheduled reminders
type ProjectDeadline struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID    primitive.ObjectID `bson:"projectId" json:"projectId"`
	AssigneeID   primitive.ObjectID `bson:"assigneeId" json:"assigneeId"`
	Title        string             `bson:"title" json:"title"`
	DeadlineDate time.Time          `bson:"deadlineDate" json:"deadlineDate"`
	IsCompleted  bool               `bson:"isCompleted" json:"isCompleted"`
	CompletedAt  *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Reminders    []Reminder         `bson:"reminders" json:"reminders"`
	CreatedBy    primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// Reminder is one scheduled nudge for a deadline. Each delivery channel is stamped
// separately; Sent flips only once both have gone out.
type Reminder struct {
	ID                 primitive.ObjectID `bson:"_id" json:"id"`
	ReminderType       string             `bson:"reminderType" json:"reminderType"`
	ReminderDate       time.Time          `bson:"reminderDate" json:"reminderDate"`
	Sent               bool               `bson:"sent" json:"sent"`
	SentAt             *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	NotificationSentAt *time.Time         `bson:"notificationSentAt,omitempty" json:"notificationSentAt,omitempty"`
	EmailSentAt        *time.Time         `bson:"emailSentAt,omitempty" json:"emailSentAt,omitempty"`
}

// Due reports whether the reminder should fire at now
func (r Reminder) Due(now time.Time) bool {
	return !r.Sent && !r.ReminderDate.After(now)
}
