package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project statuses
const (
	ProjectPending    = "pending"
	ProjectAssigned   = "assigned"
	ProjectAccepted   = "accepted"
	ProjectInProgress = "in_progress"
	ProjectCompleted  = "completed"
	ProjectCancelled  = "cancelled"
)

// Payment statuses
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// ActiveWorkStatuses are the states that block deleting the owning user or developer
var ActiveWorkStatuses = []string{ProjectAssigned, ProjectAccepted, ProjectInProgress}

// Project is a website commissioned by a client
type Project struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title             string              `bson:"title" json:"title"`
	Description       string              `bson:"description" json:"description"`
	ClientID          primitive.ObjectID  `bson:"clientId" json:"clientId"`
	DeveloperID       *primitive.ObjectID `bson:"developerId,omitempty" json:"developerId,omitempty"`
	PackageName       string              `bson:"packageName,omitempty" json:"packageName,omitempty"`
	Budget            float64             `bson:"budget" json:"budget"`
	Status            string              `bson:"status" json:"status"`
	PaymentStatus     string              `bson:"paymentStatus" json:"paymentStatus"`
	CheckoutSessionID string              `bson:"checkoutSessionId,omitempty" json:"-"`
	Deadline          *time.Time          `bson:"deadline,omitempty" json:"deadline,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// Assignment statuses
const (
	AssignmentAssigned   = "assigned"
	AssignmentAccepted   = "accepted"
	AssignmentRejected   = "rejected"
	AssignmentInProgress = "in_progress"
	AssignmentCompleted  = "completed"
)

// Assignment links a developer to a project
type Assignment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID   primitive.ObjectID `bson:"projectId" json:"projectId"`
	DeveloperID primitive.ObjectID `bson:"developerId" json:"developerId"`
	AssignedBy  primitive.ObjectID `bson:"assignedBy" json:"assignedBy"`
	Status      string             `bson:"status" json:"status"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
