package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a client who commissions websites
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Company      string             `bson:"company,omitempty" json:"company,omitempty"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Developer statuses
const (
	DeveloperAvailable = "available"
	DeveloperBusy      = "busy"
	DeveloperInactive  = "inactive"
)

// Developer builds websites for clients
type Developer struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Skills       []string           `bson:"skills" json:"skills"`
	HourlyRate   float64            `bson:"hourlyRate" json:"hourlyRate"`
	Status       string             `bson:"status" json:"status"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
