package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Earning statuses
const (
	EarningPending   = "pending"
	EarningAvailable = "available"
	EarningPaid      = "paid"
)

// Earning is one ledger row owed to a developer
type Earning struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeveloperID primitive.ObjectID `bson:"developerId" json:"developerId"`
	ProjectID   primitive.ObjectID `bson:"projectId" json:"projectId"`
	Amount      float64            `bson:"amount" json:"amount"`
	Status      string             `bson:"status" json:"status"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Withdrawal statuses
const (
	WithdrawalRequested = "requested"
	WithdrawalPaid      = "paid"
	WithdrawalRejected  = "rejected"
)

// Withdrawal is a developer's request to be paid out
type Withdrawal struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DeveloperID primitive.ObjectID `bson:"developerId" json:"developerId"`
	Amount      float64            `bson:"amount" json:"amount"`
	Status      string             `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	ProcessedAt *time.Time         `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}

// EarningsSummary is one status bucket of a developer's ledger
type EarningsSummary struct {
	Status string  `bson:"_id" json:"status"`
	Total  float64 `bson:"total" json:"total"`
	Count  int64   `bson:"count" json:"count"`
}

// EarningsBucket is one period bucket of an earnings time series
type EarningsBucket struct {
	Period  string  `bson:"_id" json:"period"`
	Total   float64 `bson:"total" json:"total"`
	Count   int64   `bson:"count" json:"count"`
	Average float64 `bson:"average" json:"average"`
}

// TopDeveloper is one row of the top earners report
type TopDeveloper struct {
	DeveloperID primitive.ObjectID `bson:"_id" json:"developerId"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"`
	Total       float64            `bson:"total" json:"total"`
	Projects    int64              `bson:"projects" json:"projects"`
}

// StatusCount is a generic group-by-status row
type StatusCount struct {
	Status string `bson:"_id" json:"status"`
	Count  int64  `bson:"count" json:"count"`
}
