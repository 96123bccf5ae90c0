package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshToken holds the structure for the refresh_tokens collection in mongo
type RefreshToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token     string             `bson:"token" json:"-"`
	OwnerID   primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	OwnerType PrincipalKind      `bson:"ownerType" json:"ownerType"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	LastUsed  time.Time          `bson:"lastUsed" json:"lastUsed"`
	Device    DeviceInfo         `bson:"device" json:"device"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Usable reports whether the token is active and unexpired at now
func (t RefreshToken) Usable(now time.Time) bool {
	return t.IsActive && t.ExpiresAt.After(now)
}

// DeviceInfo is the client metadata captured when a refresh token is issued
type DeviceInfo struct {
	UserAgent string `bson:"userAgent" json:"userAgent"`
	IP        string `bson:"ip" json:"ip"`
}
