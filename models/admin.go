package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Admin roles
const (
	RoleOwner     = "owner"
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
)

// MaxOTPAttempts is the number of wrong codes tolerated before an account locks
const MaxOTPAttempts = 5

// Admin represents a back office account
type Admin struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name         string              `bson:"name" json:"name"`
	Email        string              `bson:"email" json:"email"`
	PasswordHash string              `bson:"passwordHash" json:"-"`
	Role         string              `bson:"role" json:"role"`
	Permissions  []string            `bson:"permissions" json:"permissions"`
	IsActive     bool                `bson:"isActive" json:"isActive"`
	IsVerified   bool                `bson:"isVerified" json:"isVerified"`
	OTP          string              `bson:"otp,omitempty" json:"-"`
	OTPExpiry    *time.Time          `bson:"otpExpiry,omitempty" json:"-"`
	OTPAttempts  int                 `bson:"otpAttempts,omitempty" json:"-"`
	LoginHistory []LoginEntry        `bson:"loginHistory" json:"loginHistory,omitempty"`
	LastLogin    *time.Time          `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedBy    *primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// LoginEntry records one successful login
type LoginEntry struct {
	IP         string    `bson:"ip" json:"ip"`
	UserAgent  string    `bson:"userAgent" json:"userAgent"`
	LoggedInAt time.Time `bson:"loggedInAt" json:"loggedInAt"`
}

// AdminPasswordReset stores password reset tokens for admin accounts
type AdminPasswordReset struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AdminID   primitive.ObjectID `bson:"adminId" json:"adminId"`
	TokenHash string             `bson:"tokenHash" json:"-"`
	ExpiresAt time.Time          `bson:"expiresAt" json:"expiresAt"`
	UsedAt    *time.Time         `bson:"usedAt,omitempty" json:"usedAt,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
