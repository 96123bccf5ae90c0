package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// PrincipalKind enumerates the actors that can authenticate
type PrincipalKind string

// Known principal kinds
const (
	KindAdmin     PrincipalKind = "admin"
	KindDeveloper PrincipalKind = "developer"
	KindUser      PrincipalKind = "user"
)

// Valid reports whether k is one of the known kinds
func (k PrincipalKind) Valid() bool {
	switch k {
	case KindAdmin, KindDeveloper, KindUser:
		return true
	}
	return false
}

// Principal is the authenticated actor behind a request. It is resolved once by the
// auth middleware and read by handlers from the request context.
type Principal struct {
	Kind  PrincipalKind      `json:"kind"`
	ID    primitive.ObjectID `json:"id"`
	Email string             `json:"email"`
	Role  string             `json:"role,omitempty"`
}
