// Package auth issues and verifies admin OTP codes, access tokens and refresh tokens.
package auth

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrNoCodeIssued       = errors.New("no verification code issued")
	ErrExpired            = errors.New("verification code expired")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

var statusTable = []struct {
	err     error
	status  int
	message string
}{
	{ErrNotFound, http.StatusNotFound, "Account not found"},
	{ErrAlreadyVerified, http.StatusBadRequest, "Account is already verified"},
	{ErrNoCodeIssued, http.StatusBadRequest, "No verification code has been issued. Request a new one."},
	{ErrExpired, http.StatusBadRequest, "Verification code has expired. Request a new one."},
	{ErrTooManyAttempts, http.StatusForbidden, "Too many failed attempts. Account is locked. Contact an owner."},
	{ErrInvalidCode, http.StatusBadRequest, "Invalid verification code"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{ErrAccountLocked, http.StatusForbidden, "Account is locked. Contact an owner."},
	{ErrInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
}

// StatusFor maps an auth error to its HTTP status and public message. Unknown errors
// map to 500.
func StatusFor(err error) (int, string) {
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return e.status, e.message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}
