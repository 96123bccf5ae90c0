package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/email"
	"github.com/webnest/webnest-api/metrics"
	"github.com/webnest/webnest-api/models"
	templates "github.com/webnest/webnest-api/templates/html"
)

const (
	// OTPLength is the number of digits in a code
	OTPLength = 6
	// OTPTTL is how long an issued code stays valid
	OTPTTL = 10 * time.Minute
)

// OTPService issues and verifies one-time codes for unverified admins
type OTPService struct {
	Admins databases.AdminDatabase
	Mailer email.Sender
	Now    func() time.Time
}

// NewOTPService returns an OTPService using the wall clock
func NewOTPService(adb databases.AdminDatabase, mailer email.Sender) *OTPService {
	return &OTPService{Admins: adb, Mailer: mailer, Now: func() time.Time { return time.Now().UTC() }}
}

// GenerateCode returns a uniformly random zero-padded numeric code
func GenerateCode() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPLength, n.Int64()), nil
}

// Issue stores a fresh code on the admin, resets the attempt counter and emails it
func (s *OTPService) Issue(ctx context.Context, admin *models.Admin) error {
	code, err := GenerateCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	now := s.Now()
	expiry := now.Add(OTPTTL)

	_, err = s.Admins.UpdateOne(ctx, bson.M{"_id": admin.ID}, bson.M{"$set": bson.M{
		"otp":         code,
		"otpExpiry":   expiry,
		"otpAttempts": 0,
		"updatedAt":   now,
	}})
	if err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	admin.OTP, admin.OTPExpiry, admin.OTPAttempts = code, &expiry, 0

	err = s.Mailer.Send(ctx, email.Message{
		ToEmail: admin.Email,
		ToName:  admin.Name,
		Subject: "Your WebNest verification code",
		HTML:    templates.RenderOTPEmail(admin.Name, code, int(OTPTTL/time.Minute)),
		Text:    fmt.Sprintf("Your WebNest verification code is %s. It expires in %d minutes.", code, int(OTPTTL/time.Minute)),
	})
	if err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	zap.S().Infow("otp issued", "adminId", admin.ID.Hex())
	return nil
}

// Verify checks code against the admin identified by email. The checks run in a fixed
// order and each failure has its own side effect:
// expired codes are cleared, a fifth wrong attempt locks the account, and any other
// mismatch increments the counter.
func (s *OTPService) Verify(ctx context.Context, emailAddr, code string) (*models.Admin, error) {
	admin, err := s.verify(ctx, strings.ToLower(strings.TrimSpace(emailAddr)), strings.TrimSpace(code))
	metrics.OTPVerifications.WithLabelValues(otpResult(err)).Inc()
	return admin, err
}

func (s *OTPService) verify(ctx context.Context, emailAddr, code string) (*models.Admin, error) {
	admin, err := s.Admins.FindOne(ctx, bson.M{"email": emailAddr})
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if admin.IsVerified {
		return nil, ErrAlreadyVerified
	}
	if admin.OTP == "" || admin.OTPExpiry == nil {
		return nil, ErrNoCodeIssued
	}

	now := s.Now()
	if now.After(*admin.OTPExpiry) {
		if _, err := s.Admins.UpdateOne(ctx, bson.M{"_id": admin.ID}, bson.M{
			"$unset": bson.M{"otp": "", "otpExpiry": ""},
			"$set":   bson.M{"updatedAt": now},
		}); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}

	if admin.OTPAttempts >= models.MaxOTPAttempts {
		if _, err := s.Admins.UpdateOne(ctx, bson.M{"_id": admin.ID}, bson.M{
			"$set": bson.M{"isActive": false, "updatedAt": now},
		}); err != nil {
			return nil, err
		}
		zap.S().Warnw("admin locked after too many otp attempts", "adminId", admin.ID.Hex())
		return nil, ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(admin.OTP), []byte(code)) != 1 {
		if _, err := s.Admins.UpdateOne(ctx, bson.M{"_id": admin.ID}, bson.M{
			"$inc": bson.M{"otpAttempts": 1},
			"$set": bson.M{"updatedAt": now},
		}); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCode
	}

	if _, err := s.Admins.UpdateOne(ctx, bson.M{"_id": admin.ID}, bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": now},
		"$unset": bson.M{"otp": "", "otpExpiry": "", "otpAttempts": ""},
	}); err != nil {
		return nil, err
	}
	admin.IsVerified = true
	admin.OTP, admin.OTPExpiry, admin.OTPAttempts = "", nil, 0
	return admin, nil
}

// Resend issues a new code to an unverified, active admin
func (s *OTPService) Resend(ctx context.Context, emailAddr string) error {
	admin, err := s.Admins.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(emailAddr))})
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if admin.IsVerified {
		return ErrAlreadyVerified
	}
	if !admin.IsActive {
		return ErrAccountLocked
	}
	return s.Issue(ctx, admin)
}

func otpResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyVerified):
		return "already_verified"
	case errors.Is(err, ErrNoCodeIssued):
		return "no_code"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrTooManyAttempts):
		return "too_many_attempts"
	case errors.Is(err, ErrInvalidCode):
		return "invalid"
	default:
		return "error"
	}
}
