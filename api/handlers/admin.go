package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/auth"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/email"
	"github.com/webnest/webnest-api/metrics"
	"github.com/webnest/webnest-api/models"
	templates "github.com/webnest/webnest-api/templates/html"
)

// resetTokenTTL is how long a password reset link stays valid
const resetTokenTTL = time.Hour

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// Admin represents the admin auth and admin management handler
type Admin struct {
	ADB         databases.AdminDatabase
	RDB         databases.AdminResetDatabase
	OTP         *auth.OTPService
	Tokens      *auth.TokenService
	Mailer      email.Sender
	FrontendURL string
}

func adminPrincipal(a *models.Admin) models.Principal {
	return models.Principal{Kind: models.KindAdmin, ID: a.ID, Email: a.Email, Role: a.Role}
}

// AdminLoginHandler checks credentials. Unverified admins get an OTP instead of tokens.
func (h Admin) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	emailAddr := normalizeEmail(req.Email)
	if emailAddr == "" || req.Password == "" {
		config.ErrorStatus("email and password required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	admin, err := h.ADB.FindOne(ctx, bson.M{"email": emailAddr})
	if err != nil && !errors.Is(err, databases.ErrNotFound) {
		config.ErrorStatus("failed to get admin", http.StatusInternalServerError, w, err)
		return
	}
	if err != nil || !auth.CheckPassword(admin.PasswordHash, req.Password) {
		metrics.LoginAttempts.WithLabelValues(string(models.KindAdmin), "failed").Inc()
		writeAuthError(w, auth.ErrInvalidCredentials)
		return
	}
	if !admin.IsActive {
		metrics.LoginAttempts.WithLabelValues(string(models.KindAdmin), "locked").Inc()
		writeAuthError(w, auth.ErrAccountLocked)
		return
	}

	if !admin.IsVerified {
		if err := h.OTP.Issue(ctx, admin); err != nil {
			config.ErrorStatus("failed to send verification code", http.StatusInternalServerError, w, err)
			return
		}
		metrics.LoginAttempts.WithLabelValues(string(models.KindAdmin), "otp_required").Inc()
		config.WriteJSON(w, http.StatusOK, models.Response{
			Data:    map[string]interface{}{"requireOTP": true, "email": admin.Email},
			Message: "A verification code has been sent to your email",
		})
		return
	}

	h.completeLogin(ctx, w, r, admin)
}

// completeLogin mints tokens and records the login on the admin
func (h Admin) completeLogin(ctx context.Context, w http.ResponseWriter, r *http.Request, admin *models.Admin) {
	session, err := issueSession(ctx, h.Tokens, adminPrincipal(admin), r)
	if err != nil {
		config.ErrorStatus("failed to issue tokens", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now().UTC()
	entry := models.LoginEntry{IP: api.ClientIP(r), UserAgent: r.UserAgent(), LoggedInAt: now}
	if _, err := h.ADB.UpdateOne(ctx, bson.M{"_id": admin.ID}, bson.M{
		"$push": bson.M{"loginHistory": entry},
		"$set":  bson.M{"lastLogin": now, "updatedAt": now},
	}); err != nil {
		zap.S().Warnw("failed to record admin login", "adminId", admin.ID.Hex(), "error", err)
	}
	admin.LastLogin = &now
	admin.LoginHistory = append(admin.LoginHistory, entry)

	metrics.LoginAttempts.WithLabelValues(string(models.KindAdmin), "success").Inc()
	config.WriteJSON(w, http.StatusOK, models.Response{Data: session.with("admin", admin)})
}

// AdminVerifyOTPHandler verifies the emailed code and logs the admin in
func (h Admin) AdminVerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if normalizeEmail(req.Email) == "" || req.OTP == "" {
		config.ErrorStatus("email and otp required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	admin, err := h.OTP.Verify(ctx, req.Email, req.OTP)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	h.completeLogin(ctx, w, r, admin)
}

// AdminResendOTPHandler issues a fresh code to an unverified admin
func (h Admin) AdminResendOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := h.OTP.Resend(ctx, req.Email); err != nil {
		writeAuthError(w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "A new verification code has been sent"})
}

// AdminForgotPasswordHandler emails a reset link when the admin exists. The response
// is the same either way.
func (h Admin) AdminForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	emailAddr := normalizeEmail(req.Email)
	if emailAddr == "" {
		config.ErrorStatus("email required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if admin, err := h.ADB.FindOne(ctx, bson.M{"email": emailAddr, "isActive": true}); err == nil {
		if err := h.sendReset(ctx, admin); err != nil {
			zap.S().Errorw("failed to send admin reset email", "adminId", admin.ID.Hex(), "error", err)
		}
	} else if !errors.Is(err, databases.ErrNotFound) {
		zap.S().Errorw("failed to look up admin for reset", "error", err)
	}

	config.WriteJSON(w, http.StatusOK, models.Response{Message: "If that admin email exists, a reset link has been sent."})
}

func (h Admin) sendReset(ctx context.Context, admin *models.Admin) error {
	raw, hash, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if _, err := h.RDB.InsertOne(ctx, models.AdminPasswordReset{
		AdminID:   admin.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(resetTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	link := h.FrontendURL + "/admin/reset-password?token=" + url.QueryEscape(raw)
	return h.Mailer.Send(ctx, email.Message{
		ToEmail: admin.Email,
		ToName:  admin.Name,
		Subject: "Reset your WebNest admin password",
		HTML:    templates.RenderPasswordResetEmail(admin.Name, link, int(resetTokenTTL.Minutes())),
		Text:    "Reset your password: " + link,
	})
}

// AdminResetPasswordHandler sets a new password from a valid reset token
func (h Admin) AdminResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" || req.Password == "" {
		config.ErrorStatus("token and password required", http.StatusBadRequest, w, nil)
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		config.ErrorStatus(fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength), http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	reset, err := h.RDB.FindOne(ctx, bson.M{
		"tokenHash": auth.HashResetToken(req.Token),
		"usedAt":    bson.M{"$exists": false},
		"expiresAt": bson.M{"$gt": now},
	})
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) {
			config.ErrorStatus("invalid or expired token", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to get reset token", http.StatusInternalServerError, w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		config.ErrorStatus("could not update password", http.StatusInternalServerError, w, err)
		return
	}
	if _, err := h.ADB.UpdateOne(ctx, bson.M{"_id": reset.AdminID}, bson.M{"$set": bson.M{"passwordHash": hash, "updatedAt": now}}); err != nil {
		config.ErrorStatus("could not update password", http.StatusInternalServerError, w, err)
		return
	}
	if _, err := h.RDB.UpdateOne(ctx, bson.M{"_id": reset.ID}, bson.M{"$set": bson.M{"usedAt": now}}); err != nil {
		zap.S().Warnw("failed to mark reset token used", "resetId", reset.ID.Hex(), "error", err)
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Password updated"})
}

// AdminChangePasswordHandler replaces the caller's password after checking the current one
func (h Admin) AdminChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		config.ErrorStatus(fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength), http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	admin, err := h.ADB.FindOne(ctx, bson.M{"_id": p.ID})
	if err != nil {
		writeLookupError(w, "admin", err)
		return
	}
	if !auth.CheckPassword(admin.PasswordHash, req.CurrentPassword) {
		config.ErrorStatus("Current password is incorrect", http.StatusBadRequest, w, nil)
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		config.ErrorStatus("could not update password", http.StatusInternalServerError, w, err)
		return
	}
	if _, err := h.ADB.UpdateOne(ctx, bson.M{"_id": admin.ID}, bson.M{"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now().UTC()}}); err != nil {
		config.ErrorStatus("could not update password", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Password changed"})
}

// AdminMeHandler returns the calling admin
func (h Admin) AdminMeHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	admin, err := h.ADB.FindOne(ctx, bson.M{"_id": p.ID})
	if err != nil {
		writeLookupError(w, "admin", err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: admin})
}

type createAdminRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// CreateAdminHandler lets an owner add an admin. New admins verify by OTP on first login.
func (h Admin) CreateAdminHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req createAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	emailAddr := normalizeEmail(req.Email)
	if req.Name == "" || emailAddr == "" {
		config.ErrorStatus("name and email required", http.StatusBadRequest, w, nil)
		return
	}
	if len(req.Password) < auth.MinPasswordLength {
		config.ErrorStatus(fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength), http.StatusBadRequest, w, nil)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleAdmin
	}
	if req.Role != models.RoleAdmin && req.Role != models.RoleModerator {
		config.ErrorStatus("role must be admin or moderator", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if n, err := h.ADB.CountDocuments(ctx, bson.M{"email": emailAddr}); err != nil {
		config.ErrorStatus("failed to check admin email", http.StatusInternalServerError, w, err)
		return
	} else if n > 0 {
		config.ErrorStatus("Admin with this email already exists", http.StatusBadRequest, w, nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}
	now := time.Now().UTC()
	creator := p.ID
	admin := models.Admin{
		Name:         req.Name,
		Email:        emailAddr,
		PasswordHash: hash,
		Role:         req.Role,
		Permissions:  req.Permissions,
		IsActive:     true,
		LoginHistory: []models.LoginEntry{},
		CreatedBy:    &creator,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if admin.Permissions == nil {
		admin.Permissions = []string{}
	}
	res, err := h.ADB.InsertOne(ctx, admin)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("Admin with this email already exists", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to create admin", http.StatusInternalServerError, w, err)
		return
	}
	setInsertedID(&admin.ID, res)
	zap.S().Infow("admin created", "adminId", admin.ID.Hex(), "createdBy", p.ID.Hex(), "role", admin.Role)
	config.WriteJSON(w, http.StatusCreated, models.Response{Data: admin, Message: "Admin created"})
}

// ListAdminsHandler returns a page of admins
func (h Admin) ListAdminsHandler(w http.ResponseWriter, r *http.Request) {
	page := paginateFromRequest(r)
	filter := bson.M{}
	searchFilter(filter, r.URL.Query().Get("search"))
	if role := r.URL.Query().Get("role"); role != "" {
		filter["role"] = role
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	admins, err := h.ADB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get admins", http.StatusInternalServerError, w, err)
		return
	}
	total, err := h.ADB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count admins", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, admins, page, total)
}
