package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/auth"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/email"
	"github.com/webnest/webnest-api/metrics"
	"github.com/webnest/webnest-api/models"
	"github.com/webnest/webnest-api/payments"
	templates "github.com/webnest/webnest-api/templates/html"
)

// maxWebhookBytes caps Stripe webhook payloads
const maxWebhookBytes = 64 << 10

type registerRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Phone      string   `json:"phone"`
	Company    string   `json:"company"`
	Skills     []string `json:"skills"`
	HourlyRate float64  `json:"hourlyRate"`
}

func (req registerRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" || normalizeEmail(req.Email) == "" {
		return errors.New("name and email required")
	}
	if !strings.Contains(req.Email, "@") {
		return errors.New("invalid email")
	}
	if len(req.Password) < auth.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}
	return nil
}

// Client serves the client-facing service
type Client struct {
	UDB         databases.UserDatabase
	PDB         databases.ProjectDatabase
	DDB         databases.DeadlineDatabase
	Tokens      *auth.TokenService
	Payments    payments.Gateway
	Mailer      email.Sender
	Notifier    Notifier
	FrontendURL string
}

// RegisterHandler creates a client account and logs it in
func (c Client) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		config.ErrorStatus(err.Error(), http.StatusBadRequest, w, nil)
		return
	}
	emailAddr := normalizeEmail(req.Email)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if n, err := c.UDB.CountDocuments(ctx, bson.M{"email": emailAddr}); err != nil {
		config.ErrorStatus("failed to check email", http.StatusInternalServerError, w, err)
		return
	} else if n > 0 {
		config.ErrorStatus("User with this email already exists", http.StatusBadRequest, w, nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}
	now := time.Now().UTC()
	user := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        emailAddr,
		PasswordHash: hash,
		Phone:        req.Phone,
		Company:      req.Company,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := c.UDB.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("User with this email already exists", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to create user", http.StatusInternalServerError, w, err)
		return
	}
	setInsertedID(&user.ID, res)

	session, err := issueSession(ctx, c.Tokens, models.Principal{Kind: models.KindUser, ID: user.ID, Email: user.Email}, r)
	if err != nil {
		config.ErrorStatus("failed to issue tokens", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusCreated, models.Response{Data: session.with("user", user), Message: "Registration successful"})
}

// LoginHandler authenticates a client
func (c Client) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := c.UDB.FindOne(ctx, bson.M{"email": normalizeEmail(req.Email)})
	if err != nil && !errors.Is(err, databases.ErrNotFound) {
		config.ErrorStatus("failed to get user", http.StatusInternalServerError, w, err)
		return
	}
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		metrics.LoginAttempts.WithLabelValues(string(models.KindUser), "failed").Inc()
		writeAuthError(w, auth.ErrInvalidCredentials)
		return
	}
	if !user.IsActive {
		metrics.LoginAttempts.WithLabelValues(string(models.KindUser), "locked").Inc()
		writeAuthError(w, auth.ErrAccountLocked)
		return
	}

	session, err := issueSession(ctx, c.Tokens, models.Principal{Kind: models.KindUser, ID: user.ID, Email: user.Email}, r)
	if err != nil {
		config.ErrorStatus("failed to issue tokens", http.StatusInternalServerError, w, err)
		return
	}
	metrics.LoginAttempts.WithLabelValues(string(models.KindUser), "success").Inc()
	config.WriteJSON(w, http.StatusOK, models.Response{Data: session.with("user", user)})
}

// ProjectsHandler returns a page of the caller's projects
func (c Client) ProjectsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	page := paginateFromRequest(r)
	filter := bson.M{"clientId": p.ID}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	projects, err := c.PDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get projects", http.StatusInternalServerError, w, err)
		return
	}
	total, err := c.PDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count projects", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, projects, page, total)
}

type createProjectRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	PackageName string     `json:"packageName"`
	Budget      float64    `json:"budget"`
	Deadline    *time.Time `json:"deadline"`
}

// CreateProjectHandler opens a pending, unpaid project for the caller
func (c Client) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		config.ErrorStatus("title required", http.StatusBadRequest, w, nil)
		return
	}
	if req.Budget < 0 {
		config.ErrorStatus("budget cannot be negative", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	project := models.Project{
		Title:         req.Title,
		Description:   req.Description,
		ClientID:      p.ID,
		PackageName:   req.PackageName,
		Budget:        req.Budget,
		Status:        models.ProjectPending,
		PaymentStatus: models.PaymentUnpaid,
		Deadline:      req.Deadline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := c.PDB.InsertOne(ctx, project)
	if err != nil {
		config.ErrorStatus("failed to create project", http.StatusInternalServerError, w, err)
		return
	}
	setInsertedID(&project.ID, res)
	config.WriteJSON(w, http.StatusCreated, models.Response{Data: project, Message: "Project created"})
}

// ownProject loads a project owned by the caller. Someone else's project reads as
// not found.
func (c Client) ownProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return nil, false
	}
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return nil, false
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	project, err := c.PDB.FindOne(ctx, bson.M{"_id": id, "clientId": p.ID})
	if err != nil {
		writeLookupError(w, "project", err)
		return nil, false
	}
	return project, true
}

// ProjectHandler returns one of the caller's projects
func (c Client) ProjectHandler(w http.ResponseWriter, r *http.Request) {
	project, ok := c.ownProject(w, r)
	if !ok {
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: project})
}

// ProjectDeadlinesHandler lists deadlines of one of the caller's projects
func (c Client) ProjectDeadlinesHandler(w http.ResponseWriter, r *http.Request) {
	project, ok := c.ownProject(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deadlines, err := c.DDB.Find(ctx, bson.M{"projectId": project.ID}, deadlineSort())
	if err != nil {
		config.ErrorStatus("failed to get deadlines", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: deadlines})
}

// CheckoutHandler starts a Stripe Checkout session for the project budget
func (c Client) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	if c.Payments == nil {
		config.ErrorStatus("payments are not configured", http.StatusServiceUnavailable, w, payments.ErrNotConfigured)
		return
	}
	project, ok := c.ownProject(w, r)
	if !ok {
		return
	}
	if project.PaymentStatus == models.PaymentPaid {
		config.ErrorStatus("Project is already paid", http.StatusBadRequest, w, nil)
		return
	}
	if project.Budget <= 0 {
		config.ErrorStatus("Project has no budget to pay", http.StatusBadRequest, w, nil)
		return
	}
	p, _ := api.PrincipalFrom(r.Context())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	base := c.FrontendURL + "/client/projects/" + project.ID.Hex()
	session, err := c.Payments.CreateCheckout(ctx, payments.CheckoutRequest{
		ProjectID:     project.ID.Hex(),
		Title:         project.Title,
		Amount:        project.Budget,
		CustomerEmail: p.Email,
		SuccessURL:    base + "?payment=success",
		CancelURL:     base + "?payment=cancelled",
	})
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusBadGateway, w, err)
		return
	}
	if _, err := c.PDB.UpdateOne(ctx, bson.M{"_id": project.ID}, bson.M{"$set": bson.M{"checkoutSessionId": session.ID, "updatedAt": time.Now().UTC()}}); err != nil {
		zap.S().Warnw("failed to store checkout session id", "projectId", project.ID.Hex(), "error", err)
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: session})
}

// WebhookHandler receives Stripe events and marks projects paid on completed checkouts
func (c Client) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if c.Payments == nil {
		config.ErrorStatus("payments are not configured", http.StatusServiceUnavailable, w, payments.ErrNotConfigured)
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		config.ErrorStatus("failed to read webhook body", http.StatusBadRequest, w, err)
		return
	}
	event, err := c.Payments.ParseWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		config.ErrorStatus("invalid webhook signature", http.StatusBadRequest, w, err)
		return
	}
	if !event.Paid() {
		zap.S().Debugw("ignoring stripe event", "type", event.Type)
		config.WriteJSON(w, http.StatusOK, models.Response{Data: map[string]bool{"received": true}})
		return
	}

	projectID, err := primitive.ObjectIDFromHex(event.ProjectID)
	if err != nil {
		config.ErrorStatus("webhook references an unknown project", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := c.PDB.UpdateOne(ctx,
		bson.M{"_id": projectID, "paymentStatus": bson.M{"$ne": models.PaymentPaid}},
		bson.M{"$set": bson.M{"paymentStatus": models.PaymentPaid, "checkoutSessionId": event.SessionID, "updatedAt": time.Now().UTC()}})
	if err != nil {
		config.ErrorStatus("failed to mark project paid", http.StatusInternalServerError, w, err)
		return
	}
	if res.ModifiedCount > 0 {
		metrics.PaymentsCompleted.Inc()
		zap.S().Infow("project paid", "projectId", projectID.Hex(), "session", event.SessionID)
		c.sendReceipt(r, projectID, float64(event.AmountTotal)/100)
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: map[string]bool{"received": true}})
}

// sendReceipt notifies and emails the client. Failures are logged only.
func (c Client) sendReceipt(r *http.Request, projectID primitive.ObjectID, amount float64) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	project, err := c.PDB.FindOne(ctx, bson.M{"_id": projectID})
	if err != nil {
		zap.S().Errorw("failed to load paid project", "projectId", projectID.Hex(), "error", err)
		return
	}
	if c.Notifier != nil {
		if _, err := c.Notifier.Notify(ctx, models.Notification{
			RecipientID:   project.ClientID,
			RecipientType: models.KindUser,
			Type:          models.NotificationPayment,
			Title:         "Payment received",
			Message:       fmt.Sprintf("We received $%.2f for %q.", amount, project.Title),
			Link:          "/client/projects/" + project.ID.Hex(),
		}); err != nil {
			zap.S().Errorw("failed to notify client of payment", "projectId", projectID.Hex(), "error", err)
		}
	}
	user, err := c.UDB.FindOne(ctx, bson.M{"_id": project.ClientID})
	if err != nil {
		zap.S().Errorw("failed to load paying client", "clientId", project.ClientID.Hex(), "error", err)
		return
	}
	if err := c.Mailer.Send(ctx, email.Message{
		ToEmail: user.Email,
		ToName:  user.Name,
		Subject: "Payment received for " + project.Title,
		HTML:    templates.RenderPaymentReceivedEmail(user.Name, project.Title, amount),
		Text:    fmt.Sprintf("We received $%.2f for %q. Thank you!", amount, project.Title),
	}); err != nil {
		zap.S().Errorw("failed to email payment receipt", "clientId", user.ID.Hex(), "error", err)
	}
}
