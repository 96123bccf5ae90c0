package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/analytics"
	"github.com/webnest/webnest-api/api/auth"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/metrics"
	"github.com/webnest/webnest-api/models"
	"github.com/webnest/webnest-api/uploads"
)

// Developer serves the developer-facing service
type Developer struct {
	DevDB    databases.DeveloperDatabase
	AsDB     databases.AssignmentDatabase
	PDB      databases.ProjectDatabase
	EDB      databases.EarningDatabase
	WDB      databases.WithdrawalDatabase
	DDB      databases.DeadlineDatabase
	Tx       databases.Transactor
	Tokens   *auth.TokenService
	Uploads  *uploads.Signer
	Notifier Notifier
}

func developerPrincipal(d *models.Developer) models.Principal {
	return models.Principal{Kind: models.KindDeveloper, ID: d.ID, Email: d.Email}
}

// RegisterHandler creates a developer account and logs it in
func (d Developer) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		config.ErrorStatus(err.Error(), http.StatusBadRequest, w, nil)
		return
	}
	if req.HourlyRate < 0 {
		config.ErrorStatus("hourlyRate cannot be negative", http.StatusBadRequest, w, nil)
		return
	}
	emailAddr := normalizeEmail(req.Email)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if n, err := d.DevDB.CountDocuments(ctx, bson.M{"email": emailAddr}); err != nil {
		config.ErrorStatus("failed to check email", http.StatusInternalServerError, w, err)
		return
	} else if n > 0 {
		config.ErrorStatus("Developer with this email already exists", http.StatusBadRequest, w, nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}
	skills := make([]string, 0, len(req.Skills))
	for _, s := range req.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	now := time.Now().UTC()
	dev := models.Developer{
		Name:         strings.TrimSpace(req.Name),
		Email:        emailAddr,
		PasswordHash: hash,
		Skills:       skills,
		HourlyRate:   req.HourlyRate,
		Status:       models.DeveloperAvailable,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	res, err := d.DevDB.InsertOne(ctx, dev)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			config.ErrorStatus("Developer with this email already exists", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to create developer", http.StatusInternalServerError, w, err)
		return
	}
	setInsertedID(&dev.ID, res)

	session, err := issueSession(ctx, d.Tokens, developerPrincipal(&dev), r)
	if err != nil {
		config.ErrorStatus("failed to issue tokens", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusCreated, models.Response{Data: session.with("developer", dev), Message: "Registration successful"})
}

// LoginHandler authenticates a developer
func (d Developer) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dev, err := d.DevDB.FindOne(ctx, bson.M{"email": normalizeEmail(req.Email)})
	if err != nil && !errors.Is(err, databases.ErrNotFound) {
		config.ErrorStatus("failed to get developer", http.StatusInternalServerError, w, err)
		return
	}
	if err != nil || !auth.CheckPassword(dev.PasswordHash, req.Password) {
		metrics.LoginAttempts.WithLabelValues(string(models.KindDeveloper), "failed").Inc()
		writeAuthError(w, auth.ErrInvalidCredentials)
		return
	}
	if !dev.IsActive {
		metrics.LoginAttempts.WithLabelValues(string(models.KindDeveloper), "locked").Inc()
		writeAuthError(w, auth.ErrAccountLocked)
		return
	}

	session, err := issueSession(ctx, d.Tokens, developerPrincipal(dev), r)
	if err != nil {
		config.ErrorStatus("failed to issue tokens", http.StatusInternalServerError, w, err)
		return
	}
	metrics.LoginAttempts.WithLabelValues(string(models.KindDeveloper), "success").Inc()
	config.WriteJSON(w, http.StatusOK, models.Response{Data: session.with("developer", dev)})
}

// AssignmentsHandler returns a page of the caller's assignments
func (d Developer) AssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	page := paginateFromRequest(r)
	filter := bson.M{"developerId": p.ID}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	assignments, err := d.AsDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get assignments", http.StatusInternalServerError, w, err)
		return
	}
	total, err := d.AsDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count assignments", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, assignments, page, total)
}

// AcceptAssignmentHandler accepts an offered assignment and its project together
func (d Developer) AcceptAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	d.respondToAssignment(w, r, true)
}

// RejectAssignmentHandler declines an offered assignment and returns the project to
// the pending pool
func (d Developer) RejectAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	d.respondToAssignment(w, r, false)
}

func (d Developer) respondToAssignment(w http.ResponseWriter, r *http.Request, accept bool) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	assignment, err := d.AsDB.FindOne(ctx, bson.M{"_id": id, "developerId": p.ID})
	if err != nil {
		writeLookupError(w, "assignment", err)
		return
	}
	if assignment.Status != models.AssignmentAssigned {
		config.ErrorStatus("Assignment has already been answered", http.StatusBadRequest, w, nil)
		return
	}

	now := time.Now().UTC()
	assignmentStatus := models.AssignmentRejected
	projectUpdate := bson.M{
		"$set":   bson.M{"status": models.ProjectPending, "updatedAt": now},
		"$unset": bson.M{"developerId": ""},
	}
	if accept {
		assignmentStatus = models.AssignmentAccepted
		projectUpdate = bson.M{"$set": bson.M{"status": models.ProjectAccepted, "updatedAt": now}}
	}

	err = d.Tx.UseTransaction(ctx, func(tx context.Context) error {
		res, err := d.AsDB.UpdateOne(tx,
			bson.M{"_id": assignment.ID, "status": models.AssignmentAssigned},
			bson.M{"$set": bson.M{"status": assignmentStatus, "updatedAt": now}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return errStateChanged
		}
		res, err = d.PDB.UpdateOne(tx,
			bson.M{"_id": assignment.ProjectID, "developerId": p.ID, "status": models.ProjectAssigned},
			projectUpdate)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return errStateChanged
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errStateChanged) {
			config.ErrorStatus("Assignment has already been answered", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to update assignment", http.StatusInternalServerError, w, err)
		return
	}
	assignment.Status = assignmentStatus
	assignment.UpdatedAt = now

	if _, err := d.Notifier.Notify(ctx, models.Notification{
		RecipientID:   assignment.AssignedBy,
		RecipientType: models.KindAdmin,
		Type:          models.NotificationAssignmentUpdate,
		Title:         "Assignment " + assignmentStatus,
		Message:       fmt.Sprintf("%s %s the assignment.", p.Email, assignmentStatus),
		Link:          "/admin/projects/" + assignment.ProjectID.Hex(),
	}); err != nil {
		zap.S().Errorw("failed to notify admin of assignment response", "assignmentId", assignment.ID.Hex(), "error", err)
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: assignment, Message: "Assignment " + assignmentStatus})
}

// projectTransitions lists the project states each developer update may start from
var projectTransitions = map[string][]string{
	models.ProjectInProgress: {models.ProjectAccepted, models.ProjectInProgress},
	models.ProjectCompleted:  {models.ProjectAccepted, models.ProjectInProgress},
}

// UpdateProjectStatusHandler moves the caller's own project to in_progress or
// completed, along with its active assignment
func (d Developer) UpdateProjectStatusHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	from, allowed := projectTransitions[req.Status]
	if !allowed {
		config.ErrorStatus("status must be in_progress or completed", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	project, err := d.PDB.FindOne(ctx, bson.M{"_id": id, "developerId": p.ID})
	if err != nil {
		writeLookupError(w, "project", err)
		return
	}

	now := time.Now().UTC()
	err = d.Tx.UseTransaction(ctx, func(tx context.Context) error {
		res, err := d.PDB.UpdateOne(tx,
			bson.M{"_id": project.ID, "developerId": p.ID, "status": bson.M{"$in": from}},
			bson.M{"$set": bson.M{"status": req.Status, "updatedAt": now}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return errStateChanged
		}
		_, err = d.AsDB.UpdateOne(tx,
			bson.M{
				"projectId":   project.ID,
				"developerId": p.ID,
				"status":      bson.M{"$in": []string{models.AssignmentAccepted, models.AssignmentInProgress}},
			},
			bson.M{"$set": bson.M{"status": req.Status, "updatedAt": now}})
		return err
	})
	if err != nil {
		if errors.Is(err, errStateChanged) {
			config.ErrorStatus(fmt.Sprintf("Project cannot move from %s to %s", project.Status, req.Status), http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to update project", http.StatusInternalServerError, w, err)
		return
	}
	project.Status = req.Status
	project.UpdatedAt = now
	config.WriteJSON(w, http.StatusOK, models.Response{Data: project, Message: "Project status updated"})
}

// EarningsHandler returns a page of the caller's earnings
func (d Developer) EarningsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	page := paginateFromRequest(r)
	filter := bson.M{"developerId": p.ID}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	earnings, err := d.EDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get earnings", http.StatusInternalServerError, w, err)
		return
	}
	total, err := d.EDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count earnings", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, earnings, page, total)
}

// EarningsSummaryHandler totals the caller's earnings per status with the withdrawable balance
func (d Developer) EarningsSummaryHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	summary := []models.EarningsSummary{}
	if err := d.EDB.Aggregate(ctx, analytics.DeveloperSummaryPipeline(p.ID), &summary); err != nil {
		config.ErrorStatus("failed to aggregate earnings", http.StatusInternalServerError, w, err)
		return
	}
	balance, err := d.balance(ctx, p.ID)
	if err != nil {
		config.ErrorStatus("failed to compute balance", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: map[string]interface{}{
		"byStatus": summary,
		"balance":  balance,
	}})
}

// EarningsAnalyticsHandler buckets the caller's earnings by day or month
func (d Developer) EarningsAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	period, _ := analytics.ParsePeriod(r.URL.Query().Get("period"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	buckets := []models.EarningsBucket{}
	if err := d.EDB.Aggregate(ctx, analytics.DeveloperSeriesPipeline(p.ID, period, time.Now().UTC()), &buckets); err != nil {
		config.ErrorStatus("failed to aggregate earnings", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: map[string]interface{}{
		"period":  period,
		"buckets": buckets,
	}})
}

// balance is available earnings minus withdrawals that are requested or paid
func (d Developer) balance(ctx context.Context, devID primitive.ObjectID) (float64, error) {
	var earned, withdrawn []sumRow
	if err := d.EDB.Aggregate(ctx, analytics.SumPipeline(bson.M{
		"developerId": devID,
		"status":      models.EarningAvailable,
	}), &earned); err != nil {
		return 0, err
	}
	if err := d.WDB.Aggregate(ctx, analytics.SumPipeline(bson.M{
		"developerId": devID,
		"status":      bson.M{"$in": []string{models.WithdrawalRequested, models.WithdrawalPaid}},
	}), &withdrawn); err != nil {
		return 0, err
	}
	total := 0.0
	if len(earned) > 0 {
		total += earned[0].Total
	}
	if len(withdrawn) > 0 {
		total -= withdrawn[0].Total
	}
	return total, nil
}

type withdrawalRequest struct {
	Amount float64 `json:"amount"`
}

// CreateWithdrawalHandler requests a payout no larger than the withdrawable balance
func (d Developer) CreateWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req withdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		config.ErrorStatus("amount must be greater than zero", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	balance, err := d.balance(ctx, p.ID)
	if err != nil {
		config.ErrorStatus("failed to compute balance", http.StatusInternalServerError, w, err)
		return
	}
	if req.Amount > balance {
		config.ErrorStatus("Insufficient funds", http.StatusBadRequest, w, nil)
		return
	}

	withdrawal := models.Withdrawal{
		DeveloperID: p.ID,
		Amount:      req.Amount,
		Status:      models.WithdrawalRequested,
		CreatedAt:   time.Now().UTC(),
	}
	res, err := d.WDB.InsertOne(ctx, withdrawal)
	if err != nil {
		config.ErrorStatus("failed to create withdrawal", http.StatusInternalServerError, w, err)
		return
	}
	setInsertedID(&withdrawal.ID, res)
	config.WriteJSON(w, http.StatusCreated, models.Response{Data: withdrawal, Message: "Withdrawal requested"})
}

// WithdrawalsHandler returns a page of the caller's withdrawals
func (d Developer) WithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	page := paginateFromRequest(r)
	filter := bson.M{"developerId": p.ID}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	withdrawals, err := d.WDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get withdrawals", http.StatusInternalServerError, w, err)
		return
	}
	total, err := d.WDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count withdrawals", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, withdrawals, page, total)
}

type uploadSignatureRequest struct {
	ProjectID string `json:"projectId"`
}

// UploadSignatureHandler signs a direct Cloudinary upload into the project's
// deliverables folder
func (d Developer) UploadSignatureHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req uploadSignatureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	projectID, err := primitive.ObjectIDFromHex(req.ProjectID)
	if err != nil {
		config.ErrorStatus("invalid projectId", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := d.PDB.FindOne(ctx, bson.M{"_id": projectID, "developerId": p.ID}); err != nil {
		writeLookupError(w, "project", err)
		return
	}
	signed, err := d.Uploads.Sign(uploads.DeliverableFolder(projectID.Hex()))
	if err != nil {
		if errors.Is(err, uploads.ErrNotConfigured) {
			config.ErrorStatus("uploads are not configured", http.StatusServiceUnavailable, w, err)
			return
		}
		config.ErrorStatus("failed to sign upload", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: signed})
}

// DeadlinesHandler lists the caller's open deadlines that are still ahead
func (d Developer) DeadlinesHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deadlines, err := d.DDB.Find(ctx, bson.M{
		"assigneeId":   p.ID,
		"isCompleted":  false,
		"deadlineDate": bson.M{"$gt": time.Now().UTC()},
	}, deadlineSort())
	if err != nil {
		config.ErrorStatus("failed to get deadlines", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: deadlines})
}
