package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

// Earning is the admin-side handler for the developer ledger and payouts
type Earning struct {
	EDB      databases.EarningDatabase
	WDB      databases.WithdrawalDatabase
	DevDB    databases.DeveloperDatabase
	PDB      databases.ProjectDatabase
	Notifier Notifier
}

type createEarningRequest struct {
	DeveloperID string  `json:"developerId"`
	ProjectID   string  `json:"projectId"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// CreateEarningHandler records a pending earning for a developer on a project
func (e Earning) CreateEarningHandler(w http.ResponseWriter, r *http.Request) {
	var req createEarningRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	devID, err := primitive.ObjectIDFromHex(req.DeveloperID)
	if err != nil {
		config.ErrorStatus("invalid developerId", http.StatusBadRequest, w, err)
		return
	}
	projectID, err := primitive.ObjectIDFromHex(req.ProjectID)
	if err != nil {
		config.ErrorStatus("invalid projectId", http.StatusBadRequest, w, err)
		return
	}
	if req.Amount <= 0 {
		config.ErrorStatus("amount must be greater than zero", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := e.DevDB.FindOne(ctx, bson.M{"_id": devID}); err != nil {
		writeLookupError(w, "developer", err)
		return
	}
	project, err := e.PDB.FindOne(ctx, bson.M{"_id": projectID})
	if err != nil {
		writeLookupError(w, "project", err)
		return
	}

	now := time.Now().UTC()
	earning := models.Earning{
		DeveloperID: devID,
		ProjectID:   projectID,
		Amount:      req.Amount,
		Status:      models.EarningPending,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := e.EDB.InsertOne(ctx, earning)
	if err != nil {
		config.ErrorStatus("failed to create earning", http.StatusInternalServerError, w, err)
		return
	}
	setInsertedID(&earning.ID, res)

	if _, err := e.Notifier.Notify(ctx, models.Notification{
		RecipientID:   devID,
		RecipientType: models.KindDeveloper,
		Type:          models.NotificationPayment,
		Title:         "New earning recorded",
		Message:       fmt.Sprintf("$%.2f recorded for %q.", req.Amount, project.Title),
		Link:          "/developer/earnings",
	}); err != nil {
		zap.S().Errorw("failed to notify developer of earning", "developerId", devID.Hex(), "error", err)
	}
	config.WriteJSON(w, http.StatusCreated, models.Response{Data: earning, Message: "Earning created"})
}

// EarningsHandler returns a page of earnings filtered by developerId and status
func (e Earning) EarningsHandler(w http.ResponseWriter, r *http.Request) {
	page := paginateFromRequest(r)
	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if v := r.URL.Query().Get("developerId"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			config.ErrorStatus("invalid developerId", http.StatusBadRequest, w, err)
			return
		}
		filter["developerId"] = id
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	earnings, err := e.EDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get earnings", http.StatusInternalServerError, w, err)
		return
	}
	total, err := e.EDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count earnings", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, earnings, page, total)
}

// UpdateEarningStatusHandler moves an earning to available or paid
func (e Earning) UpdateEarningStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != models.EarningAvailable && req.Status != models.EarningPaid {
		config.ErrorStatus("status must be available or paid", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := e.EDB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": req.Status, "updatedAt": time.Now().UTC()}})
	if err != nil {
		config.ErrorStatus("failed to update earning", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("earning not found", http.StatusNotFound, w, nil)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Earning status updated"})
}

// WithdrawalsHandler returns a page of withdrawal requests
func (e Earning) WithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	page := paginateFromRequest(r)
	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	withdrawals, err := e.WDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get withdrawals", http.StatusInternalServerError, w, err)
		return
	}
	total, err := e.WDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count withdrawals", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, withdrawals, page, total)
}

// UpdateWithdrawalStatusHandler settles a requested withdrawal as paid or rejected.
// Earnings rows are left as they are.
func (e Earning) UpdateWithdrawalStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status != models.WithdrawalPaid && req.Status != models.WithdrawalRejected {
		config.ErrorStatus("status must be paid or rejected", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := e.WDB.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.WithdrawalRequested},
		bson.M{"$set": bson.M{"status": req.Status, "processedAt": time.Now().UTC()}})
	if err != nil {
		config.ErrorStatus("failed to update withdrawal", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("withdrawal not found or already processed", http.StatusNotFound, w, nil)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Withdrawal " + req.Status})
}
