package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/scheduler"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/email"
	"github.com/webnest/webnest-api/models"
	templates "github.com/webnest/webnest-api/templates/html"
)

// errStateChanged aborts a transaction whose guarded update matched nothing
var errStateChanged = errors.New("document changed state")

// adminTransition is a status an admin may move a project to, the states it may come
// from, and what happens to the project's live assignment on the way
type adminTransition struct {
	from       []string
	assignment string
	unassign   bool
}

// adminTransitions leaves assigned and accepted to the assign and accept flows
var adminTransitions = map[string]adminTransition{
	models.ProjectPending: {
		from:       []string{models.ProjectAssigned, models.ProjectAccepted, models.ProjectInProgress, models.ProjectCancelled},
		assignment: models.AssignmentRejected,
		unassign:   true,
	},
	models.ProjectInProgress: {
		from:       []string{models.ProjectAccepted},
		assignment: models.AssignmentInProgress,
	},
	models.ProjectCompleted: {
		from:       []string{models.ProjectAccepted, models.ProjectInProgress},
		assignment: models.AssignmentCompleted,
	},
	models.ProjectCancelled: {
		from:       []string{models.ProjectPending, models.ProjectAssigned, models.ProjectAccepted, models.ProjectInProgress},
		assignment: models.AssignmentRejected,
	},
}

// Notifier stores an in-app notification and pushes it live
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
}

// Project is the admin-side handler for projects, assignments and deadlines
type Project struct {
	PDB         databases.ProjectDatabase
	AsDB        databases.AssignmentDatabase
	DevDB       databases.DeveloperDatabase
	DDB         databases.DeadlineDatabase
	Tx          databases.Transactor
	Notifier    Notifier
	Mailer      email.Sender
	FrontendURL string
}

// ProjectsHandler returns a page of projects filtered by status, clientId and developerId
func (p Project) ProjectsHandler(w http.ResponseWriter, r *http.Request) {
	page := paginateFromRequest(r)
	q := r.URL.Query()
	filter := bson.M{}
	if status := q.Get("status"); status != "" {
		filter["status"] = status
	}
	for param, field := range map[string]string{"clientId": "clientId", "developerId": "developerId"} {
		if v := q.Get(param); v != "" {
			id, err := primitive.ObjectIDFromHex(v)
			if err != nil {
				config.ErrorStatus("invalid "+param, http.StatusBadRequest, w, err)
				return
			}
			filter[field] = id
		}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	projects, err := p.PDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get projects", http.StatusInternalServerError, w, err)
		return
	}
	total, err := p.PDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count projects", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, projects, page, total)
}

// ProjectByIDHandler returns a project by ID
func (p Project) ProjectByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	project, err := p.PDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		writeLookupError(w, "project", err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: project})
}

// UpdateProjectStatusHandler moves a project along an admin transition. The project
// and its live assignment change together.
func (p Project) UpdateProjectStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	move, allowed := adminTransitions[req.Status]
	if !allowed {
		config.ErrorStatus("status must be pending, in_progress, completed or cancelled", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	project, err := p.PDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		writeLookupError(w, "project", err)
		return
	}
	if !slices.Contains(move.from, project.Status) {
		config.ErrorStatus(fmt.Sprintf("Project cannot move from %s to %s", project.Status, req.Status), http.StatusBadRequest, w, nil)
		return
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{"status": req.Status, "updatedAt": now}}
	if move.unassign {
		update["$unset"] = bson.M{"developerId": ""}
	}
	err = p.Tx.UseTransaction(ctx, func(tx context.Context) error {
		res, err := p.PDB.UpdateOne(tx, bson.M{"_id": project.ID, "status": project.Status}, update)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return errStateChanged
		}
		if project.DeveloperID == nil {
			return nil
		}
		_, err = p.AsDB.UpdateOne(tx,
			bson.M{
				"projectId":   project.ID,
				"developerId": *project.DeveloperID,
				"status":      bson.M{"$in": models.ActiveWorkStatuses},
			},
			bson.M{"$set": bson.M{"status": move.assignment, "updatedAt": now}})
		return err
	})
	if err != nil {
		if errors.Is(err, errStateChanged) {
			config.ErrorStatus("Project changed while updating, try again", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to update project", http.StatusInternalServerError, w, err)
		return
	}

	project.Status = req.Status
	project.UpdatedAt = now
	if move.unassign {
		project.DeveloperID = nil
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: project, Message: "Project status updated"})
}

type assignRequest struct {
	DeveloperID string `json:"developerId"`
	Notes       string `json:"notes"`
}

// AssignProjectHandler hands a pending project to a developer. The project update and
// the assignment insert commit together.
func (p Project) AssignProjectHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	projectID, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	devID, err := primitive.ObjectIDFromHex(req.DeveloperID)
	if err != nil {
		config.ErrorStatus("invalid developerId", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	project, err := p.PDB.FindOne(ctx, bson.M{"_id": projectID})
	if err != nil {
		writeLookupError(w, "project", err)
		return
	}
	if project.Status != models.ProjectPending {
		config.ErrorStatus("Project is not awaiting assignment", http.StatusBadRequest, w, nil)
		return
	}
	dev, err := p.DevDB.FindOne(ctx, bson.M{"_id": devID})
	if err != nil {
		writeLookupError(w, "developer", err)
		return
	}
	if !dev.IsActive {
		config.ErrorStatus("Developer is not active", http.StatusBadRequest, w, nil)
		return
	}

	now := time.Now().UTC()
	assignment := models.Assignment{
		ProjectID:   projectID,
		DeveloperID: devID,
		AssignedBy:  admin.ID,
		Status:      models.AssignmentAssigned,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = p.Tx.UseTransaction(ctx, func(tx context.Context) error {
		res, err := p.PDB.UpdateOne(tx,
			bson.M{"_id": projectID, "status": models.ProjectPending},
			bson.M{"$set": bson.M{"status": models.ProjectAssigned, "developerId": devID, "updatedAt": now}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return errStateChanged
		}
		ins, err := p.AsDB.InsertOne(tx, assignment)
		if err != nil {
			return err
		}
		setInsertedID(&assignment.ID, ins)
		return nil
	})
	if err != nil {
		if errors.Is(err, errStateChanged) {
			config.ErrorStatus("Project is not awaiting assignment", http.StatusConflict, w, err)
			return
		}
		config.ErrorStatus("failed to assign project", http.StatusInternalServerError, w, err)
		return
	}

	p.announceAssignment(ctx, dev, project, assignment)
	zap.S().Infow("project assigned", "projectId", projectID.Hex(), "developerId", devID.Hex(), "by", admin.ID.Hex())
	config.WriteJSON(w, http.StatusOK, models.Response{Data: assignment, Message: "Project assigned"})
}

// announceAssignment tells the developer in-app and by email. Failures are logged only.
func (p Project) announceAssignment(ctx context.Context, dev *models.Developer, project *models.Project, a models.Assignment) {
	if _, err := p.Notifier.Notify(ctx, models.Notification{
		RecipientID:   dev.ID,
		RecipientType: models.KindDeveloper,
		Type:          models.NotificationProjectAssigned,
		Title:         "New project assigned",
		Message:       fmt.Sprintf("You have been assigned %q.", project.Title),
		Link:          "/developer/assignments/" + a.ID.Hex(),
	}); err != nil {
		zap.S().Errorw("failed to notify developer of assignment", "developerId", dev.ID.Hex(), "error", err)
	}
	dashboard := p.FrontendURL + "/developer/assignments"
	if err := p.Mailer.Send(ctx, email.Message{
		ToEmail: dev.Email,
		ToName:  dev.Name,
		Subject: "New project assigned: " + project.Title,
		HTML:    templates.RenderAssignmentEmail(dev.Name, project.Title, a.Notes, dashboard),
		Text:    fmt.Sprintf("You have been assigned %q. Review it at %s", project.Title, dashboard),
	}); err != nil {
		zap.S().Errorw("failed to email developer of assignment", "developerId", dev.ID.Hex(), "error", err)
	}
}

type deadlineRequest struct {
	Title        string    `json:"title"`
	DeadlineDate time.Time `json:"deadlineDate"`
}

// CreateDeadlineHandler adds a deadline for the project's developer with its reminders
func (p Project) CreateDeadlineHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	projectID, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	var req deadlineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	now := time.Now().UTC()
	if req.Title == "" || req.DeadlineDate.IsZero() {
		config.ErrorStatus("title and deadlineDate required", http.StatusBadRequest, w, nil)
		return
	}
	if !req.DeadlineDate.After(now) {
		config.ErrorStatus("deadlineDate must be in the future", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	project, err := p.PDB.FindOne(ctx, bson.M{"_id": projectID})
	if err != nil {
		writeLookupError(w, "project", err)
		return
	}
	if project.DeveloperID == nil {
		config.ErrorStatus("Project has no assigned developer", http.StatusBadRequest, w, nil)
		return
	}

	deadline := models.ProjectDeadline{
		ProjectID:    projectID,
		AssigneeID:   *project.DeveloperID,
		Title:        req.Title,
		DeadlineDate: req.DeadlineDate.UTC(),
		Reminders:    scheduler.BuildReminders(req.DeadlineDate, now),
		CreatedBy:    admin.ID,
		CreatedAt:    now,
	}
	res, err := p.DDB.InsertOne(ctx, deadline)
	if err != nil {
		config.ErrorStatus("failed to create deadline", http.StatusInternalServerError, w, err)
		return
	}
	setInsertedID(&deadline.ID, res)
	config.WriteJSON(w, http.StatusCreated, models.Response{Data: deadline, Message: "Deadline created"})
}

// ProjectDeadlinesHandler lists a project's deadlines, soonest first
func (p Project) ProjectDeadlinesHandler(w http.ResponseWriter, r *http.Request) {
	projectID, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	deadlines, err := p.DDB.Find(ctx, bson.M{"projectId": projectID}, deadlineSort())
	if err != nil {
		config.ErrorStatus("failed to get deadlines", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: deadlines})
}

// CompleteDeadlineHandler marks a deadline done, which stops its reminders
func (p Project) CompleteDeadlineHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()
	res, err := p.DDB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isCompleted": true, "completedAt": now}})
	if err != nil {
		config.ErrorStatus("failed to complete deadline", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("deadline not found", http.StatusNotFound, w, nil)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Deadline completed"})
}

func deadlineSort() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "deadlineDate", Value: 1}})
}
