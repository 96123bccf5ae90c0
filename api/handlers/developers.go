package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

var developerStatuses = map[string]bool{
	models.DeveloperAvailable: true,
	models.DeveloperBusy:      true,
	models.DeveloperInactive:  true,
}

// DeveloperAdmin is the admin-side handler for developer accounts
type DeveloperAdmin struct {
	DevDB databases.DeveloperDatabase
	AsDB  databases.AssignmentDatabase
}

// DevelopersHandler returns a page of developers filtered by search, status and skill
func (d DeveloperAdmin) DevelopersHandler(w http.ResponseWriter, r *http.Request) {
	page := paginateFromRequest(r)
	q := r.URL.Query()
	filter := bson.M{}
	searchFilter(filter, q.Get("search"))
	if status := q.Get("status"); status != "" {
		filter["status"] = status
	}
	if skill := strings.TrimSpace(q.Get("skill")); skill != "" {
		filter["skills"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(skill) + "$", Options: "i"}
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	devs, err := d.DevDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get developers", http.StatusInternalServerError, w, err)
		return
	}
	total, err := d.DevDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count developers", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, devs, page, total)
}

// DeveloperByIDHandler returns a developer by ID
func (d DeveloperAdmin) DeveloperByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dev, err := d.DevDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		writeLookupError(w, "developer", err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: dev})
}

// UpdateDeveloperStatusHandler sets isActive and optionally the availability status
func (d DeveloperAdmin) UpdateDeveloperStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.IsActive != nil {
		set["isActive"] = *req.IsActive
	}
	if req.Status != "" {
		if !developerStatuses[req.Status] {
			config.ErrorStatus("invalid developer status", http.StatusBadRequest, w, nil)
			return
		}
		set["status"] = req.Status
	}
	if len(set) == 1 {
		config.ErrorStatus("isActive or status required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := d.DevDB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update developer", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("developer not found", http.StatusNotFound, w, nil)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Developer status updated"})
}

// DeleteDeveloperHandler removes a developer that has no assignment in flight
func (d DeveloperAdmin) DeleteDeveloperHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	active, err := d.AsDB.CountDocuments(ctx, bson.M{
		"developerId": id,
		"status":      bson.M{"$in": models.ActiveWorkStatuses},
	})
	if err != nil {
		config.ErrorStatus("failed to check developer assignments", http.StatusInternalServerError, w, err)
		return
	}
	if active > 0 {
		config.ErrorStatus("Cannot delete developer with active assignments", http.StatusBadRequest, w, nil)
		return
	}

	deleted, err := d.DevDB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to delete developer", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("developer not found", http.StatusNotFound, w, nil)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Developer deleted"})
}
