package handlers

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

type statusRequest struct {
	IsActive *bool  `json:"isActive"`
	Status   string `json:"status"`
}

// User is the admin-side handler for client accounts
type User struct {
	UDB databases.UserDatabase
	PDB databases.ProjectDatabase
}

// UsersHandler returns a page of clients filtered by search and isActive
func (u User) UsersHandler(w http.ResponseWriter, r *http.Request) {
	page := paginateFromRequest(r)
	filter := bson.M{}
	searchFilter(filter, r.URL.Query().Get("search"))
	if active, ok := parseBoolQuery(r, "isActive"); ok {
		filter["isActive"] = active
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	users, err := u.UDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get users", http.StatusInternalServerError, w, err)
		return
	}
	total, err := u.UDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count users", http.StatusInternalServerError, w, err)
		return
	}
	writePage(w, users, page, total)
}

// UserByIDHandler returns a client by ID
func (u User) UserByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.UDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		writeLookupError(w, "user", err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: user})
}

// UpdateUserStatusHandler activates or deactivates a client
func (u User) UpdateUserStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		config.ErrorStatus("isActive required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := u.UDB.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"isActive": *req.IsActive, "updatedAt": time.Now().UTC()}})
	if err != nil {
		config.ErrorStatus("failed to update user", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("user not found", http.StatusNotFound, w, nil)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "User status updated"})
}

// DeleteUserHandler removes a client that has no project in flight
func (u User) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	active, err := u.PDB.CountDocuments(ctx, bson.M{
		"clientId": id,
		"status":   bson.M{"$in": models.ActiveWorkStatuses},
	})
	if err != nil {
		config.ErrorStatus("failed to check user projects", http.StatusInternalServerError, w, err)
		return
	}
	if active > 0 {
		config.ErrorStatus("Cannot delete user with active projects", http.StatusBadRequest, w, nil)
		return
	}

	deleted, err := u.UDB.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to delete user", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("user not found", http.StatusNotFound, w, nil)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "User deleted"})
}
