package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/auth"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		config.ErrorStatus("invalid request body", http.StatusBadRequest, w, err)
		return false
	}
	return true
}

// objectIDVar parses the named route variable, writing a 400 when it is malformed
func objectIDVar(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		config.ErrorStatus("invalid "+name, http.StatusBadRequest, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

func paginateFromRequest(r *http.Request) databases.Paginate {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	return databases.NewPaginate(limit, page)
}

func currentPrincipal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := api.PrincipalFrom(r.Context())
	if !ok {
		config.ErrorStatus("Not authorized", http.StatusUnauthorized, w, nil)
	}
	return p, ok
}

// writeAuthError maps auth sentinels onto their status and public message
func writeAuthError(w http.ResponseWriter, err error) {
	status, msg := auth.StatusFor(err)
	config.ErrorStatus(msg, status, w, err)
}

// writeLookupError answers 404 for a missing document and 500 otherwise
func writeLookupError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, databases.ErrNotFound) {
		config.ErrorStatus(what+" not found", http.StatusNotFound, w, err)
		return
	}
	config.ErrorStatus("failed to get "+what, http.StatusInternalServerError, w, err)
}

func writePage(w http.ResponseWriter, data interface{}, p databases.Paginate, total int64) {
	config.WriteJSON(w, http.StatusOK, models.Response{
		Data:       data,
		Pagination: models.NewPagination(p.Page, p.Limit, total),
	})
}

func deviceFromRequest(r *http.Request) models.DeviceInfo {
	return models.DeviceInfo{UserAgent: r.UserAgent(), IP: api.ClientIP(r)}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// searchFilter matches name or email case-insensitively
func searchFilter(filter bson.M, search string) {
	if search = strings.TrimSpace(search); search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		filter["$or"] = []bson.M{{"name": rx}, {"email": rx}}
	}
}

func parseBoolQuery(r *http.Request, name string) (bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}
