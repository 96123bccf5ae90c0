package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/notify"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

// TokenResolver turns a raw access token into a principal
type TokenResolver interface {
	Principal(token string) (models.Principal, error)
}

// Notification serves the in-app notification inbox and its websocket feed
type Notification struct {
	NDB  databases.NotificationDatabase
	Hub  *notify.Hub
	Auth TokenResolver
}

func inboxFilter(p models.Principal) bson.M {
	return bson.M{"recipientId": p.ID, "recipientType": p.Kind}
}

// NotificationsHandler returns a page of the caller's notifications and the unread count
func (n Notification) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	page := paginateFromRequest(r)
	filter := inboxFilter(p)
	if unread, ok := parseBoolQuery(r, "unread"); ok && unread {
		filter["isRead"] = false
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	items, err := n.NDB.Find(ctx, filter, page.FindOptions())
	if err != nil {
		config.ErrorStatus("failed to get notifications", http.StatusInternalServerError, w, err)
		return
	}
	total, err := n.NDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count notifications", http.StatusInternalServerError, w, err)
		return
	}
	unreadFilter := inboxFilter(p)
	unreadFilter["isRead"] = false
	unread, err := n.NDB.CountDocuments(ctx, unreadFilter)
	if err != nil {
		config.ErrorStatus("failed to count unread notifications", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{
		Data:       map[string]interface{}{"notifications": items, "unreadCount": unread},
		Pagination: models.NewPagination(page.Page, page.Limit, total),
	})
}

// MarkNotificationReadHandler marks one of the caller's notifications read
func (n Notification) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	id, ok := objectIDVar(w, r, "id")
	if !ok {
		return
	}
	filter := inboxFilter(p)
	filter["_id"] = id

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := n.NDB.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		config.ErrorStatus("failed to update notification", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("notification not found", http.StatusNotFound, w, nil)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Notification marked as read"})
}

// MarkAllNotificationsReadHandler marks every unread notification of the caller read
func (n Notification) MarkAllNotificationsReadHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	filter := inboxFilter(p)
	filter["isRead"] = false

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := n.NDB.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		config.ErrorStatus("failed to update notifications", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{
		Data:    map[string]int64{"updated": res.ModifiedCount},
		Message: "All notifications marked as read",
	})
}

// WebSocketHandler authenticates the token query parameter and streams the caller's
// notifications. Browsers cannot set headers on websocket upgrades.
func (n Notification) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		config.ErrorStatus("token query parameter required", http.StatusUnauthorized, w, nil)
		return
	}
	p, err := n.Auth.Principal(token)
	if err != nil {
		config.ErrorStatus("Not authorized", http.StatusUnauthorized, w, err)
		return
	}
	n.Hub.Serve(w, r, notify.Key(p.Kind, p.ID))
}
