// Package docs WebNest API.
//
// Documentation of the WebNest admin, client and developer services.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - bearer
//
//    SecurityDefinitions:
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/webnest/webnest-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the health of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/admin/projects admin adminProjects
// Lists projects, filtered by status, clientId and developerId.
// responses:
//   200: projectsResponse

// A page of projects
// swagger:response projectsResponse
type projectsResponseWrapper struct {
	// in:body
	Body struct {
		Success    bool               `json:"success"`
		Data       []models.Project   `json:"data"`
		Pagination *models.Pagination `json:"pagination"`
	}
}

// swagger:route GET /api/developer/withdrawals developer developerWithdrawals
// Lists the caller's withdrawals.
// responses:
//   200: withdrawalsResponse

// A page of withdrawals
// swagger:response withdrawalsResponse
type withdrawalsResponseWrapper struct {
	// in:body
	Body struct {
		Success    bool                `json:"success"`
		Data       []models.Withdrawal `json:"data"`
		Pagination *models.Pagination  `json:"pagination"`
	}
}

// swagger:route GET /api/client/notifications client clientNotifications
// Lists the caller's notifications with the unread count.
// responses:
//   200: notificationsResponse

// A page of notifications
// swagger:response notificationsResponse
type notificationsResponseWrapper struct {
	// in:body
	Body struct {
		Success bool `json:"success"`
		Data    struct {
			Notifications []models.Notification `json:"notifications"`
			UnreadCount   int64                 `json:"unreadCount"`
		} `json:"data"`
		Pagination *models.Pagination `json:"pagination"`
	}
}
