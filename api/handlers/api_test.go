package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/webnest/webnest-api/api/auth"
	"github.com/webnest/webnest-api/api/handlers"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/models"
)

const testSecret = "test-secret"

func newApp(services ...string) *handlers.App {
	if len(services) == 0 {
		services = []string{"admin", "client", "developer"}
	}
	a := &handlers.App{Config: config.Config{
		Services:       services,
		JWTSecret:      testSecret,
		AccessTokenTTL: time.Minute,
		AllowedOrigins: []string{"http://localhost:3000"},
	}}
	a.Router = a.New()
	return a
}

func bearer(t *testing.T, p models.Principal) string {
	t.Helper()
	token, err := auth.NewTokenService(nil, testSecret, time.Minute).IssueAccessToken(p)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(a *handlers.App, method, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func TestApp_HealthAndUnknownRoutes(t *testing.T) {
	a := newApp()

	rr := do(a, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"alive": true}`, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, do(a, "GET", "/api/nowhere", "").Code)
}

func TestApp_RouteGuards(t *testing.T) {
	a := newApp()
	developer := models.Principal{Kind: models.KindDeveloper, ID: primitive.NewObjectID(), Email: "dev@example.com"}
	moderator := models.Principal{Kind: models.KindAdmin, ID: primitive.NewObjectID(), Email: "mod@webnest.io", Role: models.RoleModerator}

	cases := []struct {
		name   string
		method string
		target string
		auth   string
		status int
	}{
		{"no token", "GET", "/api/admin/users", "", http.StatusUnauthorized},
		{"garbage token", "GET", "/api/admin/users", "Bearer nope", http.StatusUnauthorized},
		{"wrong kind", "GET", "/api/admin/users", bearer(t, developer), http.StatusForbidden},
		{"admin token on client service", "GET", "/api/client/projects", bearer(t, moderator), http.StatusForbidden},
		{"non-owner managing admins", "GET", "/api/admin/admins", bearer(t, moderator), http.StatusForbidden},
		{"logout-all needs a token", "POST", "/api/auth/logout-all", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, do(a, tc.method, tc.target, tc.auth).Code)
		})
	}
}

func TestApp_ServicesAreMountedSelectively(t *testing.T) {
	a := newApp("client")

	assert.Equal(t, http.StatusNotFound, do(a, "POST", "/api/admin/auth/login", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(a, "GET", "/api/client/projects", "").Code)
	assert.Equal(t, http.StatusNotFound, do(a, "GET", "/api/developer/assignments", "").Code)
}

func TestApp_CORSPreflight(t *testing.T) {
	a := newApp()
	req := httptest.NewRequest("OPTIONS", "/api/client/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestApp_WebSocketNeedsToken(t *testing.T) {
	a := newApp()

	rr := do(a, "GET", "/ws/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(a, "GET", "/ws/notifications?token=nope", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "Not authorized"))
}
