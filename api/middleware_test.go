package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/models"
)

type stubVerifier struct {
	principals map[string]models.Principal
	exp        time.Time
	calls      map[string]int
}

func (s *stubVerifier) VerifyAccessToken(token string) (models.Principal, time.Time, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[token]++
	p, ok := s.principals[token]
	if !ok {
		return models.Principal{}, time.Time{}, errors.New("bad token")
	}
	return p, s.exp, nil
}

func echoPrincipal(w http.ResponseWriter, r *http.Request) {
	p, ok := api.PrincipalFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(p)
}

func TestAuthenticator_Middleware(t *testing.T) {
	owner := models.Principal{Kind: models.KindAdmin, ID: primitive.NewObjectID(), Email: "ada@webnest.io", Role: models.RoleOwner}
	v := &stubVerifier{principals: map[string]models.Principal{"good": owner}, exp: time.Now().Add(time.Hour)}
	a := api.NewAuthenticator(v, time.Minute)
	h := a.Middleware(http.HandlerFunc(echoPrincipal))

	t.Run("missing token", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/auth/me", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token is resolved once and cached", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/auth/me", nil)
			req.Header.Set("Authorization", "Bearer good")
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)

			var got models.Principal
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
			assert.Equal(t, owner, got)
		}
		assert.Equal(t, 1, v.calls["good"])
	})
}

func TestAuthenticator_CachedTokenPastExpiry(t *testing.T) {
	p := models.Principal{Kind: models.KindUser, ID: primitive.NewObjectID()}
	v := &stubVerifier{principals: map[string]models.Principal{"soon": p}, exp: time.Now().Add(-time.Second)}
	a := api.NewAuthenticator(v, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer soon")
	rr := httptest.NewRecorder()
	a.Middleware(http.HandlerFunc(echoPrincipal)).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireKind(t *testing.T) {
	h := api.RequireKind(models.KindDeveloper)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		ctx    context.Context
		status int
	}{
		{"no principal", context.Background(), http.StatusUnauthorized},
		{"wrong kind", api.WithPrincipal(context.Background(), models.Principal{Kind: models.KindUser}), http.StatusForbidden},
		{"right kind", api.WithPrincipal(context.Background(), models.Principal{Kind: models.KindDeveloper}), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tt.ctx))
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	h := api.RequireRole(models.RoleOwner)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tt := range []struct {
		p      models.Principal
		status int
	}{
		{models.Principal{Kind: models.KindAdmin, Role: models.RoleOwner}, http.StatusNoContent},
		{models.Principal{Kind: models.KindAdmin, Role: models.RoleModerator}, http.StatusForbidden},
		{models.Principal{Kind: models.KindUser, Role: models.RoleOwner}, http.StatusForbidden},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(api.WithPrincipal(context.Background(), tt.p)))
		assert.Equal(t, tt.status, rr.Code)
	}
}

func TestRateLimit_Memory(t *testing.T) {
	l := api.NewMemoryLimiter(3, time.Hour)
	h := api.RateLimit(l, "login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := []int{}
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/auth/login", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{200, 200, 200, 429}, codes)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/auth/login", nil)
	req.RemoteAddr = "198.51.100.1:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "other clients are unaffected")
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) { return false, errors.New("redis down") }

func TestRateLimit_FailsOpen(t *testing.T) {
	h := api.RateLimit(brokenLimiter{}, "otp")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewLimiter_FallsBackToMemory(t *testing.T) {
	assert.IsType(t, &api.MemoryLimiter{}, api.NewLimiter("", "x", 5, time.Minute))
	assert.IsType(t, &api.MemoryLimiter{}, api.NewLimiter("::not a url", "x", 5, time.Minute))
	assert.IsType(t, &api.RedisLimiter{}, api.NewLimiter("redis://localhost:6379/0", "x", 5, time.Minute))
}

func TestTimeoutMiddleware(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		_, _ = w.Write([]byte("late"))
	})
	rr := httptest.NewRecorder()
	api.TimeoutMiddleware(10*time.Millisecond)(slow).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	assert.NotContains(t, rr.Body.String(), "late")

	fast := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	})
	rr = httptest.NewRecorder()
	api.TimeoutMiddleware(time.Second)(fast).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.Equal(t, "1", rr.Header().Get("X-Test"))
}

func TestMetricsMiddleware_SetsRequestID(t *testing.T) {
	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware)
	r.HandleFunc("/api/client/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, api.RequestIDFrom(r.Context()))
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/client/projects/abc", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:443"
	assert.Equal(t, "10.1.1.1", api.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", api.ClientIP(req))
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	api.New().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"alive": true}`, rr.Body.String())
}
