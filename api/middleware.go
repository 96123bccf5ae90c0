package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	gauth "github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/models"
)

type principalKey struct{}

// AccessTokenVerifier turns a bearer token into a principal and its expiry
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (models.Principal, time.Time, error)
}

// Authenticator resolves the bearer token of a request once and stores the resulting
// principal on the request context
type Authenticator struct {
	verifier      AccessTokenVerifier
	authenticator gauth.Authenticator
	now           func() time.Time
}

// NewAuthenticator sets up go-guardian with a cached bearer strategy backed by verifier.
// cacheTTL bounds how long a verified token skips signature checks.
func NewAuthenticator(verifier AccessTokenVerifier, cacheTTL time.Duration) *Authenticator {
	a := &Authenticator{verifier: verifier, now: time.Now}
	a.authenticator = gauth.New()
	cache := store.NewFIFO(context.Background(), cacheTTL)
	tokenStrategy := bearer.New(a.validate, cache)
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
	return a
}

func (a *Authenticator) validate(ctx context.Context, r *http.Request, token string) (gauth.Info, error) {
	p, exp, err := a.verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}
	// cached entries are re-checked against exp so a cache hit never outlives the token
	ext := map[string][]string{"exp": {strconv.FormatInt(exp.Unix(), 10)}}
	return gauth.NewDefaultUser(p.Email, p.ID.Hex(), []string{string(p.Kind), p.Role}, ext), nil
}

// Principal resolves a raw access token, for transports that cannot send headers
func (a *Authenticator) Principal(token string) (models.Principal, error) {
	p, _, err := a.verifier.VerifyAccessToken(token)
	return p, err
}

// Middleware rejects requests without a valid bearer token and stores the principal
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := a.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Debugw("unauthorized", "url", r.URL.Path, "error", err)
			config.ErrorStatus("Not authorized", http.StatusUnauthorized, w, nil)
			return
		}
		p, err := principalFromInfo(info, a.now())
		if err != nil {
			config.ErrorStatus("Not authorized", http.StatusUnauthorized, w, nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func principalFromInfo(info gauth.Info, now time.Time) (models.Principal, error) {
	if exp := info.Extensions()["exp"]; len(exp) == 1 {
		unix, err := strconv.ParseInt(exp[0], 10, 64)
		if err != nil || now.Unix() >= unix {
			return models.Principal{}, errors.New("token expired")
		}
	}
	groups := info.Groups()
	if len(groups) != 2 {
		return models.Principal{}, errors.New("malformed principal")
	}
	kind := models.PrincipalKind(groups[0])
	if !kind.Valid() {
		return models.Principal{}, errors.New("unknown principal kind")
	}
	id, err := primitive.ObjectIDFromHex(info.ID())
	if err != nil {
		return models.Principal{}, err
	}
	return models.Principal{Kind: kind, ID: id, Email: info.UserName(), Role: groups[1]}, nil
}

// WithPrincipal returns ctx carrying p
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the auth middleware
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok
}

// RequireKind only lets principals of the given kinds through
func RequireKind(kinds ...models.PrincipalKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				config.ErrorStatus("Not authorized", http.StatusUnauthorized, w, nil)
				return
			}
			for _, k := range kinds {
				if p.Kind == k {
					next.ServeHTTP(w, r)
					return
				}
			}
			config.ErrorStatus("Access denied", http.StatusForbidden, w, nil)
		})
	}
}

// RequireRole only lets admins holding one of roles through
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				config.ErrorStatus("Not authorized", http.StatusUnauthorized, w, nil)
				return
			}
			if p.Kind == models.KindAdmin {
				for _, role := range roles {
					if p.Role == role {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			config.ErrorStatus("Insufficient permissions", http.StatusForbidden, w, nil)
		})
	}
}
