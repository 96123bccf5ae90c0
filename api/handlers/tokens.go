package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/auth"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

type sessionTokens struct {
	Token        string
	RefreshToken string
	ExpiresIn    int64
}

// with renders the tokens alongside the logged-in account under key
func (s sessionTokens) with(key string, account interface{}) map[string]interface{} {
	return map[string]interface{}{
		"token":        s.Token,
		"refreshToken": s.RefreshToken,
		"expiresIn":    s.ExpiresIn,
		key:            account,
	}
}

func issueSession(ctx context.Context, tokens *auth.TokenService, p models.Principal, r *http.Request) (sessionTokens, error) {
	access, err := tokens.IssueAccessToken(p)
	if err != nil {
		return sessionTokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := tokens.IssueRefreshToken(ctx, p.ID, p.Kind, deviceFromRequest(r))
	if err != nil {
		return sessionTokens{}, err
	}
	return sessionTokens{Token: access, RefreshToken: refresh, ExpiresIn: int64(tokens.AccessTTL().Seconds())}, nil
}

func setInsertedID(id *primitive.ObjectID, res databases.InsertOneResultHelper) {
	if res == nil {
		return
	}
	if oid, ok := res.Decode().(primitive.ObjectID); ok {
		*id = oid
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Tokens exchanges and revokes refresh tokens for every principal kind
type Tokens struct {
	Tokens *auth.TokenService
	ADB    databases.AdminDatabase
	UDB    databases.UserDatabase
	DevDB  databases.DeveloperDatabase
}

// principalFor reloads the owner of a refresh token so the new access token carries
// current email and role. Inactive owners are refused.
func (t Tokens) principalFor(ctx context.Context, rt *models.RefreshToken) (models.Principal, error) {
	filter := bson.M{"_id": rt.OwnerID}
	switch rt.OwnerType {
	case models.KindAdmin:
		a, err := t.ADB.FindOne(ctx, filter)
		if err != nil {
			return models.Principal{}, err
		}
		if !a.IsActive || !a.IsVerified {
			return models.Principal{}, auth.ErrAccountLocked
		}
		return adminPrincipal(a), nil
	case models.KindUser:
		u, err := t.UDB.FindOne(ctx, filter)
		if err != nil {
			return models.Principal{}, err
		}
		if !u.IsActive {
			return models.Principal{}, auth.ErrAccountLocked
		}
		return models.Principal{Kind: models.KindUser, ID: u.ID, Email: u.Email}, nil
	case models.KindDeveloper:
		d, err := t.DevDB.FindOne(ctx, filter)
		if err != nil {
			return models.Principal{}, err
		}
		if !d.IsActive {
			return models.Principal{}, auth.ErrAccountLocked
		}
		return models.Principal{Kind: models.KindDeveloper, ID: d.ID, Email: d.Email}, nil
	}
	return models.Principal{}, auth.ErrInvalidToken
}

// RefreshHandler returns a new access token for a valid refresh token
func (t Tokens) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	rt, err := t.Tokens.ValidateRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	p, err := t.principalFor(ctx, rt)
	if err != nil {
		if errors.Is(err, databases.ErrNotFound) {
			err = fmt.Errorf("%w: owner gone", auth.ErrInvalidToken)
		}
		writeAuthError(w, err)
		return
	}
	access, err := t.Tokens.IssueAccessToken(p)
	if err != nil {
		config.ErrorStatus("failed to issue access token", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: map[string]interface{}{
		"token":     access,
		"expiresIn": int64(t.Tokens.AccessTTL().Seconds()),
	}})
}

// LogoutHandler revokes the given refresh token
func (t Tokens) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		config.ErrorStatus("refreshToken required", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := t.Tokens.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
		config.ErrorStatus("failed to revoke token", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Message: "Logged out"})
}

// LogoutAllHandler revokes every refresh token of the caller
func (t Tokens) LogoutAllHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	n, err := t.Tokens.RevokeAll(ctx, p.ID, p.Kind)
	if err != nil {
		config.ErrorStatus("failed to revoke tokens", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("revoked all sessions", "kind", p.Kind, "id", p.ID.Hex(), "count", n)
	config.WriteJSON(w, http.StatusOK, models.Response{
		Data:    map[string]int64{"revoked": n},
		Message: "Logged out of all sessions",
	})
}
