package auth_test

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/api/auth"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

// fakeTokenDB stores tokens by value and ignores query operators, so the service's own
// Usable re-check is what rejects stale rows.
type fakeTokenDB struct {
	rows    map[string]*models.RefreshToken
	touched int
}

func newFakeTokenDB() *fakeTokenDB {
	return &fakeTokenDB{rows: map[string]*models.RefreshToken{}}
}

func (f *fakeTokenDB) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.RefreshToken, error) {
	rt, ok := f.rows[filter.(bson.M)["token"].(string)]
	if !ok {
		return nil, databases.ErrNotFound
	}
	cp := *rt
	return &cp, nil
}

func (f *fakeTokenDB) InsertOne(ctx context.Context, rt models.RefreshToken) (databases.InsertOneResultHelper, error) {
	rt.ID = primitive.NewObjectID()
	f.rows[rt.Token] = &rt
	return nil, nil
}

func (f *fakeTokenDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	set := update.(bson.M)["$set"].(bson.M)
	for _, rt := range f.rows {
		fm := filter.(bson.M)
		if fm["_id"] == rt.ID || fm["token"] == rt.Token {
			if v, ok := set["lastUsed"]; ok {
				rt.LastUsed = v.(time.Time)
				f.touched++
			}
			if v, ok := set["isActive"]; ok {
				rt.IsActive = v.(bool)
			}
		}
	}
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (f *fakeTokenDB) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	fm := filter.(bson.M)
	var n int64
	for _, rt := range f.rows {
		if rt.OwnerID == fm["ownerId"] && rt.OwnerType == fm["ownerType"] && rt.IsActive {
			rt.IsActive = false
			n++
		}
	}
	return &mongo.UpdateResult{MatchedCount: n, ModifiedCount: n}, nil
}

func (f *fakeTokenDB) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return 0, nil
}

func newTokens() (*auth.TokenService, *fakeTokenDB) {
	db := newFakeTokenDB()
	svc := auth.NewTokenService(db, "test-secret", 15*time.Minute)
	svc.Now = func() time.Time { return clock }
	return svc, db
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc, _ := newTokens()
	p := models.Principal{Kind: models.KindAdmin, ID: primitive.NewObjectID(), Email: "ada@webnest.io", Role: models.RoleOwner}

	token, err := svc.IssueAccessToken(p)
	require.NoError(t, err)

	got, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestAccessToken_Expired(t *testing.T) {
	svc, _ := newTokens()
	token, err := svc.IssueAccessToken(models.Principal{Kind: models.KindUser, ID: primitive.NewObjectID()})
	require.NoError(t, err)

	svc.Now = func() time.Time { return clock.Add(16 * time.Minute) }
	_, err = svc.ParseAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAccessToken_RejectsOtherKeysAndAlgorithms(t *testing.T) {
	svc, _ := newTokens()
	claims := auth.AccessClaims{
		Kind: models.KindAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   primitive.NewObjectID().Hex(),
			ExpiresAt: jwt.NewNumericDate(clock.Add(time.Hour)),
		},
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(forged)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(none)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestAccessToken_RejectsUnknownKind(t *testing.T) {
	svc, _ := newTokens()
	token, err := svc.IssueAccessToken(models.Principal{Kind: "robot", ID: primitive.NewObjectID()})
	require.NoError(t, err)
	_, err = svc.ParseAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestRefreshToken_IssueAndValidate(t *testing.T) {
	svc, db := newTokens()
	owner := primitive.NewObjectID()

	token, err := svc.IssueRefreshToken(context.Background(), owner, models.KindDeveloper, models.DeviceInfo{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Len(t, token, 80)
	_, err = hex.DecodeString(token)
	assert.NoError(t, err)

	stored := db.rows[token]
	assert.Equal(t, clock.Add(30*24*time.Hour), stored.ExpiresAt)
	assert.True(t, stored.IsActive)

	svc.Now = func() time.Time { return clock.Add(time.Hour) }
	rt, err := svc.ValidateRefreshToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, owner, rt.OwnerID)
	assert.Equal(t, 1, db.touched)
	assert.Equal(t, clock.Add(time.Hour), db.rows[token].LastUsed)
}

func TestRefreshToken_NeverValidatesWhenStale(t *testing.T) {
	svc, db := newTokens()
	db.rows["expired"] = &models.RefreshToken{ID: primitive.NewObjectID(), Token: "expired", IsActive: true, ExpiresAt: clock}
	db.rows["revoked"] = &models.RefreshToken{ID: primitive.NewObjectID(), Token: "revoked", IsActive: false, ExpiresAt: clock.Add(time.Hour)}

	for _, tok := range []string{"expired", "revoked", "missing", ""} {
		_, err := svc.ValidateRefreshToken(context.Background(), tok)
		assert.ErrorIs(t, err, auth.ErrInvalidToken, tok)
	}
	assert.Equal(t, 0, db.touched)
}

func TestRefreshToken_Revoke(t *testing.T) {
	svc, _ := newTokens()
	owner := primitive.NewObjectID()
	ctx := context.Background()

	a, err := svc.IssueRefreshToken(ctx, owner, models.KindUser, models.DeviceInfo{})
	require.NoError(t, err)
	b, err := svc.IssueRefreshToken(ctx, owner, models.KindUser, models.DeviceInfo{})
	require.NoError(t, err)

	require.NoError(t, svc.RevokeRefreshToken(ctx, a))
	_, err = svc.ValidateRefreshToken(ctx, a)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	n, err := svc.RevokeAll(ctx, owner, models.KindUser)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = svc.ValidateRefreshToken(ctx, b)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
