package databases_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

// startMongo runs a throwaway mongo container. The test is skipped in -short mode or
// when no container runtime is reachable.
func startMongo(t *testing.T) databases.DatabaseHelper {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo integration test in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Skipf("could not start mongodb container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	conf := &config.Config{URL: uri, DatabaseName: "webnest_test"}
	client, err := databases.NewClient(conf)
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	require.NoError(t, client.Ping(ctx))

	return databases.NewDatabase(conf, client)
}

func TestIntegration_SchedulerLockLease(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()
	locks := databases.NewSchedulerLockDatabase(db)

	ok, err := locks.TryAcquireLock(ctx, "deadline_reminders", "pod-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locks.TryAcquireLock(ctx, "deadline_reminders", "pod-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a live lease must not be stolen")

	ok, err = locks.TryAcquireLock(ctx, "deadline_reminders", "pod-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "the holder can renew its lease")

	require.NoError(t, locks.ReleaseLock(ctx, "deadline_reminders", "pod-a"))

	ok, err = locks.TryAcquireLock(ctx, "deadline_reminders", "pod-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIntegration_RefreshTokenCleanup(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()
	tokens := databases.NewRefreshTokenDatabase(db)
	now := time.Now().UTC()
	owner := primitive.NewObjectID()

	rows := []models.RefreshToken{
		{Token: "live", OwnerID: owner, OwnerType: models.KindUser, IsActive: true, ExpiresAt: now.Add(time.Hour)},
		{Token: "expired", OwnerID: owner, OwnerType: models.KindUser, IsActive: true, ExpiresAt: now.Add(-time.Hour)},
		{Token: "revoked", OwnerID: owner, OwnerType: models.KindUser, IsActive: false, ExpiresAt: now.Add(time.Hour)},
	}
	for _, row := range rows {
		_, err := tokens.InsertOne(ctx, row)
		require.NoError(t, err)
	}

	deleted, err := tokens.DeleteMany(ctx, bson.M{"$or": []bson.M{
		{"expiresAt": bson.M{"$lte": now}},
		{"isActive": false},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	live, err := tokens.FindOne(ctx, bson.M{"token": "live"})
	require.NoError(t, err)
	assert.True(t, live.Usable(now))

	_, err = tokens.FindOne(ctx, bson.M{"token": "expired"})
	assert.ErrorIs(t, err, databases.ErrNotFound)
}

func TestIntegration_UserPagination(t *testing.T) {
	db := startMongo(t)
	ctx := context.Background()
	users := databases.NewUserDatabase(db)

	base := time.Now().UTC()
	for i := 0; i < 57; i++ {
		_, err := users.InsertOne(ctx, models.User{
			Name:      "client",
			Email:     primitive.NewObjectID().Hex() + "@example.com",
			IsActive:  true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	total, err := users.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(57), total)

	page := databases.NewPaginate(20, 3)
	list, err := users.Find(ctx, bson.M{}, page.FindOptions())
	require.NoError(t, err)
	assert.Len(t, list, 17)
	assert.Equal(t, 3, models.NewPagination(page.Page, page.Limit, total).Pages)
}
