package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/databases/mocks"
	"github.com/webnest/webnest-api/models"
)

func TestNewUserDatabase(t *testing.T) {
	_ = os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	_ = os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	userDB := databases.NewUserDatabase(db)

	assert.NotEmpty(t, userDB)
}

func TestUserDatabase_FindOne(t *testing.T) {
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(databases.ErrNotFound)

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.User)
		arg.Email = "mocked@example.com"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "users").Return(collectionHelper)

	userDba := databases.NewUserDatabase(dbHelper)

	user, err := userDba.FindOne(context.Background(), bson.M{"error": true})
	assert.Nil(t, user)
	assert.ErrorIs(t, err, databases.ErrNotFound)

	user, err = userDba.FindOne(context.Background(), bson.M{"error": false})
	assert.NoError(t, err)
	assert.Equal(t, "mocked@example.com", user.Email)
}

func TestProjectDatabase_FindReturnsEmptySlice(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursorHelper := &mocks.CursorHelper{}

	cursorHelper.On("Decode", mock.Anything).Return(nil)
	collectionHelper.On("Find", context.Background(), bson.M{}).Return(cursorHelper, nil)
	dbHelper.On("Collection", "projects").Return(collectionHelper)

	projects, err := databases.NewProjectDatabase(dbHelper).Find(context.Background(), bson.M{})
	require.NoError(t, err)
	assert.NotNil(t, projects)
	assert.Len(t, projects, 0)
}

func TestProjectDatabase_FindError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("Find", context.Background(), bson.M{}).Return(nil, errors.New("mocked-error"))
	dbHelper.On("Collection", "projects").Return(collectionHelper)

	projects, err := databases.NewProjectDatabase(dbHelper).Find(context.Background(), bson.M{})
	assert.Nil(t, projects)
	assert.EqualError(t, err, "mocked-error")
}

func TestSchedulerLock_TryAcquireLock(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		acquired bool
		wantErr  bool
	}{
		{"free lease", nil, true, false},
		{"held by another instance", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}}, false, false},
		{"server error", errors.New("connection reset"), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbHelper := &mocks.DatabaseHelper{}
			collectionHelper := &mocks.CollectionHelper{}
			collectionHelper.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(&mongo.UpdateResult{}, tt.err)
			dbHelper.On("Collection", "scheduler_locks").Return(collectionHelper)

			ok, err := databases.NewSchedulerLockDatabase(dbHelper).TryAcquireLock(context.Background(), "deadline_reminders", "pod-1", time.Minute)
			assert.Equal(t, tt.acquired, ok)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchedulerLock_ReleaseLockOnlyOwnLease(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	collectionHelper.On("DeleteOne", context.Background(), bson.M{"_id": "deadline_reminders", "owner": "pod-1"}).
		Return(int64(1), nil)
	dbHelper.On("Collection", "scheduler_locks").Return(collectionHelper)

	err := databases.NewSchedulerLockDatabase(dbHelper).ReleaseLock(context.Background(), "deadline_reminders", "pod-1")
	assert.NoError(t, err)
	collectionHelper.AssertExpectations(t)
}

type ownerAdminDB struct {
	databases.AdminDatabase
	existing *models.Admin
	findErr  error
	inserted []models.Admin
}

func (f *ownerAdminDB) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Admin, error) {
	return f.existing, f.findErr
}

func (f *ownerAdminDB) InsertOne(ctx context.Context, admin models.Admin, opts ...*options.InsertOneOptions) (databases.InsertOneResultHelper, error) {
	f.inserted = append(f.inserted, admin)
	return &mocks.InsertOneResultHelper{}, nil
}

func TestEnsureOwnerAdmin(t *testing.T) {
	t.Run("skips when email empty", func(t *testing.T) {
		assert.NoError(t, databases.EnsureOwnerAdmin(context.Background(), nil, "", "pw"))
	})

	t.Run("requires password for a new owner", func(t *testing.T) {
		adb := &ownerAdminDB{findErr: databases.ErrNotFound}
		err := databases.EnsureOwnerAdmin(context.Background(), adb, "owner@webnest.io", "")
		assert.Error(t, err)
		assert.Empty(t, adb.inserted)
	})

	t.Run("inserts a verified owner", func(t *testing.T) {
		adb := &ownerAdminDB{findErr: databases.ErrNotFound}
		err := databases.EnsureOwnerAdmin(context.Background(), adb, " Owner@WebNest.io ", "secret-pass")
		require.NoError(t, err)
		require.Len(t, adb.inserted, 1)
		owner := adb.inserted[0]
		assert.Equal(t, "owner@webnest.io", owner.Email)
		assert.Equal(t, models.RoleOwner, owner.Role)
		assert.True(t, owner.IsVerified)
		assert.True(t, owner.IsActive)
		assert.NotEqual(t, "secret-pass", owner.PasswordHash)
	})

	t.Run("leaves an existing owner alone", func(t *testing.T) {
		adb := &ownerAdminDB{existing: &models.Admin{ID: primitive.NewObjectID()}}
		require.NoError(t, databases.EnsureOwnerAdmin(context.Background(), adb, "owner@webnest.io", "pw"))
		assert.Empty(t, adb.inserted)
	})
}
