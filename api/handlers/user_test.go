package handlers_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/webnest/webnest-api/api/handlers"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/databases/mocks"
	"github.com/webnest/webnest-api/models"
)

func TestUser_UsersHandlerPaginates(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}

	cursor.On("Decode", mock.Anything).Run(func(args mock.Arguments) {
		out := args.Get(0).(*[]models.User)
		*out = []models.User{{ID: primitive.NewObjectID(), Name: "Grace", Email: "grace@example.com", IsActive: true}}
	}).Return(nil)
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(cursor, nil)
	conn.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(57), nil)
	db.On("Collection", "users").Return(conn)

	u := handlers.User{UDB: databases.NewUserDatabase(db)}
	rr := serve(u.UsersHandler, newRequest(t, "GET", "/api/admin/users?page=3&limit=20", nil, nil, nil))

	require.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.True(t, env.Success)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, models.Pagination{Page: 3, Limit: 20, Total: 57, Pages: 3}, *env.Pagination)
}

func TestUser_UsersHandlerFindError(t *testing.T) {
	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	conn.On("Find", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("mocked-error"))
	db.On("Collection", "users").Return(conn)

	u := handlers.User{UDB: databases.NewUserDatabase(db)}
	rr := serve(u.UsersHandler, newRequest(t, "GET", "/api/admin/users", nil, nil, nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestUser_UserByIDHandler(t *testing.T) {
	t.Run("malformed id", func(t *testing.T) {
		u := handlers.User{}
		rr := serve(u.UserByIDHandler, newRequest(t, "GET", "/api/admin/users/nope", nil, map[string]string{"id": "nope"}, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("not found", func(t *testing.T) {
		db := &mocks.DatabaseHelper{}
		conn := &mocks.CollectionHelper{}
		single := &mocks.SingleResultHelper{}
		single.On("Decode", mock.Anything).Return(databases.ErrNotFound)
		conn.On("FindOne", mock.Anything, mock.Anything).Return(single)
		db.On("Collection", "users").Return(conn)

		u := handlers.User{UDB: databases.NewUserDatabase(db)}
		id := primitive.NewObjectID().Hex()
		rr := serve(u.UserByIDHandler, newRequest(t, "GET", "/api/admin/users/"+id, nil, map[string]string{"id": id}, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestUser_DeleteUserHandler(t *testing.T) {
	id := primitive.NewObjectID().Hex()

	t.Run("refuses while a project is active", func(t *testing.T) {
		db := &mocks.DatabaseHelper{}
		projects := &mocks.CollectionHelper{}
		projects.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(1), nil)
		db.On("Collection", "projects").Return(projects)

		u := handlers.User{UDB: databases.NewUserDatabase(db), PDB: databases.NewProjectDatabase(db)}
		rr := serve(u.DeleteUserHandler, newRequest(t, "DELETE", "/api/admin/users/"+id, nil, map[string]string{"id": id}, nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "Cannot delete user with active projects", decodeEnvelope(t, rr).Message)
		db.AssertNotCalled(t, "Collection", "users")
	})

	t.Run("deletes an idle user", func(t *testing.T) {
		db := &mocks.DatabaseHelper{}
		projects := &mocks.CollectionHelper{}
		users := &mocks.CollectionHelper{}
		projects.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)
		users.On("DeleteOne", mock.Anything, mock.Anything).Return(int64(1), nil)
		db.On("Collection", "projects").Return(projects)
		db.On("Collection", "users").Return(users)

		u := handlers.User{UDB: databases.NewUserDatabase(db), PDB: databases.NewProjectDatabase(db)}
		rr := serve(u.DeleteUserHandler, newRequest(t, "DELETE", "/api/admin/users/"+id, nil, map[string]string{"id": id}, nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		users.AssertExpectations(t)
	})
}

func TestUser_UpdateUserStatusHandler(t *testing.T) {
	id := primitive.NewObjectID().Hex()

	t.Run("requires isActive", func(t *testing.T) {
		u := handlers.User{}
		rr := serve(u.UpdateUserStatusHandler, newRequest(t, "PUT", "/", map[string]string{}, map[string]string{"id": id}, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		db := &mocks.DatabaseHelper{}
		users := &mocks.CollectionHelper{}
		users.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{}, nil)
		db.On("Collection", "users").Return(users)

		u := handlers.User{UDB: databases.NewUserDatabase(db)}
		rr := serve(u.UpdateUserStatusHandler, newRequest(t, "PUT", "/", map[string]bool{"isActive": false}, map[string]string{"id": id}, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
