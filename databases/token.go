package databases

// go generate: mockery --name RefreshTokenDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/models"
)

const refreshTokenName = "refresh_tokens"

// RefreshTokenDatabase contains the methods to use with the refresh token database
type RefreshTokenDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.RefreshToken, error)
	InsertOne(context.Context, models.RefreshToken) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(context.Context, interface{}, ...*options.DeleteOptions) (int64, error)
}

type refreshTokenDatabase struct {
	db DatabaseHelper
}

// NewRefreshTokenDatabase initializes a new instance of refresh token database with the provided db connection
func NewRefreshTokenDatabase(db DatabaseHelper) RefreshTokenDatabase {
	return &refreshTokenDatabase{
		db: db,
	}
}

func (t *refreshTokenDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.RefreshToken, error) {
	return findOne[models.RefreshToken](ctx, t.db.Collection(refreshTokenName), filter, opts...)
}

func (t *refreshTokenDatabase) InsertOne(ctx context.Context, token models.RefreshToken) (InsertOneResultHelper, error) {
	return t.db.Collection(refreshTokenName).InsertOne(ctx, token)
}

func (t *refreshTokenDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return t.db.Collection(refreshTokenName).UpdateOne(ctx, filter, update, opts...)
}

func (t *refreshTokenDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return t.db.Collection(refreshTokenName).UpdateMany(ctx, filter, update, opts...)
}

func (t *refreshTokenDatabase) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return t.db.Collection(refreshTokenName).DeleteMany(ctx, filter, opts...)
}
