package databases

// go generate: mockery --name DeveloperDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/models"
)

const developerName = "developers"

// DeveloperDatabase contains the methods to use with the developer database
type DeveloperDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Developer, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Developer, error)
	InsertOne(context.Context, models.Developer, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) (int64, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type developerDatabase struct {
	db DatabaseHelper
}

// NewDeveloperDatabase initializes a new instance of developer database with the provided db connection
func NewDeveloperDatabase(db DatabaseHelper) DeveloperDatabase {
	return &developerDatabase{
		db: db,
	}
}

func (d *developerDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Developer, error) {
	return findOne[models.Developer](ctx, d.db.Collection(developerName), filter, opts...)
}

func (d *developerDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Developer, error) {
	return findAll[models.Developer](ctx, d.db.Collection(developerName), filter, opts...)
}

func (d *developerDatabase) InsertOne(ctx context.Context, developer models.Developer, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return d.db.Collection(developerName).InsertOne(ctx, developer, opts...)
}

func (d *developerDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return d.db.Collection(developerName).UpdateOne(ctx, filter, update, opts...)
}

func (d *developerDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (int64, error) {
	return d.db.Collection(developerName).DeleteOne(ctx, filter, opts...)
}

func (d *developerDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return d.db.Collection(developerName).CountDocuments(ctx, filter, opts...)
}
