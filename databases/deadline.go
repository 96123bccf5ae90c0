package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/models"
)

const deadlineName = "project_deadlines"

// DeadlineDatabase contains the methods to use with the project deadline database
type DeadlineDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.ProjectDeadline, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.ProjectDeadline, error)
	InsertOne(context.Context, models.ProjectDeadline) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type deadlineDatabase struct {
	db DatabaseHelper
}

// NewDeadlineDatabase initializes a new instance of deadline database with the provided db connection
func NewDeadlineDatabase(db DatabaseHelper) DeadlineDatabase {
	return &deadlineDatabase{db: db}
}

func (d *deadlineDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.ProjectDeadline, error) {
	return findOne[models.ProjectDeadline](ctx, d.db.Collection(deadlineName), filter, opts...)
}

func (d *deadlineDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ProjectDeadline, error) {
	return findAll[models.ProjectDeadline](ctx, d.db.Collection(deadlineName), filter, opts...)
}

func (d *deadlineDatabase) InsertOne(ctx context.Context, deadline models.ProjectDeadline) (InsertOneResultHelper, error) {
	return d.db.Collection(deadlineName).InsertOne(ctx, deadline)
}

func (d *deadlineDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return d.db.Collection(deadlineName).UpdateOne(ctx, filter, update, opts...)
}
