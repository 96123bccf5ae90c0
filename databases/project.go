package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/models"
)

const projectName = "projects"

// ProjectDatabase contains the methods to use with the project database
type ProjectDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Project, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Project, error)
	InsertOne(context.Context, models.Project, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error
}

type projectDatabase struct {
	db DatabaseHelper
}

// NewProjectDatabase initializes a new instance of project database with the provided db connection
func NewProjectDatabase(db DatabaseHelper) ProjectDatabase {
	return &projectDatabase{
		db: db,
	}
}

func (p *projectDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Project, error) {
	return findOne[models.Project](ctx, p.db.Collection(projectName), filter, opts...)
}

func (p *projectDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Project, error) {
	return findAll[models.Project](ctx, p.db.Collection(projectName), filter, opts...)
}

func (p *projectDatabase) InsertOne(ctx context.Context, project models.Project, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return p.db.Collection(projectName).InsertOne(ctx, project, opts...)
}

func (p *projectDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return p.db.Collection(projectName).UpdateOne(ctx, filter, update, opts...)
}

func (p *projectDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return p.db.Collection(projectName).CountDocuments(ctx, filter, opts...)
}

func (p *projectDatabase) Aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error {
	return aggregate(ctx, p.db.Collection(projectName), pipeline, results)
}

const assignmentName = "project_assignments"

// AssignmentDatabase contains the methods to use with the project assignment database
type AssignmentDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Assignment, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Assignment, error)
	InsertOne(context.Context, models.Assignment, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type assignmentDatabase struct {
	db DatabaseHelper
}

// NewAssignmentDatabase initializes a new instance of assignment database with the provided db connection
func NewAssignmentDatabase(db DatabaseHelper) AssignmentDatabase {
	return &assignmentDatabase{db: db}
}

func (a *assignmentDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Assignment, error) {
	return findOne[models.Assignment](ctx, a.db.Collection(assignmentName), filter, opts...)
}

func (a *assignmentDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Assignment, error) {
	return findAll[models.Assignment](ctx, a.db.Collection(assignmentName), filter, opts...)
}

func (a *assignmentDatabase) InsertOne(ctx context.Context, assignment models.Assignment, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return a.db.Collection(assignmentName).InsertOne(ctx, assignment, opts...)
}

func (a *assignmentDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return a.db.Collection(assignmentName).UpdateOne(ctx, filter, update, opts...)
}

func (a *assignmentDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return a.db.Collection(assignmentName).CountDocuments(ctx, filter, opts...)
}
