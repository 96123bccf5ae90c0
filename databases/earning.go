package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/models"
)

const (
	earningName    = "earnings"
	withdrawalName = "withdrawals"
)

// EarningDatabase contains the methods to use with the earnings ledger
type EarningDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Earning, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Earning, error)
	InsertOne(context.Context, models.Earning) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error
}

type earningDatabase struct {
	db DatabaseHelper
}

// NewEarningDatabase initializes a new instance of earning database with the provided db connection
func NewEarningDatabase(db DatabaseHelper) EarningDatabase {
	return &earningDatabase{db: db}
}

func (e *earningDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Earning, error) {
	return findOne[models.Earning](ctx, e.db.Collection(earningName), filter, opts...)
}

func (e *earningDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Earning, error) {
	return findAll[models.Earning](ctx, e.db.Collection(earningName), filter, opts...)
}

func (e *earningDatabase) InsertOne(ctx context.Context, earning models.Earning) (InsertOneResultHelper, error) {
	return e.db.Collection(earningName).InsertOne(ctx, earning)
}

func (e *earningDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return e.db.Collection(earningName).UpdateOne(ctx, filter, update, opts...)
}

func (e *earningDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return e.db.Collection(earningName).CountDocuments(ctx, filter, opts...)
}

func (e *earningDatabase) Aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error {
	return aggregate(ctx, e.db.Collection(earningName), pipeline, results)
}

// WithdrawalDatabase contains the methods to use with the withdrawal database
type WithdrawalDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Withdrawal, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Withdrawal, error)
	InsertOne(context.Context, models.Withdrawal) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
	Aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error
}

type withdrawalDatabase struct {
	db DatabaseHelper
}

// NewWithdrawalDatabase initializes a new instance of withdrawal database with the provided db connection
func NewWithdrawalDatabase(db DatabaseHelper) WithdrawalDatabase {
	return &withdrawalDatabase{db: db}
}

func (w *withdrawalDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Withdrawal, error) {
	return findOne[models.Withdrawal](ctx, w.db.Collection(withdrawalName), filter, opts...)
}

func (w *withdrawalDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Withdrawal, error) {
	return findAll[models.Withdrawal](ctx, w.db.Collection(withdrawalName), filter, opts...)
}

func (w *withdrawalDatabase) InsertOne(ctx context.Context, withdrawal models.Withdrawal) (InsertOneResultHelper, error) {
	return w.db.Collection(withdrawalName).InsertOne(ctx, withdrawal)
}

func (w *withdrawalDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return w.db.Collection(withdrawalName).UpdateOne(ctx, filter, update, opts...)
}

func (w *withdrawalDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return w.db.Collection(withdrawalName).CountDocuments(ctx, filter, opts...)
}

func (w *withdrawalDatabase) Aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error {
	return aggregate(ctx, w.db.Collection(withdrawalName), pipeline, results)
}
