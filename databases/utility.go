package databases

import (
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultPageLimit and MaxPageLimit bound list endpoints
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100

	// MaxPage keeps the skip in FindOptions from overflowing
	MaxPage = math.MaxInt / MaxPageLimit
)

// Paginate holds a normalized page request
type Paginate struct {
	Limit int
	Page  int
}

// NewPaginate clamps page and limit into their valid ranges
func NewPaginate(limit, page int) Paginate {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Paginate{Limit: limit, Page: page}
}

// FindOptions returns newest-first find options for the page
func (p Paginate) FindOptions() *options.FindOptions {
	skip := int64(p.Page*p.Limit - p.Limit)
	return options.Find().
		SetLimit(int64(p.Limit)).
		SetSkip(skip).
		SetSort(bson.D{{Key: "createdAt", Value: -1}})
}
