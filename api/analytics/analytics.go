// Package analytics builds the aggregation pipelines behind the admin and developer
// reporting endpoints. Every function is pure; callers run the pipelines.
package analytics

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/webnest/webnest-api/models"
)

// Supported time windows
const (
	Range7d  = "7d"
	Range30d = "30d"
	Range90d = "90d"
	Range1y  = "1y"
)

// Supported bucket periods
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

// TopDevelopersLimit caps the top earners report
const TopDevelopersLimit = 10

// ParseRange returns the normalized window name and its start relative to now.
// Unknown and empty values mean 30d.
func ParseRange(s string, now time.Time) (string, time.Time) {
	switch s {
	case Range7d:
		return Range7d, now.AddDate(0, 0, -7)
	case Range90d:
		return Range90d, now.AddDate(0, 0, -90)
	case Range1y:
		return Range1y, now.AddDate(-1, 0, 0)
	default:
		return Range30d, now.AddDate(0, 0, -30)
	}
}

// ParsePeriod returns the normalized period and its $dateToString format. Anything
// other than monthly means daily.
func ParsePeriod(s string) (string, string) {
	if s == PeriodMonthly {
		return PeriodMonthly, "%Y-%m"
	}
	return PeriodDaily, "%Y-%m-%d"
}

// PeriodWindowStart is the default look-back for a developer's own time series:
// 30 days for daily buckets, 12 months for monthly ones.
func PeriodWindowStart(period string, now time.Time) time.Time {
	if period == PeriodMonthly {
		return now.AddDate(-1, 0, 0)
	}
	return now.AddDate(0, 0, -30)
}

// CreatedSince filters documents created at or after start
func CreatedSince(start time.Time) bson.M {
	return bson.M{"createdAt": bson.M{"$gte": start}}
}

// StatusBreakdownPipeline counts documents per status
func StatusBreakdownPipeline(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

// SumPipeline totals amount over match into a single {_id:null,total,count} row
func SumPipeline(match bson.M) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
}

// RevenuePipeline buckets paid earnings created since start by format, ascending
func RevenuePipeline(start time.Time, format string) mongo.Pipeline {
	match := CreatedSince(start)
	match["status"] = models.EarningPaid
	return BucketPipeline(match, format)
}

// BucketPipeline groups amount by $dateToString(createdAt, format) with sum, count
// and average
func BucketPipeline(match bson.M, format string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: format},
				{Key: "date", Value: "$createdAt"},
			}}}},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$amount"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

// TopDevelopersPipeline ranks developers by earned amount since start and joins their
// name and email
func TopDevelopersPipeline(start time.Time) mongo.Pipeline {
	match := CreatedSince(start)
	match["status"] = bson.M{"$in": []string{models.EarningAvailable, models.EarningPaid}}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$developerId"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "projectIds", Value: bson.D{{Key: "$addToSet", Value: "$projectId"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "total", Value: -1}}}},
		{{Key: "$limit", Value: TopDevelopersLimit}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "developers"},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "developer"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$developer"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 1},
			{Key: "total", Value: 1},
			{Key: "projects", Value: bson.D{{Key: "$size", Value: "$projectIds"}}},
			{Key: "name", Value: "$developer.name"},
			{Key: "email", Value: "$developer.email"},
		}}},
	}
}

// DeveloperSummaryPipeline sums a developer's earnings per status
func DeveloperSummaryPipeline(developerID primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"developerId": developerID}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$amount"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
}

// DeveloperSeriesPipeline buckets one developer's earnings for the chosen period
func DeveloperSeriesPipeline(developerID primitive.ObjectID, period string, now time.Time) mongo.Pipeline {
	period, format := ParsePeriod(period)
	match := CreatedSince(PeriodWindowStart(period, now))
	match["developerId"] = developerID
	return BucketPipeline(match, format)
}
