package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/webnest/webnest-api/models"
)

var now = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func TestParseRange(t *testing.T) {
	tests := []struct {
		in    string
		key   string
		start time.Time
	}{
		{"7d", Range7d, now.AddDate(0, 0, -7)},
		{"30d", Range30d, now.AddDate(0, 0, -30)},
		{"90d", Range90d, now.AddDate(0, 0, -90)},
		{"1y", Range1y, time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)},
		{"", Range30d, now.AddDate(0, 0, -30)},
		{"2w", Range30d, now.AddDate(0, 0, -30)},
	}
	for _, tt := range tests {
		key, start := ParseRange(tt.in, now)
		assert.Equal(t, tt.key, key, tt.in)
		assert.Equal(t, tt.start, start, tt.in)
	}
}

func TestParsePeriod(t *testing.T) {
	p, f := ParsePeriod("monthly")
	assert.Equal(t, PeriodMonthly, p)
	assert.Equal(t, "%Y-%m", f)

	for _, in := range []string{"daily", "", "weekly"} {
		p, f = ParsePeriod(in)
		assert.Equal(t, PeriodDaily, p)
		assert.Equal(t, "%Y-%m-%d", f)
	}
}

func TestPeriodWindowStart(t *testing.T) {
	assert.Equal(t, now.AddDate(0, 0, -30), PeriodWindowStart(PeriodDaily, now))
	assert.Equal(t, now.AddDate(-1, 0, 0), PeriodWindowStart(PeriodMonthly, now))
}

func TestRevenuePipeline(t *testing.T) {
	start := now.AddDate(0, 0, -7)
	p := RevenuePipeline(start, "%Y-%m")
	require.Len(t, p, 3)

	match := p[0][0].Value.(bson.M)
	assert.Equal(t, models.EarningPaid, match["status"])
	assert.Equal(t, bson.M{"$gte": start}, match["createdAt"])

	group := p[1][0].Value.(bson.D)
	dateToString := group[0].Value.(bson.D)[0].Value.(bson.D)
	assert.Equal(t, "%Y-%m", dateToString[0].Value)
	assert.Equal(t, "$sort", p[2][0].Key)
}

func TestTopDevelopersPipeline(t *testing.T) {
	p := TopDevelopersPipeline(now.AddDate(0, 0, -30))

	keys := make([]string, len(p))
	for i, stage := range p {
		keys[i] = stage[0].Key
	}
	assert.Equal(t, []string{"$match", "$group", "$sort", "$limit", "$lookup", "$unwind", "$project"}, keys)
	assert.Equal(t, TopDevelopersLimit, p[3][0].Value)
	assert.Equal(t, bson.D{{Key: "total", Value: -1}}, p[2][0].Value)
}

func TestDeveloperSeriesPipeline(t *testing.T) {
	dev := primitive.NewObjectID()
	p := DeveloperSeriesPipeline(dev, "monthly", now)
	match := p[0][0].Value.(bson.M)
	assert.Equal(t, dev, match["developerId"])
	assert.Equal(t, bson.M{"$gte": now.AddDate(-1, 0, 0)}, match["createdAt"])
}

func TestStatusBreakdownPipeline(t *testing.T) {
	p := StatusBreakdownPipeline(bson.M{})
	group := p[1][0].Value.(bson.D)
	assert.Equal(t, "$status", group[0].Value)
}
