package handlers

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/api/analytics"
	"github.com/webnest/webnest-api/config"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/models"
)

// Analytics serves the admin reporting endpoints
type Analytics struct {
	UDB   databases.UserDatabase
	DevDB databases.DeveloperDatabase
	PDB   databases.ProjectDatabase
	EDB   databases.EarningDatabase
	Now   func() time.Time
}

type sumRow struct {
	Total float64 `bson:"total"`
	Count int64   `bson:"count"`
}

func (a Analytics) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// OverviewHandler reports new signups, project status counts and revenue in the window
func (a Analytics) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	rng, start := analytics.ParseRange(r.URL.Query().Get("range"), a.now())
	since := analytics.CreatedSince(start)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	newUsers, err := a.UDB.CountDocuments(ctx, since)
	if err != nil {
		config.ErrorStatus("failed to count users", http.StatusInternalServerError, w, err)
		return
	}
	newDevelopers, err := a.DevDB.CountDocuments(ctx, since)
	if err != nil {
		config.ErrorStatus("failed to count developers", http.StatusInternalServerError, w, err)
		return
	}
	newProjects, err := a.PDB.CountDocuments(ctx, since)
	if err != nil {
		config.ErrorStatus("failed to count projects", http.StatusInternalServerError, w, err)
		return
	}
	statuses := []models.StatusCount{}
	if err := a.PDB.Aggregate(ctx, analytics.StatusBreakdownPipeline(bson.M{}), &statuses); err != nil {
		config.ErrorStatus("failed to aggregate project statuses", http.StatusInternalServerError, w, err)
		return
	}
	revenueMatch := analytics.CreatedSince(start)
	revenueMatch["status"] = models.EarningPaid
	var sums []sumRow
	if err := a.EDB.Aggregate(ctx, analytics.SumPipeline(revenueMatch), &sums); err != nil {
		config.ErrorStatus("failed to aggregate revenue", http.StatusInternalServerError, w, err)
		return
	}
	revenue := 0.0
	if len(sums) > 0 {
		revenue = sums[0].Total
	}

	config.WriteJSON(w, http.StatusOK, models.Response{Data: map[string]interface{}{
		"range":            rng,
		"since":            start,
		"newUsers":         newUsers,
		"newDevelopers":    newDevelopers,
		"newProjects":      newProjects,
		"projectsByStatus": statuses,
		"revenue":          revenue,
	}})
}

// RevenueHandler buckets paid earnings by day or month over the window
func (a Analytics) RevenueHandler(w http.ResponseWriter, r *http.Request) {
	rng, start := analytics.ParseRange(r.URL.Query().Get("range"), a.now())
	period, format := analytics.ParsePeriod(r.URL.Query().Get("period"))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	buckets := []models.EarningsBucket{}
	if err := a.EDB.Aggregate(ctx, analytics.RevenuePipeline(start, format), &buckets); err != nil {
		config.ErrorStatus("failed to aggregate revenue", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: map[string]interface{}{
		"range":   rng,
		"period":  period,
		"buckets": buckets,
	}})
}

// TopDevelopersHandler ranks developers by earnings over the window
func (a Analytics) TopDevelopersHandler(w http.ResponseWriter, r *http.Request) {
	rng, start := analytics.ParseRange(r.URL.Query().Get("range"), a.now())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	top := []models.TopDeveloper{}
	if err := a.EDB.Aggregate(ctx, analytics.TopDevelopersPipeline(start), &top); err != nil {
		config.ErrorStatus("failed to aggregate top developers", http.StatusInternalServerError, w, err)
		return
	}
	config.WriteJSON(w, http.StatusOK, models.Response{Data: map[string]interface{}{
		"range":      rng,
		"developers": top,
	}})
}
