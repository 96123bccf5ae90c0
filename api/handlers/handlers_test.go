package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webnest/webnest-api/api"
	"github.com/webnest/webnest-api/databases"
	"github.com/webnest/webnest-api/email"
	"github.com/webnest/webnest-api/models"
	"github.com/webnest/webnest-api/payments"
)

type envelope struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Message    string             `json:"message"`
	Pagination *models.Pagination `json:"pagination"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return env
}

// newRequest builds a JSON request carrying route vars and, when p is non-nil, an
// authenticated principal.
func newRequest(t *testing.T, method, target string, body interface{}, vars map[string]string, p *models.Principal) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	if p != nil {
		req = req.WithContext(api.WithPrincipal(req.Context(), *p))
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type insertResult struct{ id primitive.ObjectID }

func (r insertResult) Decode() interface{} { return r.id }

// fakeTx runs fn inline and records whether it committed
type fakeTx struct {
	calls     int
	committed bool
}

func (f *fakeTx) UseTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	if err := fn(ctx); err != nil {
		return err
	}
	f.committed = true
	return nil
}

type fakeNotifier struct {
	sent []models.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, n models.Notification) (models.Notification, error) {
	n.ID = primitive.NewObjectID()
	f.sent = append(f.sent, n)
	return n, nil
}

type fakeMailer struct {
	sent []email.Message
}

func (f *fakeMailer) Send(_ context.Context, msg email.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

type fakeProjectDB struct {
	databases.ProjectDatabase
	project      *models.Project
	matched      int64
	updates      []bson.M
	updateFilter []bson.M
}

func (f *fakeProjectDB) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Project, error) {
	if f.project == nil {
		return nil, databases.ErrNotFound
	}
	cp := *f.project
	return &cp, nil
}

func (f *fakeProjectDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.updateFilter = append(f.updateFilter, filter.(bson.M))
	f.updates = append(f.updates, update.(bson.M))
	return &mongo.UpdateResult{MatchedCount: f.matched, ModifiedCount: f.matched}, nil
}

type fakeDeveloperDB struct {
	databases.DeveloperDatabase
	dev *models.Developer
}

func (f *fakeDeveloperDB) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Developer, error) {
	if f.dev == nil {
		return nil, databases.ErrNotFound
	}
	cp := *f.dev
	return &cp, nil
}

type fakeAssignmentDB struct {
	databases.AssignmentDatabase
	assignment *models.Assignment
	matched    int64
	inserted   []models.Assignment
	updates    []bson.M
	filters    []bson.M
	active     int64
}

func (f *fakeAssignmentDB) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Assignment, error) {
	if f.assignment == nil {
		return nil, databases.ErrNotFound
	}
	cp := *f.assignment
	return &cp, nil
}

func (f *fakeAssignmentDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.filters = append(f.filters, filter.(bson.M))
	f.updates = append(f.updates, update.(bson.M))
	return &mongo.UpdateResult{MatchedCount: f.matched, ModifiedCount: f.matched}, nil
}

func (f *fakeAssignmentDB) InsertOne(ctx context.Context, a models.Assignment, opts ...*options.InsertOneOptions) (databases.InsertOneResultHelper, error) {
	id := primitive.NewObjectID()
	a.ID = id
	f.inserted = append(f.inserted, a)
	return insertResult{id: id}, nil
}

func (f *fakeAssignmentDB) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return f.active, nil
}

// aggregateInto decodes rows into results the way a cursor would
func aggregateInto(rows []bson.M, results interface{}) error {
	raw, err := bson.Marshal(bson.M{"rows": rows})
	if err != nil {
		return err
	}
	var wrap struct {
		Rows bson.RawValue `bson:"rows"`
	}
	if err := bson.Unmarshal(raw, &wrap); err != nil {
		return err
	}
	return wrap.Rows.Unmarshal(results)
}

type fakeEarningDB struct {
	databases.EarningDatabase
	available float64
}

func (f *fakeEarningDB) Aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error {
	if f.available == 0 {
		return aggregateInto([]bson.M{}, results)
	}
	return aggregateInto([]bson.M{{"total": f.available, "count": int64(1)}}, results)
}

type fakeWithdrawalDB struct {
	databases.WithdrawalDatabase
	withdrawn float64
	inserted  []models.Withdrawal
}

func (f *fakeWithdrawalDB) Aggregate(ctx context.Context, pipeline mongo.Pipeline, results interface{}) error {
	if f.withdrawn == 0 {
		return aggregateInto([]bson.M{}, results)
	}
	return aggregateInto([]bson.M{{"total": f.withdrawn, "count": int64(1)}}, results)
}

func (f *fakeWithdrawalDB) InsertOne(ctx context.Context, w models.Withdrawal) (databases.InsertOneResultHelper, error) {
	id := primitive.NewObjectID()
	w.ID = id
	f.inserted = append(f.inserted, w)
	return insertResult{id: id}, nil
}

type fakeUserDB struct {
	databases.UserDatabase
	user *models.User
}

func (f *fakeUserDB) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error) {
	if f.user == nil {
		return nil, databases.ErrNotFound
	}
	cp := *f.user
	return &cp, nil
}

// fakeGateway returns a fixed webhook event
type fakeGateway struct {
	event *payments.WebhookEvent
	err   error
}

func (f *fakeGateway) CreateCheckout(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	return &payments.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.test/cs_test"}, nil
}

func (f *fakeGateway) ParseWebhook(payload []byte, signature string) (*payments.WebhookEvent, error) {
	return f.event, f.err
}
