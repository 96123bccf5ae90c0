package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/webnest/webnest-api/api/handlers"
	"github.com/webnest/webnest-api/models"
	"github.com/webnest/webnest-api/uploads"
)

func developerCaller() *models.Principal {
	return &models.Principal{Kind: models.KindDeveloper, ID: primitive.NewObjectID(), Email: "linus@example.com"}
}

func TestDeveloper_CreateWithdrawalHandler(t *testing.T) {
	cases := []struct {
		name      string
		available float64
		withdrawn float64
		amount    float64
		status    int
		message   string
	}{
		{name: "within balance", available: 500, withdrawn: 200, amount: 300, status: http.StatusCreated},
		{name: "over balance", available: 500, withdrawn: 200, amount: 300.01, status: http.StatusBadRequest, message: "Insufficient funds"},
		{name: "no earnings", amount: 1, status: http.StatusBadRequest, message: "Insufficient funds"},
		{name: "zero amount", available: 500, amount: 0, status: http.StatusBadRequest},
		{name: "negative amount", available: 500, amount: -5, status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wdb := &fakeWithdrawalDB{withdrawn: tc.withdrawn}
			d := handlers.Developer{EDB: &fakeEarningDB{available: tc.available}, WDB: wdb}
			caller := developerCaller()

			rr := serve(d.CreateWithdrawalHandler, newRequest(t, "POST", "/api/developer/withdrawals",
				map[string]float64{"amount": tc.amount}, nil, caller))

			require.Equal(t, tc.status, rr.Code, rr.Body.String())
			if tc.message != "" {
				assert.Equal(t, tc.message, decodeEnvelope(t, rr).Message)
			}
			if tc.status != http.StatusCreated {
				assert.Empty(t, wdb.inserted)
				return
			}
			require.Len(t, wdb.inserted, 1)
			assert.Equal(t, models.WithdrawalRequested, wdb.inserted[0].Status)
			assert.Equal(t, caller.ID, wdb.inserted[0].DeveloperID)

			var out models.Withdrawal
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &out))
			assert.False(t, out.ID.IsZero())
		})
	}
}

func TestDeveloper_RejectAssignmentHandler(t *testing.T) {
	caller := developerCaller()
	assignment := &models.Assignment{
		ID:          primitive.NewObjectID(),
		ProjectID:   primitive.NewObjectID(),
		DeveloperID: caller.ID,
		AssignedBy:  primitive.NewObjectID(),
		Status:      models.AssignmentAssigned,
	}
	asdb := &fakeAssignmentDB{assignment: assignment, matched: 1}
	pdb := &fakeProjectDB{matched: 1}
	tx := &fakeTx{}
	notifier := &fakeNotifier{}
	d := handlers.Developer{AsDB: asdb, PDB: pdb, Tx: tx, Notifier: notifier}

	rr := serve(d.RejectAssignmentHandler, newRequest(t, "PUT", "/", nil,
		map[string]string{"id": assignment.ID.Hex()}, caller))

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, tx.committed)
	assert.Equal(t, models.AssignmentRejected, asdb.updates[0]["$set"].(bson.M)["status"])
	require.Len(t, pdb.updates, 1)
	assert.Equal(t, models.ProjectPending, pdb.updates[0]["$set"].(bson.M)["status"])
	assert.Contains(t, pdb.updates[0]["$unset"].(bson.M), "developerId")
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, assignment.AssignedBy, notifier.sent[0].RecipientID)
	assert.Equal(t, models.KindAdmin, notifier.sent[0].RecipientType)
}

func TestDeveloper_AcceptAssignmentHandler(t *testing.T) {
	caller := developerCaller()
	assignment := &models.Assignment{ID: primitive.NewObjectID(), ProjectID: primitive.NewObjectID(), DeveloperID: caller.ID, Status: models.AssignmentAssigned}

	t.Run("accepts", func(t *testing.T) {
		pdb := &fakeProjectDB{matched: 1}
		d := handlers.Developer{AsDB: &fakeAssignmentDB{assignment: assignment, matched: 1}, PDB: pdb, Tx: &fakeTx{}, Notifier: &fakeNotifier{}}
		rr := serve(d.AcceptAssignmentHandler, newRequest(t, "PUT", "/", nil, map[string]string{"id": assignment.ID.Hex()}, caller))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, models.ProjectAccepted, pdb.updates[0]["$set"].(bson.M)["status"])
	})

	t.Run("project moved underneath", func(t *testing.T) {
		tx := &fakeTx{}
		d := handlers.Developer{AsDB: &fakeAssignmentDB{assignment: assignment, matched: 1}, PDB: &fakeProjectDB{}, Tx: tx, Notifier: &fakeNotifier{}}
		rr := serve(d.AcceptAssignmentHandler, newRequest(t, "PUT", "/", nil, map[string]string{"id": assignment.ID.Hex()}, caller))
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.False(t, tx.committed)
	})

	t.Run("already answered", func(t *testing.T) {
		answered := *assignment
		answered.Status = models.AssignmentAccepted
		tx := &fakeTx{}
		d := handlers.Developer{AsDB: &fakeAssignmentDB{assignment: &answered}, Tx: tx}
		rr := serve(d.AcceptAssignmentHandler, newRequest(t, "PUT", "/", nil, map[string]string{"id": assignment.ID.Hex()}, caller))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, tx.calls)
	})
}

func TestDeveloper_UploadSignatureHandlerNotConfigured(t *testing.T) {
	caller := developerCaller()
	project := &models.Project{ID: primitive.NewObjectID(), DeveloperID: &caller.ID}
	d := handlers.Developer{PDB: &fakeProjectDB{project: project}, Uploads: uploads.NewSigner("", "", "")}

	rr := serve(d.UploadSignatureHandler, newRequest(t, "POST", "/",
		map[string]string{"projectId": project.ID.Hex()}, nil, caller))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestDeveloper_UploadSignatureHandler(t *testing.T) {
	caller := developerCaller()
	project := &models.Project{ID: primitive.NewObjectID(), DeveloperID: &caller.ID}
	d := handlers.Developer{PDB: &fakeProjectDB{project: project}, Uploads: uploads.NewSigner("demo", "key", "secret")}

	rr := serve(d.UploadSignatureHandler, newRequest(t, "POST", "/",
		map[string]string{"projectId": project.ID.Hex()}, nil, caller))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var signed uploads.SignedUpload
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr).Data, &signed))
	assert.Equal(t, uploads.DeliverableFolder(project.ID.Hex()), signed.Folder)
	assert.NotEmpty(t, signed.Signature)
}

func TestDeveloperAdmin_DeleteDeveloperHandlerRefusesActiveAssignments(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	d := handlers.DeveloperAdmin{AsDB: &fakeAssignmentDB{active: 2}}
	rr := serve(d.DeleteDeveloperHandler, newRequest(t, "DELETE", "/", nil, map[string]string{"id": id}, nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Cannot delete developer with active assignments", decodeEnvelope(t, rr).Message)
}
