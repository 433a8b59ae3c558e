package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasegate/internal/audit"
	"purchasegate/internal/platform/logger"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/requestcontext"
	"purchasegate/pkg/testutil"
)

type stubAuthz struct {
	allowed domain.ParentID
}

func (a stubAuthz) Authorize(_ context.Context, parentID domain.ParentID, _ domain.ChildID) error {
	if parentID != a.allowed {
		return dErrors.New(dErrors.CodeForbidden, "not a parent of child")
	}
	return nil
}

type failingTrail struct{}

func (failingTrail) List(context.Context, audit.Filter) ([]audit.Event, error) {
	return nil, errors.New("db down")
}

func TestHandleList(t *testing.T) {
	child := testutil.TestIDs.ChildID1
	parent := testutil.TestIDs.ParentID1
	trail := audit.NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, trail.Append(ctx, audit.Event{
		Timestamp: testutil.FixedNow,
		ActorID:   parent.String(),
		SubjectID: child.String(),
		Action:    audit.ActionConsentUpdated,
		Decision:  "granted",
		Changes:   []audit.FieldChange{{Field: "purchases_allowed", Prior: "false", Current: "true"}},
	}))
	require.NoError(t, trail.Append(ctx, audit.Event{
		Timestamp: testutil.FixedNow.Add(time.Hour),
		SubjectID: child.String(),
		Action:    audit.ActionPurchaseRejected,
		Reason:    "spending_limit_exceeded",
	}))

	serveWith := func(tr Trail, path string, parentID domain.ParentID) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		New(tr, stubAuthz{allowed: parent}, logger.Discard()).Register(r)
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req.WithContext(requestcontext.WithParentID(req.Context(), parentID)))
		return w
	}
	serve := func(path string, parentID domain.ParentID) *httptest.ResponseRecorder {
		return serveWith(trail, path, parentID)
	}
	base := "/children/" + child.String() + "/audit"

	t.Run("full trail in order", func(t *testing.T) {
		w := serve(base, parent)
		require.Equal(t, http.StatusOK, w.Code)
		var resp ListResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Events, 2)
		assert.Equal(t, audit.ActionConsentUpdated, resp.Events[0].Action)
		assert.Equal(t, []ChangeResponse{{Field: "purchases_allowed", Prior: "false", Current: "true"}}, resp.Events[0].Changes)
		assert.Equal(t, "spending_limit_exceeded", resp.Events[1].Reason)
	})

	t.Run("filtered by action", func(t *testing.T) {
		w := serve(base+"?action=purchase_rejected,purchase_refunded", parent)
		require.Equal(t, http.StatusOK, w.Code)
		var resp ListResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Events, 1)
		assert.Equal(t, audit.ActionPurchaseRejected, resp.Events[0].Action)
	})

	t.Run("since after every event", func(t *testing.T) {
		since := testutil.FixedNow.Add(2 * time.Hour).Format(time.RFC3339)
		w := serve(base+"?since="+since, parent)
		require.Equal(t, http.StatusOK, w.Code)
		var resp ListResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Empty(t, resp.Events)
	})

	t.Run("bad query", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, serve(base+"?limit=0", parent).Code)
		assert.Equal(t, http.StatusBadRequest, serve(base+"?limit=500", parent).Code)
		assert.Equal(t, http.StatusBadRequest, serve(base+"?since=today", parent).Code)
		assert.Equal(t, http.StatusBadRequest, serve("/children/not-a-uuid/audit", parent).Code)
	})

	t.Run("other parent is forbidden", func(t *testing.T) {
		w := serve(base, testutil.TestIDs.ParentID2)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		w := serveWith(failingTrail{}, base, parent)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
