package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchasegate/internal/entitlement/service"
	"purchasegate/internal/entitlement/store"
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

func TestHandleLibrary(t *testing.T) {
	svc := service.New(store.NewInMemory(), service.WithLogger(logger.Discard()))
	family := testutil.TestIDs.FamilyID1
	child := testutil.TestIDs.ChildID1
	parent := testutil.TestIDs.ParentID1

	ctx := requestcontext.WithTime(context.Background(), testutil.FixedNow)
	_, err := svc.Grant(ctx, family, &child, testutil.TestIDs.PackID1, domain.NewPurchaseID())
	require.NoError(t, err)
	refunded := domain.NewPurchaseID()
	_, err = svc.Grant(ctx, family, nil, testutil.TestIDs.PackID2, refunded)
	require.NoError(t, err)
	_, err = svc.Refund(ctx, refunded)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, stubAuthz{allowed: parent}, logger.Discard()).Register(r)

	serve := func(path string, parentID domain.ParentID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rctx := requestcontext.WithFamilyID(requestcontext.WithParentID(req.Context(), parentID), family)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req.WithContext(rctx))
		return w
	}

	t.Run("lists own and family-wide packs", func(t *testing.T) {
		w := serve("/children/"+child.String()+"/library", parent)
		require.Equal(t, http.StatusOK, w.Code)
		var resp LibraryResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Items, 2)
	})

	t.Run("active filter hides refunds", func(t *testing.T) {
		w := serve("/children/"+child.String()+"/library?status=active", parent)
		require.Equal(t, http.StatusOK, w.Code)
		var resp LibraryResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		require.Len(t, resp.Items, 1)
		assert.False(t, resp.Items[0].FamilyWide)
	})

	t.Run("bad child id", func(t *testing.T) {
		w := serve("/children/nope/library", parent)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stats count own, shared and refunded packs", func(t *testing.T) {
		w := serve("/children/"+child.String()+"/library/stats", parent)
		require.Equal(t, http.StatusOK, w.Code)
		var resp LibraryStatsResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, 2, resp.TotalItems)
		assert.Equal(t, 1, resp.Active)
		assert.Equal(t, 1, resp.Refunded)
		assert.Zero(t, resp.FamilyWide, "the family-wide pack was refunded")
		assert.Len(t, resp.RecentActivities, 3)
	})

	t.Run("stats of another family's child", func(t *testing.T) {
		w := serve("/children/"+child.String()+"/library/stats", testutil.TestIDs.ParentID2)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("other parent", func(t *testing.T) {
		w := serve("/children/"+child.String()+"/library", testutil.TestIDs.ParentID2)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
