package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"purchasegate/internal/entitlement/models"
	"purchasegate/pkg/domain"
	"purchasegate/pkg/platform/httputil"
	"purchasegate/pkg/requestcontext"
)

type Service interface {
	Library(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID) ([]*models.Record, error)
	LibraryStats(ctx context.Context, familyID domain.FamilyID, childID domain.ChildID) (*models.LibraryStats, error)
}

// Authorizer checks that the caller is a parent of the child.
type Authorizer interface {
	Authorize(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) error
}

type Handler struct {
	logger       *slog.Logger
	entitlements Service
	authz        Authorizer
}

func New(entitlements Service, authz Authorizer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, entitlements: entitlements, authz: authz}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/children/{childID}/library", h.HandleLibrary)
	r.Get("/children/{childID}/library/stats", h.HandleLibraryStats)
}

type LibraryItem struct {
	EntitlementID string     `json:"entitlement_id"`
	PackID        string     `json:"pack_id"`
	PurchaseID    string     `json:"purchase_id"`
	FamilyWide    bool       `json:"family_wide"`
	Status        string     `json:"status"`
	PurchasedAt   time.Time  `json:"purchased_at"`
	RefundedAt    *time.Time `json:"refunded_at,omitempty"`
}

type LibraryResponse struct {
	ChildID string        `json:"child_id"`
	Items   []LibraryItem `json:"items"`
}

// HandleLibrary lists the child's packs. ?status=active hides refunds.
func (h *Handler) HandleLibrary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	childID, err := domain.ParseChildID(chi.URLParam(r, "childID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.authz.Authorize(ctx, requestcontext.ParentID(ctx), childID); err != nil {
		h.logger.WarnContext(ctx, "library access denied", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	recs, err := h.entitlements.Library(ctx, requestcontext.FamilyID(ctx), childID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list library", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	activeOnly := r.URL.Query().Get("status") == string(models.StatusActive)
	resp := LibraryResponse{ChildID: childID.String(), Items: make([]LibraryItem, 0, len(recs))}
	for _, rec := range recs {
		if activeOnly && !rec.IsActive() {
			continue
		}
		resp.Items = append(resp.Items, LibraryItem{
			EntitlementID: rec.ID.String(),
			PackID:        rec.PackID.String(),
			PurchaseID:    rec.PurchaseID.String(),
			FamilyWide:    rec.IsFamilyWide(),
			Status:        string(rec.Status),
			PurchasedAt:   rec.PurchasedAt,
			RefundedAt:    rec.RefundedAt,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type ActivityItem struct {
	PackID     string    `json:"pack_id"`
	PurchaseID string    `json:"purchase_id"`
	Activity   string    `json:"activity"`
	At         time.Time `json:"at"`
}

type LibraryStatsResponse struct {
	ChildID          string         `json:"child_id"`
	TotalItems       int            `json:"total_items"`
	Active           int            `json:"active"`
	Refunded         int            `json:"refunded"`
	FamilyWide       int            `json:"family_wide"`
	RecentActivities []ActivityItem `json:"recent_activities"`
}

func (h *Handler) HandleLibraryStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	childID, err := domain.ParseChildID(chi.URLParam(r, "childID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.authz.Authorize(ctx, requestcontext.ParentID(ctx), childID); err != nil {
		h.logger.WarnContext(ctx, "library stats access denied", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	stats, err := h.entitlements.LibraryStats(ctx, requestcontext.FamilyID(ctx), childID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to summarize library", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	resp := LibraryStatsResponse{
		ChildID:          childID.String(),
		TotalItems:       stats.TotalItems,
		Active:           stats.Active,
		Refunded:         stats.Refunded,
		FamilyWide:       stats.FamilyWide,
		RecentActivities: make([]ActivityItem, 0, len(stats.Recent)),
	}
	for _, a := range stats.Recent {
		resp.RecentActivities = append(resp.RecentActivities, ActivityItem{
			PackID:     a.PackID.String(),
			PurchaseID: a.PurchaseID.String(),
			Activity:   a.Kind,
			At:         a.At,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
