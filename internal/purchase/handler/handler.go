package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	approvalmodels "purchasegate/internal/approval/models"
	"purchasegate/internal/purchase/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/platform/httputil"
	"purchasegate/pkg/requestcontext"
)

// Service is the purchase orchestrator as seen by HTTP.
type Service interface {
	Initiate(ctx context.Context, req models.Request) (*models.Attempt, error)
	Get(ctx context.Context, purchaseID domain.PurchaseID) (*models.Attempt, error)
	Authorize(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) error
	Complete(ctx context.Context, purchaseID domain.PurchaseID) (*models.Attempt, error)
	Refund(ctx context.Context, purchaseID domain.PurchaseID, parentID domain.ParentID) (*models.Attempt, error)
	ResolveApproval(ctx context.Context, token domain.ApprovalToken, parentID domain.ParentID, decision approvalmodels.Decision) (*models.Attempt, error)
	History(ctx context.Context, childID domain.ChildID, limit int) ([]*models.Attempt, error)
}

// LinkVerifier opens a signed approval deep link.
type LinkVerifier interface {
	Verify(signed string, now time.Time) (domain.ApprovalToken, domain.ParentID, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type Handler struct {
	logger    *slog.Logger
	purchases Service
	links     LinkVerifier
}

func New(purchases Service, links LinkVerifier, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, purchases: purchases, links: links}
}

// Register registers the routes that need a parent session.
func (h *Handler) Register(r chi.Router) {
	r.Post("/purchases", h.HandleInitiate)
	r.Get("/purchases/{purchaseID}", h.HandleGet)
	r.Post("/purchases/{purchaseID}/complete", h.HandleComplete)
	r.Post("/purchases/{purchaseID}/refund", h.HandleRefund)
	r.Get("/children/{childID}/purchases", h.HandleHistory)
	r.Post("/approvals/{token}/resolve", h.HandleResolve)
}

// RegisterPublic registers the deep link route, which authenticates with
// the signed link instead of a session.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/approvals/link", h.HandleResolveLink)
}

func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, ok := h.parent(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[InitiateRequest](w, r, h.logger)
	if !ok {
		return
	}
	purchaseReq, err := req.toModel(parentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.purchases.Initiate(ctx, purchaseReq)
	if err != nil {
		h.fail(ctx, w, "purchase not initiated", err)
		return
	}
	status := http.StatusAccepted
	if a.State == models.StateEntitlementGranted {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toPurchaseResponse(a))
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	a, ok := h.owned(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPurchaseResponse(a))
}

func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, ok := h.owned(w, r)
	if !ok {
		return
	}
	completed, err := h.purchases.Complete(ctx, a.ID)
	if err != nil {
		h.fail(ctx, w, "purchase not completed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPurchaseResponse(completed))
}

func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, ok := h.parent(w, r)
	if !ok {
		return
	}
	purchaseID, err := domain.ParsePurchaseID(chi.URLParam(r, "purchaseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	refunded, err := h.purchases.Refund(ctx, purchaseID, parentID)
	if err != nil {
		h.fail(ctx, w, "purchase not refunded", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPurchaseResponse(refunded))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, ok := h.parent(w, r)
	if !ok {
		return
	}
	childID, err := domain.ParseChildID(chi.URLParam(r, "childID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.purchases.Authorize(ctx, parentID, childID); err != nil {
		h.fail(ctx, w, "purchase history denied", err)
		return
	}
	attempts, err := h.purchases.History(ctx, childID, limit)
	if err != nil {
		h.fail(ctx, w, "failed to list purchases", err)
		return
	}
	resp := HistoryResponse{ChildID: childID.String(), Purchases: make([]PurchaseResponse, 0, len(attempts))}
	for _, a := range attempts {
		resp.Purchases = append(resp.Purchases, toPurchaseResponse(a))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	parentID, ok := h.parent(w, r)
	if !ok {
		return
	}
	token, err := domain.ParseApprovalToken(chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger)
	if !ok {
		return
	}
	h.resolve(w, r, token, parentID, req.Decision)
}

// HandleResolveLink resolves the approval carried by a signed deep link. The
// link's subject stands in for the session parent.
func (h *Handler) HandleResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ResolveLinkRequest](w, r, h.logger)
	if !ok {
		return
	}
	token, parentID, err := h.links.Verify(req.Link, requestcontext.Now(ctx))
	if err != nil {
		h.fail(ctx, w, "approval link rejected", err)
		return
	}
	h.resolve(w, r, token, parentID, req.Decision)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, token domain.ApprovalToken, parentID domain.ParentID, raw string) {
	ctx := r.Context()
	decision, err := approvalmodels.ParseDecision(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.purchases.ResolveApproval(ctx, token, parentID, decision)
	if err != nil {
		h.fail(ctx, w, "approval not resolved", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPurchaseResponse(a))
}

// owned loads the path purchase and checks the session parent may see it.
// Another family's purchase reads as not found.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request) (*models.Attempt, bool) {
	ctx := r.Context()
	parentID, ok := h.parent(w, r)
	if !ok {
		return nil, false
	}
	purchaseID, err := domain.ParsePurchaseID(chi.URLParam(r, "purchaseID"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	a, err := h.purchases.Get(ctx, purchaseID)
	if err != nil {
		h.fail(ctx, w, "failed to get purchase", err)
		return nil, false
	}
	if err := h.purchases.Authorize(ctx, parentID, a.ChildID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeForbidden) {
			err = dErrors.New(dErrors.CodeNotFound, "purchase not found")
		}
		h.fail(ctx, w, "purchase access denied", err)
		return nil, false
	}
	return a, true
}

func (h *Handler) parent(w http.ResponseWriter, r *http.Request) (domain.ParentID, bool) {
	ctx := r.Context()
	parentID := requestcontext.ParentID(ctx)
	if parentID.IsNil() {
		h.logger.ErrorContext(ctx, "parent missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.ParentID{}, false
	}
	return parentID, true
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer")
	}
	return min(n, maxHistoryLimit), nil
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
