package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"purchasegate/internal/approval/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/platform/httputil"
	"purchasegate/pkg/requestcontext"
)

// Service defines the read side of the approval service. Resolution goes
// through the purchase orchestrator so the attempt advances with the token.
type Service interface {
	Pending(ctx context.Context, parentID domain.ParentID) ([]*models.Request, error)
	Get(ctx context.Context, token domain.ApprovalToken) (*models.Request, error)
}

// Handler serves the parent's approval inbox.
type Handler struct {
	logger    *slog.Logger
	approvals Service
}

func New(approvals Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, approvals: approvals}
}

// Register registers the approval routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/approvals", h.HandleInbox)
	r.Get("/approvals/{token}", h.HandleGet)
}

func (h *Handler) HandleInbox(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID := requestcontext.ParentID(ctx)
	pending, err := h.approvals.Pending(ctx, parentID)
	if err != nil {
		h.fail(ctx, w, "failed to list approvals", err)
		return
	}
	resp := InboxResponse{Approvals: make([]ApprovalResponse, 0, len(pending))}
	for _, req := range pending {
		resp.Approvals = append(resp.Approvals, toApprovalResponse(req))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, err := domain.ParseApprovalToken(chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := h.approvals.Get(ctx, token)
	if err != nil {
		h.fail(ctx, w, "failed to get approval", err)
		return
	}
	// Another parent's token reads as unknown rather than forbidden.
	if req.ParentID != requestcontext.ParentID(ctx) {
		httputil.WriteError(w, dErrors.ErrTokenNotFound)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toApprovalResponse(req))
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
