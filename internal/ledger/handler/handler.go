package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"purchasegate/internal/ledger/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/platform/httputil"
	"purchasegate/pkg/requestcontext"
)

// Service is the read side of the ledger exposed to parents.
type Service interface {
	Statement(ctx context.Context, childID domain.ChildID, asOf time.Time) (*models.Statement, error)
}

// Authorizer checks that the caller is a parent of the child.
type Authorizer interface {
	Authorize(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) error
}

type Handler struct {
	logger *slog.Logger
	ledger Service
	authz  Authorizer
}

func New(ledger Service, authz Authorizer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, ledger: ledger, authz: authz}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/children/{childID}/spend", h.HandleStatement)
}

type EntryResponse struct {
	ID         string    `json:"id"`
	PackID     string    `json:"pack_id"`
	PurchaseID string    `json:"purchase_id"`
	Amount     int64     `json:"amount"`
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	Sequence   int64     `json:"sequence"`
}

type StatementResponse struct {
	ChildID     string          `json:"child_id"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Total       int64           `json:"total"`
	Entries     []EntryResponse `json:"entries"`
}

// HandleStatement returns the monthly statement for ?as_of= (RFC 3339,
// defaults to now).
func (h *Handler) HandleStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	parentID := requestcontext.ParentID(ctx)

	childID, err := domain.ParseChildID(chi.URLParam(r, "childID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	asOf := requestcontext.Now(ctx)
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "as_of must be an RFC 3339 timestamp"))
			return
		}
	}

	if err := h.authz.Authorize(ctx, parentID, childID); err != nil {
		h.logger.WarnContext(ctx, "spend statement denied", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	stmt, err := h.ledger.Statement(ctx, childID, asOf)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to build spend statement", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	resp := StatementResponse{
		ChildID:     childID.String(),
		PeriodStart: stmt.Period.Start,
		PeriodEnd:   stmt.Period.End,
		Total:       stmt.Total,
		Entries:     make([]EntryResponse, 0, len(stmt.Entries)),
	}
	for _, e := range stmt.Entries {
		resp.Entries = append(resp.Entries, EntryResponse{
			ID:         e.ID.String(),
			PackID:     e.PackID.String(),
			PurchaseID: e.PurchaseID.String(),
			Amount:     e.Amount,
			Kind:       string(e.Kind),
			Timestamp:  e.Timestamp,
			Sequence:   e.Sequence,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
