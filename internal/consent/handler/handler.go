package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"purchasegate/internal/consent/models"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/platform/httputil"
	"purchasegate/pkg/requestcontext"
)

// Service defines the interface for consent operations.
type Service interface {
	Get(ctx context.Context, childID domain.ChildID) (*models.Record, error)
	Authorize(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) error
	Update(ctx context.Context, childID domain.ChildID, parentID domain.ParentID, changes models.Changes) (*models.Record, error)
	Withdraw(ctx context.Context, childID domain.ChildID, parentID domain.ParentID) (*models.Record, error)
	History(ctx context.Context, childID domain.ChildID, parentID domain.ParentID) ([]*models.Record, error)
	Status(ctx context.Context, childID domain.ChildID) (*models.Status, error)
}

// Handler handles consent endpoints. All routes require an authenticated
// parent of the child in the path.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		consent: consent,
	}
}

// Register registers the consent routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/children/{childID}/consent", h.HandleGet)
	r.Put("/children/{childID}/consent", h.HandleUpdate)
	r.Delete("/children/{childID}/consent", h.HandleWithdraw)
	r.Get("/children/{childID}/consent/history", h.HandleHistory)
	r.Get("/children/{childID}/consent/status", h.HandleStatus)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, childID, ok := h.identify(w, r)
	if !ok {
		return
	}
	if err := h.consent.Authorize(ctx, parentID, childID); err != nil {
		h.fail(ctx, w, "consent read denied", err)
		return
	}
	record, err := h.consent.Get(ctx, childID)
	if err != nil {
		h.fail(ctx, w, "failed to get consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(record))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, childID, ok := h.identify(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateConsentRequest](w, r, h.logger)
	if !ok {
		return
	}
	record, err := h.consent.Update(ctx, childID, parentID, req.toChanges())
	if err != nil {
		h.fail(ctx, w, "failed to update consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(record))
}

func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, childID, ok := h.identify(w, r)
	if !ok {
		return
	}
	record, err := h.consent.Withdraw(ctx, childID, parentID)
	if err != nil {
		h.fail(ctx, w, "failed to withdraw consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(record))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, childID, ok := h.identify(w, r)
	if !ok {
		return
	}
	records, err := h.consent.History(ctx, childID, parentID)
	if err != nil {
		h.fail(ctx, w, "failed to list consent history", err)
		return
	}
	resp := HistoryResponse{Records: make([]ConsentResponse, 0, len(records))}
	for _, rec := range records {
		resp.Records = append(resp.Records, toConsentResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	parentID, childID, ok := h.identify(w, r)
	if !ok {
		return
	}
	if err := h.consent.Authorize(ctx, parentID, childID); err != nil {
		h.fail(ctx, w, "consent status denied", err)
		return
	}
	status, err := h.consent.Status(ctx, childID)
	if err != nil {
		h.fail(ctx, w, "failed to get consent status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(status))
}

// identify pulls the authenticated parent and the path child. It writes the
// error response itself.
func (h *Handler) identify(w http.ResponseWriter, r *http.Request) (domain.ParentID, domain.ChildID, bool) {
	ctx := r.Context()
	parentID := requestcontext.ParentID(ctx)
	if parentID.IsNil() {
		h.logger.ErrorContext(ctx, "parent missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.ParentID{}, domain.ChildID{}, false
	}
	childID, err := domain.ParseChildID(chi.URLParam(r, "childID"))
	if err != nil {
		httputil.WriteError(w, err)
		return domain.ParentID{}, domain.ChildID{}, false
	}
	return parentID, childID, true
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
