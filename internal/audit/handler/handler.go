// Package handler exposes a child's audit trail to its parents: consent
// changes, purchase decisions and refunds, in the order they happened.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"purchasegate/internal/audit"
	"purchasegate/pkg/domain"
	dErrors "purchasegate/pkg/domain-errors"
	"purchasegate/pkg/platform/httputil"
	"purchasegate/pkg/requestcontext"
)

const defaultLimit = 50

type Trail interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// Authorizer checks that the caller is a parent of the child.
type Authorizer interface {
	Authorize(ctx context.Context, parentID domain.ParentID, childID domain.ChildID) error
}

type Handler struct {
	logger *slog.Logger
	trail  Trail
	authz  Authorizer
}

func New(trail Trail, authz Authorizer, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, trail: trail, authz: authz}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/children/{childID}/audit", h.HandleList)
}

type ChangeResponse struct {
	Field   string `json:"field"`
	Prior   string `json:"prior"`
	Current string `json:"current"`
}

type EventResponse struct {
	ID        int64            `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Action    string           `json:"action"`
	ActorID   string           `json:"actor_id,omitempty"`
	Decision  string           `json:"decision,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
	Changes   []ChangeResponse `json:"changes,omitempty"`
}

type ListResponse struct {
	ChildID string          `json:"child_id"`
	Events  []EventResponse `json:"events"`
}

// HandleList returns the child's trail. Query: action (comma separated),
// since (RFC 3339), limit (1..200, default 50).
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	parentID := requestcontext.ParentID(ctx)

	childID, err := domain.ParseChildID(chi.URLParam(r, "childID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := parseFilter(r, childID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.authz.Authorize(ctx, parentID, childID); err != nil {
		h.logger.WarnContext(ctx, "audit trail denied", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	events, err := h.trail.List(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list audit trail", "request_id", requestID, "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit trail"))
		return
	}

	resp := ListResponse{ChildID: childID.String(), Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func parseFilter(r *http.Request, childID domain.ChildID) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{SubjectID: childID.String(), Limit: defaultLimit}

	if raw := q.Get("action"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				filter.Actions = append(filter.Actions, a)
			}
		}
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "since must be an RFC 3339 timestamp")
		}
		filter.Since = since
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > audit.MaxListLimit {
			return filter, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and "+strconv.Itoa(audit.MaxListLimit))
		}
		filter.Limit = n
	}
	return filter, nil
}

func toEventResponse(e audit.Event) EventResponse {
	resp := EventResponse{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Action:    e.Action,
		ActorID:   e.ActorID,
		Decision:  e.Decision,
		Reason:    e.Reason,
		RequestID: e.RequestID,
	}
	for _, c := range e.Changes {
		resp.Changes = append(resp.Changes, ChangeResponse(c))
	}
	return resp
}
