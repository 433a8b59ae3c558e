// Package requestcontext carries request-scoped values (request ID, time,
// caller identity, client metadata) through context.Context.
package requestcontext

import (
	"context"
	"time"

	"purchasegate/pkg/domain"
)

type (
	ctxKeyRequestID struct{}
	ctxKeyTime      struct{}
	ctxKeyParentID  struct{}
	ctxKeyFamilyID  struct{}
	ctxKeyClient    struct{}
)

// ClientMetadata describes the device a request came from.
type ClientMetadata struct {
	IP        string
	UserAgent string
	// Device is a display name such as "Safari on iOS".
	Device string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, requestID)
}

func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID{}).(string); ok {
		return v
	}
	return ""
}

// WithTime pins the request's notion of "now". Services read it through Now
// so every timestamp in one request agrees.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyTime{}, t)
}

// Now returns the request-scoped time, or time.Now() outside a request
// (workers, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ctxKeyTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithParentID(ctx context.Context, parentID domain.ParentID) context.Context {
	return context.WithValue(ctx, ctxKeyParentID{}, parentID)
}

func ParentID(ctx context.Context) domain.ParentID {
	if v, ok := ctx.Value(ctxKeyParentID{}).(domain.ParentID); ok {
		return v
	}
	return domain.ParentID{}
}

func WithFamilyID(ctx context.Context, familyID domain.FamilyID) context.Context {
	return context.WithValue(ctx, ctxKeyFamilyID{}, familyID)
}

func FamilyID(ctx context.Context) domain.FamilyID {
	if v, ok := ctx.Value(ctxKeyFamilyID{}).(domain.FamilyID); ok {
		return v
	}
	return domain.FamilyID{}
}

func WithClientMetadata(ctx context.Context, md ClientMetadata) context.Context {
	return context.WithValue(ctx, ctxKeyClient{}, md)
}

func Client(ctx context.Context) ClientMetadata {
	if v, ok := ctx.Value(ctxKeyClient{}).(ClientMetadata); ok {
		return v
	}
	return ClientMetadata{}
}

func ClientIP(ctx context.Context) string {
	return Client(ctx).IP
}

func UserAgent(ctx context.Context) string {
	return Client(ctx).UserAgent
}
