// Package requesttime pins a single "now" per HTTP request so that the
// consent check, the spend window and the approval expiry all agree.
package requesttime

import (
	"net/http"
	"time"

	"purchasegate/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(clock func() time.Time) func(http.Handler) http.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), clock())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
