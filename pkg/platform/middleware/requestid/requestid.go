// Package requestid tags each request with an ID for log correlation.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"travelguard/pkg/requestcontext"
)

// Header carries an upstream request ID; one is generated when absent.
const Header = "X-Request-ID"

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
