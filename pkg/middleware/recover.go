// pkg/middleware/recover.go
package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"parsvc/pkg/problems"
)

func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					reqID := RequestIDFrom(r.Context())
					log.Errorw("panic", "err", rec, "request_id", reqID, "stack", string(debug.Stack()))
					problems.Write(w, problems.ServerError(reqID))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
