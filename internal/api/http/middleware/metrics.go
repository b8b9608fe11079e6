package middleware

import (
	"net/http"
	"time"
)

// RequestObserver records finished requests.
type RequestObserver interface {
	ObserveRequest(route string, code int, elapsed time.Duration)
}

// Metrics reports every request under route, the registered pattern rather
// than the raw path.
func Metrics(observer RequestObserver, route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			observer.ObserveRequest(route, rec.status, time.Since(start))
		})
	}
}
