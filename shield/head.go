package shield

import "net/http"

// HeadToGet serves HEAD requests through the GET route so probes such as
// "curl -I /healthz" get the GET status instead of 405. net/http drops the
// body for HEAD responses.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
