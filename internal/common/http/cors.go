// internal/common/http/cors.go
package http

import "net/http"

// SetCORSHeaders attaches the permissive CORS headers both function
// endpoints respond with. The functions are called from the web app's
// browser context as well as from server-side triggers.
func SetCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// HandlePreflight answers an OPTIONS request with 200 and CORS headers,
// returning true if the request was a preflight.
func HandlePreflight(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodOptions {
		return false
	}
	SetCORSHeaders(w)
	w.WriteHeader(http.StatusOK)
	return true
}
