package handlers

import "net/http"

// Health handles GET /healthz. The service is healthy when it can
// serve; storage trouble degrades behavior (fail-open reads) rather
// than failing the process.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
