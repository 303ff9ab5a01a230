package handler

import (
	"net/http"

	"github.com/faucetdb/warden/internal/openapi"
)

// OpenAPIHandler serves the OpenAPI 3.1 description of the auth API. The
// server URL in the document follows the host the request arrived on.
type OpenAPIHandler struct {
	cookieName string
	version    string
}

// NewOpenAPIHandler creates a new OpenAPIHandler.
func NewOpenAPIHandler(cookieName, version string) *OpenAPIHandler {
	return &OpenAPIHandler{cookieName: cookieName, version: version}
}

// ServeSpec returns the OpenAPI document.
// GET /openapi.json
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, openapi.GenerateAuthSpec(requestBaseURL(r), h.cookieName, h.version))
}

// requestBaseURL reconstructs scheme://host for the incoming request.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
