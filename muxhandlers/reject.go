package muxhandlers

import (
	"net/http"

	"github.com/vitalvas/routeprobe/mux"
)

// Filter names reported through mux.ReportRejection.
const (
	FilterBasicAuth        = "basic-auth"
	FilterBearerAuth       = "bearer-auth"
	FilterContentTypeCheck = "content-type-check"
	FilterRequestSizeLimit = "request-size-limit"
	FilterRequestID        = "request-id"
	FilterRecovery         = "recovery"
)

// reject reports the rejection on the request and writes status with the
// standard status text as body.
func reject(w http.ResponseWriter, r *http.Request, filter string, status int, reason string) {
	mux.ReportRejection(r, mux.Rejection{Filter: filter, Status: status, Reason: reason})
	http.Error(w, http.StatusText(status), status)
}
