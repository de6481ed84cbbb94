// SPDX-License-Identifier: BSL-1.1

// Package httputil carries the plain request/response plumbing shared
// by every handler package. Error rendering lives in pkg/apierror: this
// package only writes successful bodies and decodes requests.
package httputil

import (
	"encoding/json"
	"net/http"
)

// JSON writes a successful JSON response with the given status. Error
// bodies are written via apierror.Write, not through this helper.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// DecodeJSON decodes JSON request body into target struct
func DecodeJSON(r *http.Request, target interface{}) error {
	return json.NewDecoder(r.Body).Decode(target)
}
