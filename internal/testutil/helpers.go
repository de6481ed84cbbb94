// SPDX-License-Identifier: BSL-1.1

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
	"github.com/slotforge/pkg/middleware"
)

// WithAuth adds authentication context to a request for testing authenticated endpoints
func WithAuth(req *http.Request, userID, role string) *http.Request {
	ctx := req.Context()
	ctx = context.WithValue(ctx, middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
	return req.WithContext(ctx)
}

// WithURLParams adds Chi URL parameters to a request for testing routes with path parameters
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// MakeJSONRequest creates an HTTP request with JSON body for testing
func MakeJSONRequest(method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// MakeRequest creates a basic HTTP request for testing
func MakeRequest(method, url string) *http.Request {
	return httptest.NewRequest(method, url, nil)
}
