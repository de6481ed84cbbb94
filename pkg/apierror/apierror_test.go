// SPDX-License-Identifier: BSL-1.1

package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{Validation, http.StatusBadRequest},
		{Unauthenticated, http.StatusUnauthorized},
		{MFARequired, http.StatusForbidden},
		{MFAInvalid, http.StatusForbidden},
		{Forbidden, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{QuotaExceeded, http.StatusTooManyRequests},
		{Precondition, http.StatusPreconditionFailed},
		{Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.Status())
	}
}

func TestWriteRendersDetailBody(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, New(Conflict, "reservation overlaps").WithExtra(map[string]interface{}{"resource_id": "r1"}))

	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "conflict", body["detail"])
	assert.Equal(t, "r1", body["resource_id"])
}

func TestWriteClassifiesUnknownErrorAsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	Write(w, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal", body["detail"])
}

func TestFromErrorPreservesKind(t *testing.T) {
	original := New(NotFound, "resource not found")
	wrapped := Wrap(NotFound, errors.New("row not found"), "resource not found")

	assert.Equal(t, NotFound, FromError(original).Kind)
	assert.Equal(t, NotFound, FromError(wrapped).Kind)
}

func TestAsUnwraps(t *testing.T) {
	wrapped := Wrap(Conflict, errors.New("duplicate key"), "duplicate name")

	var apiErr *Error
	require.True(t, As(wrapped, &apiErr))
	assert.Equal(t, Conflict, apiErr.Kind)
}
