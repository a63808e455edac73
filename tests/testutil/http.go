package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clinic/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ServeJSON drives one request through a routed engine. A non-nil body is
// JSON-encoded and sent with the matching content type.
func ServeJSON(t *testing.T, engine http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err, "Failed to build request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// DecodeSuccess decodes a success envelope and returns its data payload.
func DecodeSuccess[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorInfo  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), "Failed to parse response envelope")
	if envelope.Error != nil {
		t.Fatalf("Expected success response, got error %s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	require.True(t, envelope.Success, "Expected success to be true")

	var data T
	require.NoError(t, json.Unmarshal(envelope.Data, &data), "Failed to parse response data")
	return data
}

// DecodeError decodes an error envelope.
func DecodeError(t *testing.T, w *httptest.ResponseRecorder) *dto.ErrorInfo {
	t.Helper()

	var envelope struct {
		Success bool           `json:"success"`
		Error   *dto.ErrorInfo `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), "Failed to parse response envelope")
	assert.False(t, envelope.Success, "Expected success to be false")
	require.NotNil(t, envelope.Error, "Expected an error object in the response")
	return envelope.Error
}

// AssertErrorCode asserts the response carries the given status and
// normalized error code.
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()

	assert.Equal(t, wantStatus, w.Code, "Unexpected status code")
	errInfo := DecodeError(t, w)
	assert.Equal(t, wantCode, errInfo.Code, "Unexpected error code")
}
