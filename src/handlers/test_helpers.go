package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers for handler tests

// decodeBody parses a JSON response body
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

// assertJSONError checks the status code and the error message of a failed response
func assertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedCode int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedCode, w.Code, w.Body.String())
	response := decodeBody(t, w)
	assert.Equal(t, false, response["ok"])
	assert.Equal(t, expectedError, response["error"])
}
