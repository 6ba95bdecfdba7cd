package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/khabaroff/webhook-inbox/src/config"
	"github.com/khabaroff/webhook-inbox/src/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostSigned(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"ping"}`)
	validator := services.NewSignatureValidator(config.ProviderSecrets{"test": "s3cret"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhooks/test", r.URL.Path)
		got, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if !validator.Validate("test", got, r.Header.Get("X-Signature")) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	status, response, err := postSigned(server.Client(), server.URL+"/", "test", "s3cret", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(response))

	status, _, err = postSigned(server.Client(), server.URL, "test", "wrong", body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRunSend_Usage(t *testing.T) {
	assert.Equal(t, 2, runSend(nil))
	assert.Equal(t, 2, runSend([]string{"test"}))
}
