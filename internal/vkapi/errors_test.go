package vkapi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantCode    int
		wantExpired bool
		wantAuth    bool
	}{
		{
			name:        "expired token",
			body:        `{"error":{"error_code":5,"error_msg":"User authorization failed: access_token has expired."}}`,
			wantErr:     true,
			wantCode:    5,
			wantExpired: true,
			wantAuth:    true,
		},
		{
			name:     "authorization failed",
			body:     `{"error":{"error_code":5,"error_msg":"User authorization failed: invalid session."}}`,
			wantErr:  true,
			wantCode: 5,
			wantAuth: true,
		},
		{
			name:     "other error",
			body:     `{"error":{"error_code":6,"error_msg":"Too many requests per second"}}`,
			wantErr:  true,
			wantCode: 6,
		},
		{name: "success", body: `{"response":{"join_link":"https://vk.com/call/join/x"}}`},
		{name: "not json", body: `<html>bad gateway</html>`},
		{name: "array", body: `[{"error":{}}]`},
		{name: "error is a string", body: `{"error":"invalid_grant"}`},
		{name: "empty", body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyError([]byte(tt.body))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			apiErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantExpired, apiErr.IsTokenExpired())
			assert.Equal(t, tt.wantAuth, apiErr.IsAuthorizationFailed())
		})
	}
}

func TestClassifyErrorKeepsSubcodeAndParams(t *testing.T) {
	err := ClassifyError([]byte(`{"error":{"error_code":100,"error_msg":"One of the parameters specified was missing or invalid","error_subcode":1,
		"request_params":[{"key":"method","value":"calls.start"},{"key":"v","value":"5.199"}]}}`))

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 1, apiErr.Subcode)
	assert.Equal(t, []RequestParam{{Key: "method", Value: "calls.start"}, {Key: "v", Value: "5.199"}}, apiErr.RequestParams)
	assert.Equal(t, "vk api error 100/1: One of the parameters specified was missing or invalid", apiErr.Error())
}

func TestAsErrorUnwraps(t *testing.T) {
	wrapped := fmt.Errorf("create call: %w", &Error{Code: 5, Message: "User authorization failed"})
	apiErr, ok := AsError(wrapped)
	require.True(t, ok)
	assert.True(t, apiErr.IsAuthorizationFailed())

	_, ok = AsError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestNilErrorClassification(t *testing.T) {
	var apiErr *Error
	assert.False(t, apiErr.IsTokenExpired())
	assert.False(t, apiErr.IsAuthorizationFailed())
}
