package vkapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkcalls/vkcall/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.APIBaseURL = srv.URL + "/method"
	return NewClient(cfg, srv.Client(), "token-123")
}

func TestCreateCallSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/method/calls.start", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "42", q.Get("user_id"))
		assert.Equal(t, config.DefaultAPIVersion, q.Get("v"))
		assert.Equal(t, "token-123", q.Get("access_token"))
		assert.Equal(t, "Weekly sync", q.Get("name"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"join_link":"https://vk.com/call/join/abc","ok_join_link":"https://ok.ru/videochat/abc",
			"call_id":123,"short_credentials":{"id":"9876","password":"pw","link_without_password":"l1","link_with_password":"l2"}}}`))
	})

	result, err := client.CreateCall(context.Background(), "42", "Weekly sync")
	require.NoError(t, err)
	assert.Equal(t, "https://vk.com/call/join/abc", result.JoinLink)
	assert.Equal(t, "https://ok.ru/videochat/abc", result.OKJoinLink)
	assert.Equal(t, "123", result.CallID)
	require.NotNil(t, result.ShortCredentials)
	assert.Equal(t, "9876", result.ShortCredentials.ID)
	assert.Equal(t, "l2", result.ShortCredentials.LinkWithPassword)
}

func TestCreateCallProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"error_code":5,"error_msg":"User authorization failed: access_token has expired."}}`))
	})

	_, err := client.CreateCall(context.Background(), "42", "t")
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.True(t, apiErr.IsTokenExpired())
}

func TestCreateCallNonOKWithoutEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.CreateCall(context.Background(), "42", "t")
	require.ErrorContains(t, err, "status 502")
	_, ok := AsError(err)
	assert.False(t, ok)
}

func TestCreateCallUndecodableBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := client.CreateCall(context.Background(), "42", "t")
	require.ErrorContains(t, err, "unexpected calls.start response")
}

func TestCreateCallGzipBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"response":{"join_link":"https://vk.com/call/join/gz","ok_join_link":""}}`))
	require.NoError(t, zw.Close())

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "zstd")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})

	result, err := client.CreateCall(context.Background(), "42", "t")
	require.NoError(t, err)
	assert.Equal(t, "https://vk.com/call/join/gz", result.JoinLink)
}

func TestCreateCallRequiresUserID(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := client.CreateCall(context.Background(), " ", "t")
	assert.True(t, errors.Is(err, ErrMissingUserID))
	assert.False(t, called)
}

func TestCreateCallTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	cfg := config.Default()
	cfg.APIBaseURL = srv.URL
	srv.Close()

	_, err := NewClient(cfg, &http.Client{}, "t").CreateCall(context.Background(), "1", "t")
	require.ErrorContains(t, err, "request failed")
}
