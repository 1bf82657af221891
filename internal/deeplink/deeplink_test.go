package deeplink

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildAndParseRoundTrip(t *testing.T) {
	link, err := Build("vkcall", "create-call", `Standup "daily"`)
	require.NoError(t, err)
	assert.Contains(t, link, "vkcall://create-call?arguments=")

	payload, err := Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "create-call", payload.Command)
	assert.Equal(t, `Standup "daily"`, payload.Title)
	assert.False(t, payload.HasLaunchContext())
}

func TestParseContextJSON(t *testing.T) {
	link, err := Build("vkcall", "create-call", "Retro")
	require.NoError(t, err)
	link += "&context=" + url.QueryEscape(`{"device_id":"dev-1","code":"c0de"}`)

	payload, err := Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "Retro", payload.Title)
	assert.Equal(t, "dev-1", payload.DeviceID)
	assert.Equal(t, "c0de", payload.Code)
	assert.True(t, payload.HasLaunchContext())
}

func TestParsePlainParams(t *testing.T) {
	payload, err := Parse("vkcall://create-call?device_id=dev-2&code=abc")
	require.NoError(t, err)
	assert.Empty(t, payload.Title)
	assert.Equal(t, "dev-2", payload.DeviceID)
	assert.Equal(t, "abc", payload.Code)
}

func TestParseRejectsBrokenInput(t *testing.T) {
	for _, raw := range []string{"", "create-call", "vkcall://create-call?arguments=%7Bnope"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidLink, raw)
	}
}

func TestBuildLoopback(t *testing.T) {
	link, err := BuildLoopback("127.0.0.1:19455", "create-call", "Sync")
	require.NoError(t, err)

	payload, err := Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "create-call", payload.Command)
	assert.Equal(t, "Sync", payload.Title)
}

func TestListenerDeliversLaunch(t *testing.T) {
	l := NewListener("create-call")
	require.NoError(t, l.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = l.Stop(context.Background()) })

	link, err := BuildLoopback(l.Addr(), "create-call", "Planning")
	require.NoError(t, err)

	resp, err := http.Get(link + "&device_id=dev-3&code=xyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	payload, err := l.WaitForLaunch(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Planning", payload.Title)
	assert.Equal(t, "dev-3", payload.DeviceID)
	assert.Equal(t, "xyz", payload.Code)
}

func TestListenerReportsAuthorizationError(t *testing.T) {
	l := NewListener("create-call")
	require.NoError(t, l.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = l.Stop(context.Background()) })

	resp, err := http.Get("http://" + l.Addr() + "/create-call?error=access_denied")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, err = l.WaitForLaunch(context.Background(), time.Second)
	require.ErrorContains(t, err, "access_denied")
}

func TestWaitForLaunchTimeout(t *testing.T) {
	l := NewListener("create-call")
	_, err := l.WaitForLaunch(context.Background(), 10*time.Millisecond)
	require.ErrorContains(t, err, "timeout")
}
