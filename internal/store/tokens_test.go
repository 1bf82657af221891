package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore(NewMemoryBackend())

	tokens, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)
	assert.False(t, tokens.HasAccessToken())

	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetTokens(ctx, TokenSet{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600, IssuedAt: issued}))

	tokens, err = s.Tokens(ctx)
	require.NoError(t, err)
	require.NotNil(t, tokens)
	assert.Equal(t, "at", tokens.AccessToken)
	assert.Equal(t, "rt", tokens.RefreshToken)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)
	assert.Equal(t, issued.Add(time.Hour), tokens.ExpiresAt())
}

func TestSetTokensStampsIssuedAt(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore(NewMemoryBackend())

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.SetTokens(ctx, TokenSet{AccessToken: "at"}))

	tokens, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.True(t, tokens.IssuedAt.After(before))
	assert.True(t, tokens.ExpiresAt().IsZero())
}

func TestEmptyAccessTokenIsUnauthenticated(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore(NewMemoryBackend())
	require.NoError(t, s.SetTokens(ctx, TokenSet{AccessToken: "  ", RefreshToken: "rt"}))

	tokens, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.False(t, tokens.HasAccessToken())
}

func TestTokenStoreIdentityKeys(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := NewTokenStore(backend)

	require.NoError(t, s.SetUserID(ctx, "42"))
	require.NoError(t, s.SetDeviceID(ctx, "dev"))
	require.NoError(t, s.SetCodeVerifier(ctx, "verifier"))
	require.NoError(t, s.SetAuthSessionID(ctx, "session"))

	v, ok, err := backend.Get(ctx, "vk_user_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	deviceID, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev", deviceID)

	sessionID, err := s.AuthSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "session", sessionID)

	require.NoError(t, s.ClearCodeVerifier(ctx))
	verifier, err := s.CodeVerifier(ctx)
	require.NoError(t, err)
	assert.Empty(t, verifier)
}

func TestClearTokensKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore(NewMemoryBackend())
	require.NoError(t, s.SetTokens(ctx, TokenSet{AccessToken: "at"}))
	require.NoError(t, s.SetDeviceID(ctx, "dev"))

	require.NoError(t, s.ClearTokens(ctx))

	tokens, err := s.Tokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, tokens)
	deviceID, err := s.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev", deviceID)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	s := NewTokenStore(backend)
	require.NoError(t, s.SetTokens(ctx, TokenSet{AccessToken: "at"}))
	require.NoError(t, s.SetUserID(ctx, "1"))
	require.NoError(t, s.SetDeviceID(ctx, "dev"))
	require.NoError(t, s.SetCodeVerifier(ctx, "v"))
	require.NoError(t, s.SetAuthSessionID(ctx, "s"))

	require.NoError(t, s.ClearAll(ctx))
	assert.Zero(t, backend.Keys())
}
