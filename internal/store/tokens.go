package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Keys used in the backend.
const (
	KeyTokenSet      = "token_set"
	KeyUserID        = "vk_user_id"
	KeyDeviceID      = "vk_device_id"
	KeyCodeVerifier  = "code_verifier"
	KeyAuthSessionID = "auth_session_id"
)

var allKeys = []string{KeyTokenSet, KeyUserID, KeyDeviceID, KeyCodeVerifier, KeyAuthSessionID}

// TokenSet is the persisted result of a token exchange.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is the lifetime of the access token in seconds.
	ExpiresIn int64 `json:"expires_in"`
	// IssuedAt is when the token endpoint answered.
	IssuedAt time.Time `json:"issued_at"`
}

// HasAccessToken reports whether the set authenticates requests.
func (t *TokenSet) HasAccessToken() bool {
	return t != nil && strings.TrimSpace(t.AccessToken) != ""
}

// ExpiresAt returns the expiry time, or the zero time when unknown.
func (t *TokenSet) ExpiresAt() time.Time {
	if t == nil || t.ExpiresIn <= 0 || t.IssuedAt.IsZero() {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// TokenStore exposes typed access to the authorization state held in a Backend.
type TokenStore struct {
	backend Backend
}

// NewTokenStore wraps backend.
func NewTokenStore(backend Backend) *TokenStore {
	return &TokenStore{backend: backend}
}

// Backend returns the wrapped backend.
func (s *TokenStore) Backend() Backend { return s.backend }

// Close closes the backend.
func (s *TokenStore) Close() error { return s.backend.Close() }

// Tokens returns the stored token set, or nil when none is stored.
func (s *TokenStore) Tokens(ctx context.Context) (*TokenSet, error) {
	raw, ok, err := s.backend.Get(ctx, KeyTokenSet)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var tokens TokenSet
	if err = json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, fmt.Errorf("store: decode token set: %w", err)
	}
	return &tokens, nil
}

// SetTokens replaces the stored token set. A zero IssuedAt is stamped with the current time.
func (s *TokenStore) SetTokens(ctx context.Context, tokens TokenSet) error {
	if tokens.IssuedAt.IsZero() {
		tokens.IssuedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("store: encode token set: %w", err)
	}
	return s.backend.Set(ctx, KeyTokenSet, string(raw))
}

// ClearTokens removes the token set only.
func (s *TokenStore) ClearTokens(ctx context.Context) error {
	return s.backend.Delete(ctx, KeyTokenSet)
}

func (s *TokenStore) UserID(ctx context.Context) (string, error) {
	return s.getString(ctx, KeyUserID)
}

func (s *TokenStore) SetUserID(ctx context.Context, userID string) error {
	return s.backend.Set(ctx, KeyUserID, userID)
}

func (s *TokenStore) DeviceID(ctx context.Context) (string, error) {
	return s.getString(ctx, KeyDeviceID)
}

func (s *TokenStore) SetDeviceID(ctx context.Context, deviceID string) error {
	return s.backend.Set(ctx, KeyDeviceID, deviceID)
}

func (s *TokenStore) CodeVerifier(ctx context.Context) (string, error) {
	return s.getString(ctx, KeyCodeVerifier)
}

func (s *TokenStore) SetCodeVerifier(ctx context.Context, verifier string) error {
	return s.backend.Set(ctx, KeyCodeVerifier, verifier)
}

func (s *TokenStore) ClearCodeVerifier(ctx context.Context) error {
	return s.backend.Delete(ctx, KeyCodeVerifier)
}

func (s *TokenStore) AuthSessionID(ctx context.Context) (string, error) {
	return s.getString(ctx, KeyAuthSessionID)
}

func (s *TokenStore) SetAuthSessionID(ctx context.Context, id string) error {
	return s.backend.Set(ctx, KeyAuthSessionID, id)
}

// ClearAll removes every key owned by vkcall.
func (s *TokenStore) ClearAll(ctx context.Context) error {
	for _, key := range allKeys {
		if err := s.backend.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// getString returns "" for missing keys.
func (s *TokenStore) getString(ctx context.Context, key string) (string, error) {
	v, _, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return v, nil
}
