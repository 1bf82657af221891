// Package vk implements the VK ID authorization used by vkcall: the PKCE
// authorization-code grant started in the browser and the refresh-token
// renewal, both against the VK ID token endpoint.
package vk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/vkcalls/vkcall/internal/config"
	"github.com/vkcalls/vkcall/internal/deeplink"
	"github.com/vkcalls/vkcall/internal/misc"
	"github.com/vkcalls/vkcall/internal/store"
	"github.com/vkcalls/vkcall/internal/util"
	"golang.org/x/oauth2"
)

const (
	authorizePath = "/authorize"
	tokenPath     = "/oauth2/auth"
	startPath     = "/start"

	codeChallengeMethod = "s256"
	colorScheme         = "dark"
)

// authorizeScopes are requested on the consent screen.
var authorizeScopes = []string{"email", "phone"}

// URLOpener shows an authorization URL to the user.
type URLOpener interface {
	Open(url string) error
}

// DeepLinkBuilder returns the link the redirect service relaunches vkcall with.
type DeepLinkBuilder func(title string) (string, error)

// Auth runs the VK ID authorization flows and keeps the token store up to date.
type Auth struct {
	cfg        *config.Config
	httpClient *http.Client
	tokens     *store.TokenStore
	opener     URLOpener
	deepLink   DeepLinkBuilder
	now        func() time.Time
}

// NewAuth creates the flow controller. A nil httpClient selects one built
// from cfg; a nil deepLink builds {scheme}://{command} links from cfg.
func NewAuth(cfg *config.Config, httpClient *http.Client, tokens *store.TokenStore, opener URLOpener, deepLink DeepLinkBuilder) *Auth {
	if httpClient == nil {
		httpClient = util.NewHTTPClient(cfg)
	}
	if deepLink == nil {
		deepLink = func(title string) (string, error) {
			return deeplink.Build(cfg.DeepLink.Scheme, cfg.DeepLink.Command, title)
		}
	}
	return &Auth{
		cfg:        cfg,
		httpClient: httpClient,
		tokens:     tokens,
		opener:     opener,
		deepLink:   deepLink,
		now:        time.Now,
	}
}

// Authorize starts a new grant: it registers a session with the redirect
// service, stores the PKCE verifier and opens the consent page. It returns
// without waiting for the user.
func (a *Auth) Authorize(ctx context.Context, title string) (*AuthorizationRequest, error) {
	link, err := a.deepLink(title)
	if err != nil {
		return nil, fmt.Errorf("vk auth: build deep link: %w", err)
	}

	pkceCodes, err := GeneratePKCECodes()
	if err != nil {
		return nil, fmt.Errorf("vk auth: %w", err)
	}

	sessionID, err := a.initializeAuthSession(ctx, link, pkceCodes.State)
	if err != nil {
		return nil, err
	}

	if err = a.tokens.SetAuthSessionID(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("vk auth: save auth session: %w", err)
	}
	if err = a.tokens.SetCodeVerifier(ctx, pkceCodes.CodeVerifier); err != nil {
		return nil, fmt.Errorf("vk auth: save code verifier: %w", err)
	}

	authURL := a.AuthorizationURL(sessionID, pkceCodes.CodeChallenge)
	log.Debugf("vk auth: authorization URL %s", authURL)
	if a.opener != nil {
		if err = a.opener.Open(authURL); err != nil {
			return nil, fmt.Errorf("vk auth: open authorization URL: %w", err)
		}
	}

	return &AuthorizationRequest{
		AuthSessionID: sessionID,
		DeepLink:      link,
		URL:           authURL,
		PKCE:          pkceCodes,
	}, nil
}

// AuthorizationURL returns the consent page URL for a registered session.
func (a *Auth) AuthorizationURL(authSessionID, codeChallenge string) string {
	oauthCfg := &oauth2.Config{
		ClientID:    a.cfg.ClientID,
		RedirectURL: a.cfg.RedirectURI(),
		Scopes:      authorizeScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  a.cfg.AuthBaseURL + authorizePath,
			TokenURL: a.cfg.AuthBaseURL + tokenPath,
		},
	}
	return oauthCfg.AuthCodeURL(authSessionID,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", codeChallengeMethod),
		oauth2.SetAuthURLParam("scheme", colorScheme),
	)
}

func (a *Auth) initializeAuthSession(ctx context.Context, link, state string) (string, error) {
	params := url.Values{
		"id":        {state},
		"deep_link": {link},
	}
	endpoint := fmt.Sprintf("%s%s?%s", a.cfg.RedirectBaseURL, startPath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", NewAuthenticationError(ErrSessionInit, err)
	}
	util.ApplyDefaultHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", NewAuthenticationError(ErrSessionInit, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := util.ReadResponseBody(resp)
	if err != nil {
		return "", NewAuthenticationError(ErrSessionInit, err)
	}
	sessionID := strings.TrimSpace(gjson.GetBytes(body, "id").String())
	if sessionID == "" {
		log.WithField("status", resp.StatusCode).Debugf("vk auth: session start response: %s", string(body))
		return "", NewAuthenticationError(ErrSessionInit, fmt.Errorf("response has no session id (status %d)", resp.StatusCode))
	}
	return sessionID, nil
}

// CreateTokens exchanges the authorization code of launch for tokens and
// stores them together with the user and device ids.
func (a *Auth) CreateTokens(ctx context.Context, launch LaunchContext) (*AuthResponse, error) {
	verifier, err := a.tokens.CodeVerifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("vk auth: read code verifier: %w", err)
	}

	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {launch.Code},
		"client_id":     {a.cfg.ClientID},
		"device_id":     {launch.DeviceID},
		"code_verifier": {verifier},
		"redirect_uri":  {a.cfg.RedirectURI()},
	}

	resp, body, err := a.postToken(ctx, data)
	if err != nil {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	if oauthErr := oauthErrorFrom(body); oauthErr != nil {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, oauthErr)
	}

	authResp := parseAuthResponse(body)
	if authResp.AccessToken == "" {
		return nil, NewAuthenticationError(ErrCodeExchangeFailed, fmt.Errorf("token response has no access token"))
	}

	if err = a.tokens.SetUserID(ctx, authResp.UserID); err != nil {
		return nil, fmt.Errorf("vk auth: save user id: %w", err)
	}
	if err = a.tokens.SetDeviceID(ctx, launch.DeviceID); err != nil {
		return nil, fmt.Errorf("vk auth: save device id: %w", err)
	}
	if err = a.tokens.SetTokens(ctx, store.TokenSet{
		AccessToken:  authResp.AccessToken,
		RefreshToken: authResp.RefreshToken,
		ExpiresIn:    authResp.ExpiresIn,
		IssuedAt:     a.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("vk auth: save tokens: %w", err)
	}
	if err = a.tokens.ClearCodeVerifier(ctx); err != nil {
		log.Warnf("vk auth: failed to clear code verifier: %v", err)
	}

	misc.LogCredentialSeparator()
	log.WithField("user_id", authResp.UserID).Info("VK authorization completed")
	return authResp, nil
}

// RefreshTokens renews the access token with the stored refresh token and
// device id. The caller persists the returned set. A different device id in
// the answer replaces the stored one.
func (a *Auth) RefreshTokens(ctx context.Context) (*store.TokenSet, error) {
	current, err := a.tokens.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("vk auth: read tokens: %w", err)
	}
	deviceID, err := a.tokens.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("vk auth: read device id: %w", err)
	}

	if current == nil || current.RefreshToken == "" || deviceID == "" {
		if errClear := a.tokens.ClearTokens(ctx); errClear != nil {
			log.Warnf("vk auth: failed to clear tokens: %v", errClear)
		}
		return nil, NewAuthenticationError(ErrMissingRenewalData, nil)
	}

	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {current.RefreshToken},
		"client_id":     {a.cfg.ClientID},
		"device_id":     {deviceID},
		"redirect_uri":  {a.cfg.RedirectURI()},
	}

	resp, body, err := a.postToken(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("vk auth: token refresh request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.WithField("status", resp.StatusCode).Debugf("vk auth: refresh response: %s", string(body))
		return nil, newStatusError(ErrRefreshFailed, resp)
	}

	authResp := parseAuthResponse(body)
	if authResp.DeviceID != "" && authResp.DeviceID != deviceID {
		log.WithField("device_id", authResp.DeviceID).Debug("vk auth: device id changed")
		if err = a.tokens.SetDeviceID(ctx, authResp.DeviceID); err != nil {
			return nil, fmt.Errorf("vk auth: save device id: %w", err)
		}
	}

	return &store.TokenSet{
		AccessToken:  authResp.AccessToken,
		RefreshToken: authResp.RefreshToken,
		ExpiresIn:    authResp.ExpiresIn,
		IssuedAt:     a.now().UTC(),
	}, nil
}

func (a *Auth) postToken(ctx context.Context, data url.Values) (*http.Response, []byte, error) {
	endpoint := a.cfg.AuthBaseURL + tokenPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token request: %w", err)
	}
	util.ApplyDefaultHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.WithField("endpoint", tokenPath).Debugf("vk auth: %s grant", data.Get("grant_type"))
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := util.ReadResponseBody(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read token response: %w", err)
	}
	return resp, body, nil
}

// parseAuthResponse reads ids as strings whether VK sends them as numbers or strings.
func parseAuthResponse(body []byte) *AuthResponse {
	root := gjson.ParseBytes(body)
	return &AuthResponse{
		AccessToken:  root.Get("access_token").String(),
		RefreshToken: root.Get("refresh_token").String(),
		ExpiresIn:    root.Get("expires_in").Int(),
		UserID:       root.Get("user_id").String(),
		DeviceID:     root.Get("device_id").String(),
	}
}

// oauthErrorFrom returns the {"error": ..., "error_description": ...} body of a rejected grant.
func oauthErrorFrom(body []byte) error {
	code := gjson.GetBytes(body, "error")
	if !code.Exists() || code.Type != gjson.String {
		return nil
	}
	if desc := gjson.GetBytes(body, "error_description").String(); desc != "" {
		return fmt.Errorf("oauth error %s: %s", code.String(), desc)
	}
	return fmt.Errorf("oauth error: %s", code.String())
}
