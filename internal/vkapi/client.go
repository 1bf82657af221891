package vkapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/vkcalls/vkcall/internal/config"
	"github.com/vkcalls/vkcall/internal/util"
)

const methodCallsStart = "calls.start"

// Client calls the VK API with one access token. A renewed token needs a new Client.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	version     string
	accessToken string
}

// NewClient returns a client bound to accessToken. A nil httpClient selects
// one built from cfg.
func NewClient(cfg *config.Config, httpClient *http.Client, accessToken string) *Client {
	if httpClient == nil {
		httpClient = util.NewHTTPClient(cfg)
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.APIBaseURL, "/"),
		version:     cfg.APIVersion,
		accessToken: accessToken,
	}
}

// CreateCall starts a new call owned by userID. VK error envelopes are
// returned as *Error; no retry is attempted.
func (c *Client) CreateCall(ctx context.Context, userID, title string) (*CallResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}

	params := url.Values{
		"user_id":      {userID},
		"v":            {c.version},
		"access_token": {c.accessToken},
		"name":         {title},
	}
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, methodCallsStart, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("vkapi: failed to create request: %w", err)
	}
	util.ApplyDefaultHeaders(req)

	log.WithField("endpoint", methodCallsStart).Debugf("creating call for user %s, token %s", userID, util.RedactToken(c.accessToken))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vkapi: %s request failed: %w", methodCallsStart, err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("vkapi: close response body error: %v", errClose)
		}
	}()

	body, err := util.ReadResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("vkapi: failed to read %s response: %w", methodCallsStart, err)
	}

	if apiErr := ClassifyError(body); apiErr != nil {
		log.WithFields(log.Fields{
			"endpoint":   methodCallsStart,
			"status":     resp.StatusCode,
			"error_code": apiErr.(*Error).Code,
		}).Debugf("vk api returned an error: %v", apiErr)
		return nil, apiErr
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("vkapi: %s failed with status %d: %s", methodCallsStart, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	response := gjson.GetBytes(body, "response")
	if !response.IsObject() {
		return nil, fmt.Errorf("vkapi: unexpected %s response: %s", methodCallsStart, strings.TrimSpace(string(body)))
	}
	return parseCallResult(response), nil
}

// parseCallResult reads fields leniently: VK sends ids as strings or numbers.
func parseCallResult(response gjson.Result) *CallResult {
	result := &CallResult{
		JoinLink:         response.Get("join_link").String(),
		OKJoinLink:       response.Get("ok_join_link").String(),
		CallID:           response.Get("call_id").String(),
		BroadcastVideoID: response.Get("broadcast_video_id").String(),
		BroadcastOVID:    response.Get("broadcast_ov_id").String(),
	}
	if creds := response.Get("short_credentials"); creds.IsObject() {
		result.ShortCredentials = &ShortCredentials{
			ID:                  creds.Get("id").String(),
			Password:            creds.Get("password").String(),
			LinkWithoutPassword: creds.Get("link_without_password").String(),
			LinkWithPassword:    creds.Get("link_with_password").String(),
		}
	}
	return result
}
