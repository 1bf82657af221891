// Package vkapi is a minimal client for the VK API method used by vkcall
// (calls.start) together with the classifier for VK error envelopes.
package vkapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Error codes with special handling.
const (
	// CodeAuthorizationFailed is returned when the access token is rejected.
	CodeAuthorizationFailed = 5
)

// expiredTokenMessage is the only marker VK gives for an expired token; the
// code is the generic authorization failure.
const expiredTokenMessage = "access_token has expired."

// ErrMissingUserID is returned when a call is requested without a user id.
var ErrMissingUserID = errors.New("vkapi: user id is required")

// RequestParam is one request parameter echoed back by VK in an error envelope.
type RequestParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Error is a VK API error envelope {"error": {...}}.
type Error struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
	// Subcode is zero when VK omits it.
	Subcode       int            `json:"error_subcode,omitempty"`
	RequestParams []RequestParam `json:"request_params,omitempty"`
}

func (e *Error) Error() string {
	if e.Subcode != 0 {
		return fmt.Sprintf("vk api error %d/%d: %s", e.Code, e.Subcode, e.Message)
	}
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// IsTokenExpired reports whether VK rejected the access token as expired.
func (e *Error) IsTokenExpired() bool {
	return e != nil && strings.Contains(e.Message, expiredTokenMessage)
}

// IsAuthorizationFailed reports whether the token must be replaced by a new authorization.
func (e *Error) IsAuthorizationFailed() bool {
	return e != nil && e.Code == CodeAuthorizationFailed
}

// ClassifyError returns an *Error when body is a JSON object with an "error"
// object, nil otherwise.
func ClassifyError(body []byte) error {
	if !gjson.ValidBytes(body) {
		return nil
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil
	}
	envelope := root.Get("error")
	if !envelope.IsObject() {
		return nil
	}

	apiErr := &Error{
		Code:    int(envelope.Get("error_code").Int()),
		Message: envelope.Get("error_msg").String(),
		Subcode: int(envelope.Get("error_subcode").Int()),
	}
	envelope.Get("request_params").ForEach(func(_, param gjson.Result) bool {
		apiErr.RequestParams = append(apiErr.RequestParams, RequestParam{
			Key:   param.Get("key").String(),
			Value: param.Get("value").String(),
		})
		return true
	})
	return apiErr
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
