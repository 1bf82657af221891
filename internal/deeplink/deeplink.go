// Package deeplink builds and parses the links that relaunch vkcall after
// browser authorization.
//
// A link has the form {scheme}://{command}?arguments={"title":...}. The
// redirect service appends the authorization result either as a context
// JSON parameter ({"device_id":...,"code":...}) or as plain device_id and
// code query parameters.
package deeplink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrInvalidLink is returned when a link cannot be parsed.
var ErrInvalidLink = errors.New("deeplink: invalid link")

// Payload is the decoded content of a deep link.
type Payload struct {
	Command string
	Title   string
	// DeviceID and Code are set when the link resumes an authorization.
	DeviceID string
	Code     string
	// Error carries an error reported by the redirect service.
	Error string
}

// HasLaunchContext reports whether the payload carries an authorization result.
func (p *Payload) HasLaunchContext() bool {
	return p != nil && p.Code != "" && p.DeviceID != ""
}

// Build returns {scheme}://{command}?arguments={"title":title}.
func Build(scheme, command, title string) (string, error) {
	query, err := argumentsQuery(title)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s?%s", scheme, command, query), nil
}

// BuildLoopback returns the http variant served by Listener on addr.
func BuildLoopback(addr, command, title string) (string, error) {
	query, err := argumentsQuery(title)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s/%s?%s", addr, command, query), nil
}

func argumentsQuery(title string) (string, error) {
	arguments, err := sjson.Set("", "title", title)
	if err != nil {
		return "", fmt.Errorf("deeplink: encode arguments: %w", err)
	}
	return url.Values{"arguments": {arguments}}.Encode(), nil
}

// Parse decodes a deep link produced by Build or BuildLoopback, possibly
// extended with an authorization result by the redirect service.
func Parse(raw string) (*Payload, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidLink)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: missing scheme", ErrInvalidLink)
	}

	payload, err := ParseQuery(u.Query())
	if err != nil {
		return nil, err
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		payload.Command = strings.Trim(u.Path, "/")
	} else {
		payload.Command = u.Host
	}
	return payload, nil
}

// ParseQuery decodes the arguments, context and plain parameters of a link query.
func ParseQuery(query url.Values) (*Payload, error) {
	payload := &Payload{
		DeviceID: strings.TrimSpace(query.Get("device_id")),
		Code:     strings.TrimSpace(query.Get("code")),
		Error:    strings.TrimSpace(query.Get("error")),
	}

	if arguments := query.Get("arguments"); arguments != "" {
		if !gjson.Valid(arguments) {
			return nil, fmt.Errorf("%w: arguments is not valid JSON", ErrInvalidLink)
		}
		payload.Title = gjson.Get(arguments, "title").String()
	}

	if launchContext := query.Get("context"); launchContext != "" {
		if !gjson.Valid(launchContext) {
			return nil, fmt.Errorf("%w: context is not valid JSON", ErrInvalidLink)
		}
		ctx := gjson.Parse(launchContext)
		if v := ctx.Get("device_id"); v.Exists() {
			payload.DeviceID = strings.TrimSpace(v.String())
		}
		if v := ctx.Get("code"); v.Exists() {
			payload.Code = strings.TrimSpace(v.String())
		}
	}

	if payload.Error == "" {
		payload.Error = strings.TrimSpace(query.Get("error_description"))
	}
	return payload, nil
}
