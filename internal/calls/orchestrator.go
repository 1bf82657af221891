// Package calls drives the creation of one VK Calls meeting: it makes sure
// a usable access token exists, calls calls.start, renews an expired token
// once and restarts authorization when VK rejects the token outright.
package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/vkcalls/vkcall/internal/auth/vk"
	"github.com/vkcalls/vkcall/internal/config"
	"github.com/vkcalls/vkcall/internal/store"
	"github.com/vkcalls/vkcall/internal/vkapi"
)

var (
	// ErrUserNotFound is returned when tokens exist but no VK user id is stored.
	ErrUserNotFound = errors.New("user id not found")
	// ErrEmptyRenewedToken is returned when a renewal answered without an access token.
	ErrEmptyRenewedToken = errors.New("failed to refresh the access token")
	// ErrTokenStillExpired is returned when the retried call reports an expired token again.
	ErrTokenStillExpired = errors.New("access token expired again after renewal")
)

// Authorizer runs the VK ID grants.
type Authorizer interface {
	Authorize(ctx context.Context, title string) (*vk.AuthorizationRequest, error)
	CreateTokens(ctx context.Context, launch vk.LaunchContext) (*vk.AuthResponse, error)
	RefreshTokens(ctx context.Context) (*store.TokenSet, error)
}

// CallCreator creates calls with one access token.
type CallCreator interface {
	CreateCall(ctx context.Context, userID, title string) (*vkapi.CallResult, error)
}

// ClientFactory returns a CallCreator bound to accessToken.
type ClientFactory func(accessToken string) CallCreator

// TokenStore is the part of the store the orchestrator reads and writes.
type TokenStore interface {
	Tokens(ctx context.Context) (*store.TokenSet, error)
	SetTokens(ctx context.Context, tokens store.TokenSet) error
	UserID(ctx context.Context) (string, error)
}

// Clipboard receives the join link.
type Clipboard interface {
	Copy(text string) error
}

// Notifier shows progress toasts and the final HUD message.
type Notifier interface {
	Toast(title, message string)
	HUD(message string)
}

// Launch is one invocation of the command.
type Launch struct {
	// Title is the raw title argument; empty selects the default.
	Title string
	// Context is set when the invocation resumes a browser authorization.
	Context *vk.LaunchContext
}

// OutcomeKind tells how a run ended without error.
type OutcomeKind int

const (
	// OutcomeCreated means the call exists and its link was copied.
	OutcomeCreated OutcomeKind = iota + 1
	// OutcomeAuthorizationPending means the browser authorization was started;
	// the command resumes when relaunched with the resulting launch context.
	OutcomeAuthorizationPending
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeAuthorizationPending:
		return "authorization_pending"
	default:
		return "unknown"
	}
}

// Outcome is the result of a successful run.
type Outcome struct {
	Kind  OutcomeKind
	Title string
	// Call is set for OutcomeCreated.
	Call *vkapi.CallResult
	// Authorization is set for OutcomeAuthorizationPending.
	Authorization *vk.AuthorizationRequest
}

// Orchestrator runs the call creation state machine.
type Orchestrator struct {
	Auth         Authorizer
	Tokens       TokenStore
	NewClient    ClientFactory
	Clipboard    Clipboard
	Notifier     Notifier
	DefaultTitle string
}

// ResolveTitle returns the trimmed title, or fallback (then "New call") when it is blank.
func ResolveTitle(title, fallback string) string {
	if trimmed := strings.TrimSpace(title); trimmed != "" {
		return trimmed
	}
	if trimmed := strings.TrimSpace(fallback); trimmed != "" {
		return trimmed
	}
	return config.DefaultTitle
}

// Run executes one invocation.
func (o *Orchestrator) Run(ctx context.Context, launch Launch) (*Outcome, error) {
	log.Debug("calls: checking authorization")
	if launch.Context != nil {
		if err := o.CompleteAuthorization(ctx, *launch.Context); err != nil {
			return nil, err
		}
	}

	tokens, err := o.Tokens.Tokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("calls: read tokens: %w", err)
	}
	if !tokens.HasAccessToken() {
		o.toast("Authorization", "Signing in to VK")
		return o.BeginAuthorization(ctx, launch.Title)
	}

	userID, err := o.Tokens.UserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("calls: read user id: %w", err)
	}
	if userID == "" {
		return nil, ErrUserNotFound
	}

	title := ResolveTitle(launch.Title, o.DefaultTitle)
	o.toast("Creating call", fmt.Sprintf("Creating a VK Calls meeting named %q", title))
	return o.createCall(ctx, tokens.AccessToken, userID, title, false)
}

// BeginAuthorization starts a new grant in the browser and reports the run as pending.
func (o *Orchestrator) BeginAuthorization(ctx context.Context, title string) (*Outcome, error) {
	log.Debug("calls: authorizing")
	req, err := o.Auth.Authorize(ctx, title)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeAuthorizationPending, Title: title, Authorization: req}, nil
}

// CompleteAuthorization exchanges the code of a resumed authorization for tokens.
func (o *Orchestrator) CompleteAuthorization(ctx context.Context, launch vk.LaunchContext) error {
	o.toast("Authorization", "Saving tokens")
	if _, err := o.Auth.CreateTokens(ctx, launch); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) createCall(ctx context.Context, accessToken, userID, title string, retried bool) (*Outcome, error) {
	log.Debugf("calls: calling (retry=%t)", retried)
	result, err := o.NewClient(accessToken).CreateCall(ctx, userID, title)
	if err == nil {
		return o.succeed(title, result)
	}

	apiErr, ok := vkapi.AsError(err)
	if !ok {
		return nil, err
	}

	switch {
	case apiErr.IsTokenExpired():
		if retried {
			return nil, fmt.Errorf("%w: %w", ErrTokenStillExpired, apiErr)
		}
		log.Info("access_token has expired.")
		return o.refreshAndRetry(ctx, userID, title)
	case apiErr.IsAuthorizationFailed():
		o.toast("Re-authorization required", "")
		return o.BeginAuthorization(ctx, title)
	default:
		return nil, err
	}
}

func (o *Orchestrator) refreshAndRetry(ctx context.Context, userID, title string) (*Outcome, error) {
	log.Debug("calls: refreshing")
	o.toast("Refreshing tokens", "")

	renewed, err := o.Auth.RefreshTokens(ctx)
	if err != nil {
		return nil, err
	}
	if err = o.Tokens.SetTokens(ctx, *renewed); err != nil {
		return nil, fmt.Errorf("calls: save renewed tokens: %w", err)
	}
	if !renewed.HasAccessToken() {
		return nil, ErrEmptyRenewedToken
	}
	return o.createCall(ctx, renewed.AccessToken, userID, title, true)
}

func (o *Orchestrator) succeed(title string, result *vkapi.CallResult) (*Outcome, error) {
	if o.Clipboard != nil {
		if err := o.Clipboard.Copy(result.JoinLink); err != nil {
			return nil, err
		}
	}
	if o.Notifier != nil {
		o.Notifier.HUD("Call link copied to clipboard")
	}
	log.WithField("endpoint", "calls.start").Infof("call %q created: %s", title, result.JoinLink)
	return &Outcome{Kind: OutcomeCreated, Title: title, Call: result}, nil
}

func (o *Orchestrator) toast(title, message string) {
	if o.Notifier != nil {
		o.Notifier.Toast(title, message)
	}
}
