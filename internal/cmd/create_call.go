package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vkcalls/vkcall/internal/auth/vk"
	"github.com/vkcalls/vkcall/internal/browser"
	"github.com/vkcalls/vkcall/internal/calls"
	"github.com/vkcalls/vkcall/internal/clipboard"
	"github.com/vkcalls/vkcall/internal/config"
	"github.com/vkcalls/vkcall/internal/deeplink"
	"github.com/vkcalls/vkcall/internal/notify"
	"github.com/vkcalls/vkcall/internal/store"
	"github.com/vkcalls/vkcall/internal/util"
	"github.com/vkcalls/vkcall/internal/vkapi"
)

// CreateCallOptions contains the command-line options of one invocation.
type CreateCallOptions struct {
	// Title is the meeting title; empty selects the configured default.
	Title string
	// Resume is a deep link carrying the title and the authorization result.
	Resume string
	// DeviceID and Code resume an authorization without a deep link.
	DeviceID string
	Code     string
	// NoBrowser prints the authorization URL instead of opening it.
	NoBrowser bool
	// Wait keeps the process alive until the browser authorization returns.
	Wait bool
	// Print writes the join link to Out.
	Print bool
	// Out receives user-facing output. Defaults to os.Stdout.
	Out io.Writer
}

// Notifier extends calls.Notifier with fatal error display.
type Notifier interface {
	calls.Notifier
	Error(message string)
}

// deps are the collaborators of a run; tests replace them.
type deps struct {
	tokens     *store.TokenStore
	httpClient *http.Client
	opener     vk.URLOpener
	clipboard  calls.Clipboard
	notifier   Notifier
}

// DoCreateCall runs the create-call command and returns the process exit code.
// It is the single place where fatal errors are logged and shown.
func DoCreateCall(ctx context.Context, cfg *config.Config, options *CreateCallOptions) int {
	if options == nil {
		options = &CreateCallOptions{}
	}
	notifier := notify.NewTerminal(os.Stderr)

	d, cleanup, err := openDeps(ctx, cfg, options, notifier)
	if err != nil {
		return fail(notifier, err)
	}
	defer cleanup()

	if _, err = createCall(ctx, cfg, options, d); err != nil {
		return fail(notifier, err)
	}
	return 0
}

// DoLogout removes every stored credential.
func DoLogout(ctx context.Context, cfg *config.Config) int {
	notifier := notify.NewTerminal(os.Stderr)
	tokens, err := openTokenStore(ctx, cfg)
	if err != nil {
		return fail(notifier, err)
	}
	defer func() {
		_ = tokens.Close()
	}()

	if err = tokens.ClearAll(ctx); err != nil {
		return fail(notifier, err)
	}
	notifier.HUD("Signed out of VK")
	return 0
}

func fail(notifier Notifier, err error) int {
	log.WithError(err).Error("create call failed")
	notifier.Error(vk.GetUserFriendlyMessage(err))
	return 1
}

func openTokenStore(ctx context.Context, cfg *config.Config) (*store.TokenStore, error) {
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		return nil, err
	}
	backend, err := store.Open(ctx, cfg.Store, authDir)
	if err != nil {
		return nil, err
	}
	return store.NewTokenStore(backend), nil
}

func openDeps(ctx context.Context, cfg *config.Config, options *CreateCallOptions, notifier Notifier) (*deps, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	tokens, err := openTokenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var clip calls.Clipboard = clipboard.System{}
	if options.Print && !clipboard.Available() {
		log.Warn("no clipboard utility found, the join link is only printed")
		clip = &clipboard.Memory{}
	}

	d := &deps{
		tokens:     tokens,
		httpClient: util.NewHTTPClient(cfg),
		opener:     browser.NewOpener(options.NoBrowser || cfg.NoBrowser),
		clipboard:  clip,
		notifier:   notifier,
	}
	return d, func() { _ = tokens.Close() }, nil
}

// launchFromOptions turns -resume, -device-id/-code and the title into a Launch.
func launchFromOptions(options *CreateCallOptions) (calls.Launch, error) {
	launch := calls.Launch{Title: options.Title}

	if strings.TrimSpace(options.Resume) != "" {
		payload, err := deeplink.Parse(options.Resume)
		if err != nil {
			return launch, err
		}
		if payload.Error != "" {
			return launch, fmt.Errorf("authorization failed: %s", payload.Error)
		}
		if launch.Title == "" {
			launch.Title = payload.Title
		}
		if payload.HasLaunchContext() {
			launch.Context = &vk.LaunchContext{DeviceID: payload.DeviceID, Code: payload.Code}
		}
	}

	deviceID := strings.TrimSpace(options.DeviceID)
	code := strings.TrimSpace(options.Code)
	switch {
	case deviceID != "" && code != "":
		launch.Context = &vk.LaunchContext{DeviceID: deviceID, Code: code}
	case deviceID != "" || code != "":
		return launch, fmt.Errorf("-device-id and -code must be given together")
	}
	return launch, nil
}

func createCall(ctx context.Context, cfg *config.Config, options *CreateCallOptions, d *deps) (*calls.Outcome, error) {
	launch, err := launchFromOptions(options)
	if err != nil {
		return nil, err
	}

	out := options.Out
	if out == nil {
		out = os.Stdout
	}

	var listener *deeplink.Listener
	var deepLink vk.DeepLinkBuilder
	if options.Wait {
		listener = deeplink.NewListener(cfg.DeepLink.Command)
		addr := cfg.DeepLink.Listen
		if addr == "" {
			addr = "127.0.0.1:0"
		}
		if err = listener.Start(addr); err != nil {
			return nil, err
		}
		defer func() {
			if errStop := listener.Stop(context.Background()); errStop != nil {
				log.Debugf("deeplink listener stop: %v", errStop)
			}
		}()
		loopback := listener.Addr()
		deepLink = func(title string) (string, error) {
			return deeplink.BuildLoopback(loopback, cfg.DeepLink.Command, title)
		}
	}

	orchestrator := &calls.Orchestrator{
		Auth:   vk.NewAuth(cfg, d.httpClient, d.tokens, d.opener, deepLink),
		Tokens: d.tokens,
		NewClient: func(accessToken string) calls.CallCreator {
			return vkapi.NewClient(cfg, d.httpClient, accessToken)
		},
		Clipboard:    d.clipboard,
		Notifier:     d.notifier,
		DefaultTitle: cfg.DefaultTitle,
	}

	outcome, err := orchestrator.Run(ctx, launch)
	if err != nil {
		return nil, err
	}

	if outcome.Kind == calls.OutcomeAuthorizationPending && listener != nil {
		timeout := time.Duration(cfg.DeepLink.WaitTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = time.Duration(config.DefaultWaitTimeoutSeconds) * time.Second
		}
		d.notifier.Toast("Authorization", "Waiting for the browser to finish")
		payload, errWait := listener.WaitForLaunch(ctx, timeout)
		if errWait != nil {
			return nil, vk.NewAuthenticationError(vk.ErrAuthorizationTimeout, errWait)
		}
		resumed := calls.Launch{
			Title:   payload.Title,
			Context: &vk.LaunchContext{DeviceID: payload.DeviceID, Code: payload.Code},
		}
		if resumed.Title == "" {
			resumed.Title = launch.Title
		}
		if outcome, err = orchestrator.Run(ctx, resumed); err != nil {
			return nil, err
		}
	}

	switch outcome.Kind {
	case calls.OutcomeCreated:
		if options.Print {
			_, _ = fmt.Fprintln(out, outcome.Call.JoinLink)
		}
	case calls.OutcomeAuthorizationPending:
		_, _ = fmt.Fprintln(out, "Finish the authorization in your browser; vkcall continues when the redirect reopens it.")
	}
	return outcome, nil
}
