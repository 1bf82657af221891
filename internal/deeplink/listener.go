package deeplink

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const successHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>vkcall</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em;">
<h2>Authorization complete</h2>
<p>You can close this window and return to the terminal.</p>
</body></html>`

// Listener receives the loopback variant of a deep link while vkcall waits
// for the browser authorization to finish.
type Listener struct {
	command  string
	server   *http.Server
	listener net.Listener
	results  chan *Payload
	errs     chan error

	mu      sync.Mutex
	running bool
}

// NewListener returns a listener serving GET /{command}.
func NewListener(command string) *Listener {
	return &Listener{
		command: command,
		results: make(chan *Payload, 1),
		errs:    make(chan error, 1),
	}
}

// Start binds addr and serves in the background. addr may use port 0.
func (l *Listener) Start(addr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return fmt.Errorf("deeplink: listener is already running")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("deeplink: listen on %s: %w", addr, err)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/"+l.command, l.handleLaunch)

	l.listener = ln
	l.server = &http.Server{
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	l.running = true

	go func() {
		if errServe := l.server.Serve(ln); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			l.sendError(fmt.Errorf("deeplink: listener failed: %w", errServe))
		}
	}()

	log.Debugf("deeplink: listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (l *Listener) Addr() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return ""
	}
	return l.listener.Addr().String()
}

// Stop shuts the server down.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running || l.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := l.server.Shutdown(shutdownCtx)
	l.running = false
	l.server = nil
	l.listener = nil
	return err
}

// WaitForLaunch blocks until a link carrying an authorization result arrives,
// the timeout elapses or ctx is cancelled.
func (l *Listener) WaitForLaunch(ctx context.Context, timeout time.Duration) (*Payload, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload := <-l.results:
		return payload, nil
	case err := <-l.errs:
		return nil, err
	case <-timer.C:
		return nil, fmt.Errorf("deeplink: timeout waiting for authorization after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) handleLaunch(c *gin.Context) {
	payload, err := ParseQuery(c.Request.URL.Query())
	if err != nil {
		log.Errorf("deeplink: %v", err)
		c.String(http.StatusBadRequest, "Invalid link")
		return
	}
	payload.Command = l.command

	if payload.Error != "" {
		log.Errorf("deeplink: authorization error received: %s", payload.Error)
		l.sendError(fmt.Errorf("deeplink: authorization failed: %s", payload.Error))
		c.String(http.StatusBadRequest, "Authorization failed: %s", payload.Error)
		return
	}
	if !payload.HasLaunchContext() {
		log.Warn("deeplink: link without device_id and code ignored")
		c.String(http.StatusBadRequest, "Missing device_id or code")
		return
	}

	select {
	case l.results <- payload:
	default:
		log.Warn("deeplink: result channel is full, launch dropped")
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(successHTML))
}

func (l *Listener) sendError(err error) {
	select {
	case l.errs <- err:
	default:
	}
}
