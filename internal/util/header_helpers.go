package util

import (
	"net/http"
	"time"

	"github.com/vkcalls/vkcall/internal/buildinfo"
	"github.com/vkcalls/vkcall/internal/config"
)

// AcceptEncoding lists the content codings DecodeResponseBody understands.
const AcceptEncoding = "gzip, deflate, br, zstd"

// NewHTTPClient builds the outbound client shared by the API and auth flows.
func NewHTTPClient(cfg *config.Config) *http.Client {
	client := &http.Client{}
	if cfg == nil {
		return client
	}
	if cfg.RequestTimeoutSeconds > 0 {
		client.Timeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	}
	return SetProxy(cfg.ProxyURL, client)
}

// ApplyDefaultHeaders sets the user agent and the accepted encodings.
// Setting Accept-Encoding explicitly disables Go's transparent gzip handling,
// so responses must go through DecodeResponseBody.
func ApplyDefaultHeaders(r *http.Request) {
	if r == nil {
		return
	}
	r.Header.Set("User-Agent", "vkcall/"+buildinfo.Version)
	r.Header.Set("Accept", "application/json")
	r.Header.Set("Accept-Encoding", AcceptEncoding)
}
