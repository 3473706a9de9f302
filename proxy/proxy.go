// Package proxy implements a MITM proxy that filters content with a
// contentfilter engine.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AdguardTeam/gomitmproxy"
	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/internal/metrics"
)

// Session property keys.
const (
	sessionPropKey    = "session"
	requestBlockedKey = "blocked"
)

// defaultInjectionHost is the host serving the content scripts.
const defaultInjectionHost = "injections.contentfilter.invalid"

// Engines provides the current filtering engines.  [*contentfilter.Manager]
// and [*contentfilter.Snapshot] implement it.
type Engines interface {
	// Engine returns the current network filtering engine.
	Engine() (e *contentfilter.Engine)

	// Cosmetic returns the current cosmetic filtering.
	Cosmetic() (c *contentfilter.CosmeticFiltering)
}

// Config contains the MITM proxy configuration.
type Config struct {
	// Logger is used to log the filtering decisions.  It must not be nil.
	Logger *slog.Logger

	// Engines provides the filtering engines.  It must not be nil.
	Engines Engines

	// Metrics are updated on every filtered request.  If nil, unregistered
	// collectors are used.
	Metrics *metrics.Metrics

	// ProxyConfig is the configuration of the MITM proxy.  Its handlers are
	// overwritten.
	ProxyConfig gomitmproxy.Config

	// InjectionHost is used for injecting the cosmetic scripts into web pages.
	//
	// Here's how it works:
	//   - The proxy injects <script src="//INJECTION_HOST/content-script.js?url=PAGE_URL&ts=TS">
	//     into HTML documents.
	//   - The proxy handles requests to this host itself and serves the script
	//     removing the hidden elements of PAGE_URL.
	InjectionHost string

	// CompressContentScript makes the proxy serve the content script
	// compressed.  This is useful for the case when the proxy is on a public
	// server, as it saves some data.
	CompressContentScript bool
}

// String implements the [fmt.Stringer] interface for *Config.
func (c *Config) String() (s string) {
	sb := &strings.Builder{}
	if c.ProxyConfig.ListenAddr != nil {
		_, _ = fmt.Fprintf(sb, "listen addr: %s\n", c.ProxyConfig.ListenAddr)
	}

	_, _ = fmt.Fprintf(sb, "mitm status: %t\n", c.ProxyConfig.MITMConfig != nil)
	_, _ = fmt.Fprintf(sb, "run as https proxy: %t\n", c.ProxyConfig.TLSConfig != nil)

	if c.ProxyConfig.Username != "" {
		_, _ = fmt.Fprintf(sb, "proxy auth: %s\n", c.ProxyConfig.Username)
	}

	if c.ProxyConfig.APIHost != "" {
		_, _ = fmt.Fprintf(sb, "api host: %s\n", c.ProxyConfig.APIHost)
	}

	_, _ = fmt.Fprintf(sb, "injection host: %s\n", c.InjectionHost)

	return sb.String()
}

// Server contains the current server state.
type Server struct {
	logger  *slog.Logger
	engines Engines
	metrics *metrics.Metrics

	// proxyServer is the MITM proxy server instance.
	proxyServer *gomitmproxy.Proxy

	// createdAt is the time when the server was created.
	createdAt time.Time

	injectionHost         string
	compressContentScript bool
}

// NewServer creates a new instance of the MITM server.
func NewServer(c *Config) (s *Server, err error) {
	if c.Engines == nil {
		return nil, fmt.Errorf("engines: %w", errNoEngines)
	}

	s = &Server{
		logger:                c.Logger,
		engines:               c.Engines,
		metrics:               c.Metrics,
		createdAt:             time.Now(),
		injectionHost:         c.InjectionHost,
		compressContentScript: c.CompressContentScript,
	}

	if s.injectionHost == "" {
		s.injectionHost = defaultInjectionHost
	}

	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	s.logger.Info("initializing proxy server", "config", c)

	proxyConf := c.ProxyConfig
	proxyConf.OnRequest = s.onRequest
	proxyConf.OnResponse = s.onResponse
	proxyConf.OnConnect = s.onConnect
	s.proxyServer = gomitmproxy.NewProxy(proxyConf)

	return s, nil
}

// Start starts the proxy server.
func (s *Server) Start(_ context.Context) (err error) {
	return s.proxyServer.Start()
}

// Shutdown stops the proxy server.
func (s *Server) Shutdown(_ context.Context) (err error) {
	s.proxyServer.Close()

	return nil
}
