package main

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/mitm"
	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/internal/config"
	"github.com/abpkit/contentfilter/internal/metrics"
	"github.com/abpkit/contentfilter/proxy"
	"github.com/appleboy/graceful"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// certValidity is the validity period of the generated MITM certificates.
const certValidity = 7 * 24 * time.Hour

// errNoCA is returned when the proxy is started without the CA files.
const errNoCA errors.Error = "ca-cert and ca-key are required"

// runProxy starts the manager, the filtering proxy, and the metrics endpoint,
// and waits for a termination signal.
func runProxy(
	ctx context.Context,
	logger *slog.Logger,
	conf *config.Config,
	m *contentfilter.Manager,
	mtrc *metrics.Metrics,
	options *Options,
) (err error) {
	proxyConf, err := newProxyConfig(conf, options)
	if err != nil {
		return err
	}

	err = m.Rebuild(ctx)
	if err != nil {
		// Serve with the user rules only until the lists are compiled.
		logger.Warn("initial rebuild", slogutil.KeyError, err)
	}

	srv, err := proxy.NewServer(&proxy.Config{
		Logger:                logger.With(slogutil.KeyPrefix, "proxy"),
		Engines:               m,
		Metrics:               mtrc,
		ProxyConfig:           proxyConf,
		CompressContentScript: true,
	})
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	gm := graceful.NewManager(graceful.WithContext(ctx))

	gm.AddRunningJob(func(ctx context.Context) (err error) {
		m.Start(ctx)
		updateLists(ctx, logger, conf, m)

		return nil
	})

	err = srv.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting proxy: %w", err)
	}

	gm.AddShutdownJob(func() (err error) {
		return srv.Shutdown(context.Background())
	})

	if addr := conf.Metrics.ListenAddr; addr != "" {
		metricsSrv := newMetricsServer(addr, mtrc)

		gm.AddRunningJob(func(_ context.Context) (err error) {
			logger.Info("serving metrics", "addr", addr)

			err = metricsSrv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}

			return err
		})

		gm.AddShutdownJob(func() (err error) {
			return metricsSrv.Shutdown(context.Background())
		})
	}

	logger.Info("proxy started", "addr", conf.Proxy.ListenAddr)

	<-gm.Done()

	return nil
}

// newMetricsServer returns the HTTP server exposing the metrics on addr.
func newMetricsServer(addr string, mtrc *metrics.Metrics) (srv *http.Server) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mtrc.Register(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newProxyConfig returns the MITM proxy configuration.
func newProxyConfig(conf *config.Config, options *Options) (c gomitmproxy.Config, err error) {
	addr, err := net.ResolveTCPAddr("tcp", conf.Proxy.ListenAddr)
	if err != nil {
		return c, fmt.Errorf("proxy listen addr: %w", err)
	}

	mitmConfig, err := newMITMConfig(options)
	if err != nil {
		return c, err
	}

	return gomitmproxy.Config{
		ListenAddr: addr,
		Username:   options.ProxyUser,
		Password:   options.ProxyPassword,
		APIHost:    "contentfilter",
		MITMConfig: mitmConfig,
	}, nil
}

// newMITMConfig loads the CA and returns the configuration generating the
// certificates of the filtered hosts.
func newMITMConfig(options *Options) (c *mitm.Config, err error) {
	if options.TLSCertPath == "" || options.TLSKeyPath == "" {
		return nil, errNoCA
	}

	tlsCert, err := tls.LoadX509KeyPair(options.TLSCertPath, options.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading root ca: %w", err)
	}

	privateKey, ok := tlsCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("ca key: %w: want rsa, got %T", errors.ErrBadEnumValue, tlsCert.PrivateKey)
	}

	x509c, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsing ca certificate: %w", err)
	}

	c, err = mitm.NewConfig(x509c, privateKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating mitm config: %w", err)
	}

	c.SetValidity(certValidity)
	c.SetOrganization("contentfilter")

	return c, nil
}
