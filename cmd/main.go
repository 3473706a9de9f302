// Command contentfilter compiles filter lists, checks requests against them,
// and runs the filtering proxy.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/internal/config"
	"github.com/abpkit/contentfilter/internal/metrics"
	"github.com/abpkit/contentfilter/userrules"
	goFlags "github.com/jessevdk/go-flags"
)

// Modes of the command.
const (
	modeCompile = "compile"
	modeCheck   = "check"
	modeProxy   = "proxy"
)

// Options are the command-line arguments.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string `short:"c" long:"config" description:"Path to the configuration file." default:"contentfilter.yaml"`

	// Mode is what the command does.
	Mode string `short:"m" long:"mode" description:"Mode of operation." choice:"compile" choice:"check" choice:"proxy" default:"proxy"`

	// Verbose enables the debug-level log.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`

	// URL is the request URL in the check mode.
	URL string `short:"u" long:"url" description:"Request URL to check."`

	// Page is the URL of the page initiating the request in the check mode.
	Page string `short:"p" long:"page" description:"URL of the page making the request to check."`

	// Type is the request type in the check mode.
	Type string `short:"t" long:"type" description:"Type of the request to check, like script or document." default:"other"`

	// TLSCertPath is the path to the .crt with the root certificate used by
	// the proxy.
	TLSCertPath string `long:"ca-cert" description:"Path to a file with the root certificate of the proxy."`

	// TLSKeyPath is the path to the file with the CA private key.
	TLSKeyPath string `long:"ca-key" description:"Path to a file with the CA private key of the proxy."`

	// ProxyUser is the proxy auth username.
	ProxyUser string `long:"username" description:"Proxy auth username. If specified, proxy authorization is required."`

	// ProxyPassword is the proxy auth password.
	ProxyPassword string `long:"password" description:"Proxy auth password. If specified, proxy authorization is required."`
}

func main() {
	var options Options
	parser := goFlags.NewParser(&options, goFlags.Default)

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *goFlags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	level := slog.LevelInfo
	if options.Verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	err = run(context.Background(), logger, &options)
	if err != nil {
		logger.Error("running", slogutil.KeyError, err)

		os.Exit(1)
	}
}

// run runs the command in the mode of options.
func run(ctx context.Context, logger *slog.Logger, options *Options) (err error) {
	conf, err := config.Load(options.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	mtrc := metrics.New()
	m, store, err := newManager(logger, conf, mtrc)
	if err != nil {
		return err
	}

	switch options.Mode {
	case modeCompile:
		return compileLists(ctx, logger, conf, m, store)
	case modeCheck:
		return check(ctx, m, options)
	case modeProxy:
		return runProxy(ctx, logger, conf, m, mtrc, options)
	default:
		return fmt.Errorf("mode: %w: %q", errors.ErrBadEnumValue, options.Mode)
	}
}

// newManager creates the store and the manager of the enabled lists.
func newManager(
	logger *slog.Logger,
	conf *config.Config,
	mtrc *metrics.Metrics,
) (m *contentfilter.Manager, store *filterlist.Store, err error) {
	store, err = filterlist.NewStore(&filterlist.StoreConfig{
		Logger: logger.With(slogutil.KeyPrefix, "store"),
		Dir:    conf.StorageDir,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating store: %w", err)
	}

	repo, err := userrules.NewFileRepository(conf.UserRulesFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening user rules: %w", err)
	}

	m = contentfilter.NewManager(&contentfilter.ManagerConfig{
		Logger:     logger.With(slogutil.KeyPrefix, "manager"),
		Store:      store,
		Repository: repo,
		Metrics:    mtrc,
		ListIDs:    conf.EnabledIDs(),
	})

	return m, store, nil
}
