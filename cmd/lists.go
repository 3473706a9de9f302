package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/abpkit/contentfilter"
	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/internal/config"
	"golang.org/x/sync/errgroup"
)

// maxRedirects is the maximum number of times a list may move.
const maxRedirects = 3

// maxParallelCompilations is the maximum number of lists downloaded and
// compiled at once.
const maxParallelCompilations = 4

// downloadTimeout is the timeout of a single list download.
const downloadTimeout = 1 * time.Minute

// compileLists compiles every enabled list of conf, removes the compiled files
// of the disabled ones, and rebuilds the filters.  A list that can't be
// compiled keeps its previous compiled files.
func compileLists(
	ctx context.Context,
	logger *slog.Logger,
	conf *config.Config,
	m *contentfilter.Manager,
	store *filterlist.Store,
) (err error) {
	errs := make([]error, len(conf.Lists)+1)

	g := &errgroup.Group{}
	g.SetLimit(maxParallelCompilations)
	for i, l := range conf.Lists {
		if !l.Enabled {
			err = store.Remove(l.ID)
			if err != nil {
				errs[i] = fmt.Errorf("removing list %q: %w", l.ID, err)
			}

			continue
		}

		g.Go(func() (_ error) {
			compileErr := compileList(ctx, logger, m, l)
			if compileErr != nil {
				logger.Error("compiling list", "id", l.ID, slogutil.KeyError, compileErr)
				errs[i] = fmt.Errorf("list %q: %w", l.ID, compileErr)
			}

			return nil
		})
	}

	_ = g.Wait()

	errs[len(conf.Lists)] = m.Rebuild(ctx)

	return errors.Join(errs...)
}

// compileList compiles the list from its path or URL, following the moved
// lists.
func compileList(ctx context.Context, logger *slog.Logger, m *contentfilter.Manager, l *config.List) (err error) {
	if l.Path != "" {
		return compileFile(ctx, m, l.ID, l.Path)
	}

	u := l.URL
	for range maxRedirects {
		var moved *filterlist.Moved
		moved, err = downloadAndCompile(ctx, m, l.ID, u)
		if err != nil || moved == nil {
			return err
		}

		logger.Info("list moved", "id", l.ID, "from", u, "to", moved.URL)
		u = moved.URL
	}

	return fmt.Errorf("too many redirects, last url %q", u)
}

// compileFile compiles the local list file.
func compileFile(ctx context.Context, m *contentfilter.Manager, id, path string) (err error) {
	// #nosec G304 -- The path comes from the configuration file.
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening list: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	_, err = m.Compile(ctx, id, f)

	return err
}

// downloadAndCompile downloads the list from u and compiles it.
func downloadAndCompile(
	ctx context.Context,
	m *contentfilter.Manager,
	id string,
	u string,
) (moved *filterlist.Moved, err error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, fmt.Errorf("downloading: bad status %d", resp.StatusCode)
	}

	return m.Compile(ctx, id, resp.Body)
}

// updateLists periodically compiles the lists and requests a rebuild until
// ctx is canceled.
func updateLists(
	ctx context.Context,
	logger *slog.Logger,
	conf *config.Config,
	m *contentfilter.Manager,
) {
	if conf.UpdateInterval == 0 {
		return
	}

	ticker := time.NewTicker(conf.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, l := range conf.Lists {
				if !l.Enabled {
					continue
				}

				err := compileList(ctx, logger, m, l)
				if err != nil {
					logger.Error("updating list", "id", l.ID, slogutil.KeyError, err)
				}
			}

			m.RequestRebuild()
		}
	}
}
