package contentfilter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/abpkit/contentfilter/filterlist"
	"github.com/abpkit/contentfilter/internal/lookup"
	"github.com/abpkit/contentfilter/internal/metrics"
	"github.com/abpkit/contentfilter/userrules"
	"golang.org/x/sync/errgroup"
)

// ErrSuperseded is returned by [Manager.Rebuild] if a newer rebuild started
// before it finished.
const ErrSuperseded errors.Error = "rebuild superseded"

// ManagerConfig is the configuration structure for a [Manager].
type ManagerConfig struct {
	// Logger is used to log rebuilds and list compilation.  It must not be
	// nil.
	Logger *slog.Logger

	// Store keeps the compiled lists.  It must not be nil.
	Store *filterlist.Store

	// Decoder parses the lists passed to [Manager.Compile].  If nil, a
	// decoder using Logger is created.
	Decoder *filterlist.Decoder

	// Repository stores the user rules.  If nil, the rules are only kept in
	// memory.
	Repository userrules.Repository

	// Metrics are updated on rebuilds and compilations.  If nil, unregistered
	// collectors are used.
	Metrics *metrics.Metrics

	// ListIDs are the ids of the enabled lists in priority order.
	ListIDs []string
}

// Manager owns the current [Snapshot] and replaces it when lists or user rules
// change.  Readers never block.
type Manager struct {
	logger   *slog.Logger
	store    *filterlist.Store
	decoder  *filterlist.Decoder
	repo     userrules.Repository
	metrics  *metrics.Metrics
	snapshot *atomic.Pointer[Snapshot]
	requests chan struct{}

	// mu protects the fields below and the snapshot swaps.
	mu     *sync.Mutex
	cancel context.CancelFunc
	user   *userrules.Container
	ids    []string
	gen    uint64

	// userMu serializes user rule changes.
	userMu *sync.Mutex
}

// NewManager returns a new *Manager with an empty snapshot.  Call
// [Manager.Rebuild] or [Manager.Start] to load the lists.
func NewManager(c *ManagerConfig) (m *Manager) {
	m = &Manager{
		logger:   c.Logger,
		store:    c.Store,
		decoder:  c.Decoder,
		repo:     c.Repository,
		metrics:  c.Metrics,
		snapshot: &atomic.Pointer[Snapshot]{},
		requests: make(chan struct{}, 1),
		mu:       &sync.Mutex{},
		user:     userrules.NewContainer(nil),
		ids:      slices.Clone(c.ListIDs),
		userMu:   &sync.Mutex{},
	}

	if m.decoder == nil {
		m.decoder = filterlist.NewDecoder(&filterlist.DecoderConfig{
			Logger: c.Logger,
		})
	}

	if m.repo == nil {
		m.repo = userrules.NewMemoryRepository()
	}

	if m.metrics == nil {
		m.metrics = metrics.New()
	}

	m.snapshot.Store(NewSnapshot(&SnapshotConfig{
		User: m.user,
	}))

	return m
}

// Snapshot returns the current snapshot.
func (m *Manager) Snapshot() (s *Snapshot) {
	return m.snapshot.Load()
}

// Engine returns the network filtering engine of the current snapshot.
func (m *Manager) Engine() (e *Engine) {
	return m.snapshot.Load().Engine()
}

// Cosmetic returns the cosmetic filtering of the current snapshot.
func (m *Manager) Cosmetic() (c *CosmeticFiltering) {
	return m.snapshot.Load().Cosmetic()
}

// SetLists changes the enabled lists.  The change takes effect on the next
// rebuild.
func (m *Manager) SetLists(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ids = slices.Clone(ids)
}

// Compile decodes the list read from r and stores it under id.  moved is not
// nil if the list announces a new location, in which case the caller should
// download it from there.  The change takes effect on the next rebuild.
func (m *Manager) Compile(ctx context.Context, id string, r io.Reader) (moved *filterlist.Moved, err error) {
	defer func() {
		status := metrics.StatusSuccess
		if err != nil {
			status = metrics.StatusError
		}

		m.metrics.ListsCompiledTotal.WithLabelValues(status).Inc()
	}()

	res, err := m.decoder.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding list %q: %w", id, err)
	}

	m.metrics.RuleErrorsTotal.Add(float64(len(res.Errors)))
	m.metrics.UnsupportedRulesTotal.Add(float64(res.Unsupported))

	err = m.store.Write(id, res)
	if err != nil {
		return nil, fmt.Errorf("storing list %q: %w", id, err)
	}

	m.logger.InfoContext(
		ctx,
		"compiled list",
		"id", id,
		"title", res.Metadata.Title,
		"lines", res.Lines,
		"rules", res.Rules,
		"filters", res.Filters(),
		"elements", len(res.Elements),
		"errors", len(res.Errors),
		"unsupported", res.Unsupported,
	)

	return res.Moved, nil
}

// Rebuild loads the enabled lists and the user rules into a new snapshot and
// makes it current.  It cancels any rebuild in progress.  If the rebuild fails
// or another one starts before it finishes, the current snapshot is kept.
func (m *Manager) Rebuild(ctx context.Context) (err error) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.gen++
	gen := m.gen
	ids := slices.Clone(m.ids)
	m.mu.Unlock()

	defer cancel()

	start := time.Now()
	snap, err := m.build(ctx, ids)

	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		m.metrics.RebuildsTotal.WithLabelValues(metrics.StatusSuperseded).Inc()

		return ErrSuperseded
	}

	m.cancel = nil
	if err != nil {
		m.metrics.RebuildsTotal.WithLabelValues(metrics.StatusError).Inc()

		return fmt.Errorf("rebuilding: %w", err)
	}

	m.snapshot.Store(snap.withUser(m.user))

	elapsed := time.Since(start)
	m.metrics.RebuildsTotal.WithLabelValues(metrics.StatusSuccess).Inc()
	m.metrics.RebuildDurationSeconds.Set(elapsed.Seconds())
	for class, n := range snap.Counts {
		m.metrics.Filters.WithLabelValues(string(class)).Set(float64(n))
	}

	m.logger.InfoContext(ctx, "rebuilt engine", "lists", len(ids), "elapsed", elapsed)

	return nil
}

// build loads the lists with the given ids into a new snapshot.  The
// containers are filled in parallel.
func (m *Manager) build(ctx context.Context, ids []string) (snap *Snapshot, err error) {
	tables := make(map[filterlist.Class]lookup.Table, len(filterlist.NetworkClasses))
	for _, class := range filterlist.NetworkClasses {
		tables[class] = lookup.NewFilterContainer()
	}

	elements := lookup.NewElementContainer()

	g, gctx := errgroup.WithContext(ctx)
	for class, t := range tables {
		g.Go(func() (loadErr error) {
			_, loadErr = m.store.Load(gctx, class, ids, t)
			if loadErr != nil {
				return fmt.Errorf("loading %s: %w", class, loadErr)
			}

			return nil
		})
	}

	g.Go(func() (loadErr error) {
		_, loadErr = m.store.LoadElements(gctx, ids, elements)
		if loadErr != nil {
			return fmt.Errorf("loading elements: %w", loadErr)
		}

		return nil
	})

	err = g.Wait()
	if err != nil {
		// Don't wrap the error, since it's informative enough as is.
		return nil, err
	}

	err = m.refreshUser(ctx)
	if err != nil {
		return nil, err
	}

	return NewSnapshot(&SnapshotConfig{
		Tables:   tables,
		Elements: elements,
		Lists:    ids,
	}), nil
}

// refreshUser reloads the user container from the repository without
// changing the current snapshot.
func (m *Manager) refreshUser(ctx context.Context) (err error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	rs, err := m.repo.Rules(ctx)
	if err != nil {
		return fmt.Errorf("reading user rules: %w", err)
	}

	c := userrules.NewContainer(rs)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = c
	m.metrics.UserRules.Set(float64(c.Len()))

	return nil
}

// Start runs the worker serving [Manager.RequestRebuild] until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	go m.serve(ctx)
}

// serve rebuilds the snapshot on every request until ctx is done.
func (m *Manager) serve(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.requests:
			err := m.Rebuild(ctx)
			switch {
			case err == nil:
				// Go on.
			case errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
				m.logger.DebugContext(ctx, "rebuild interrupted", slogutil.KeyError, err)
			default:
				m.logger.ErrorContext(ctx, "rebuild failed", slogutil.KeyError, err)
			}
		}
	}
}

// RequestRebuild asks the worker started with [Manager.Start] to rebuild the
// snapshot.  Requests arriving while one is pending are merged.
func (m *Manager) RequestRebuild() {
	select {
	case m.requests <- struct{}{}:
	default:
	}
}

// AddUserRules stores rs and makes them effective immediately.
func (m *Manager) AddUserRules(ctx context.Context, rs []userrules.Rule) (err error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	err = m.repo.AddRules(ctx, rs)
	if err != nil {
		return fmt.Errorf("adding user rules: %w", err)
	}

	return m.reloadUser(ctx)
}

// RemoveUserRule removes r from the stored rules and makes the change
// effective immediately.
func (m *Manager) RemoveUserRule(ctx context.Context, r userrules.Rule) (err error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	err = m.repo.RemoveRule(ctx, r)
	if err != nil {
		return fmt.Errorf("removing user rule: %w", err)
	}

	return m.reloadUser(ctx)
}

// reloadUser swaps in a snapshot with the stored user rules.  m.userMu must be
// locked.
func (m *Manager) reloadUser(ctx context.Context) (err error) {
	rs, err := m.repo.Rules(ctx)
	if err != nil {
		return fmt.Errorf("reading user rules: %w", err)
	}

	c := userrules.NewContainer(rs)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = c
	m.snapshot.Store(m.snapshot.Load().withUser(c))
	m.metrics.UserRules.Set(float64(c.Len()))

	return nil
}
