// Package app wires configuration into a ready store.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/petlog/internal/cache"
	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/config"
	"github.com/roach88/petlog/internal/journal"
	"github.com/roach88/petlog/internal/reconcile"
	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/schema"
	"github.com/roach88/petlog/internal/sheet"
	"github.com/roach88/petlog/internal/workbook"
)

// App holds the long-lived objects of one session.
type App struct {
	Config     *config.Config
	Registry   *schema.Registry
	Store      *records.Store
	Reconciler *reconcile.Reconciler
	// Journal is nil when journaling is disabled.
	Journal *journal.Journal
	Logger  *slog.Logger

	client *sheet.Client
	cache  *cache.Cache[records.Snapshot]
	clock  cache.Clock
}

type options struct {
	dialer  sheet.Dialer
	clock   cache.Clock
	sleeper sheet.Sleeper
	mode    reconcile.Mode
}

// Option adjusts how New builds an App.
type Option func(*options)

// WithDialer replaces the backend chosen by the config.
func WithDialer(d sheet.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithClock sets the clock used by the cache and for "today".
func WithClock(c cache.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSleeper replaces the retry backoff wait.
func WithSleeper(s sheet.Sleeper) Option {
	return func(o *options) { o.sleeper = s }
}

// WithMode overrides the configured reconcile mode.
func WithMode(m reconcile.Mode) Option {
	return func(o *options) { o.mode = m }
}

// New builds an App from cfg. The backend is dialed lazily on first use.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	o := options{clock: cache.SystemClock}
	for _, opt := range opts {
		opt(&o)
	}

	registry, err := schema.LoadDir(cfg.SchemasDir)
	if err != nil {
		return nil, fmt.Errorf("load schemas: %w", err)
	}

	dial := o.dialer
	if dial == nil {
		dial, err = Dialer(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	clientOpts := []sheet.Option{
		sheet.WithRetryPolicy(sheet.RetryPolicy{
			MaxAttempts: cfg.Retry.Attempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		}),
		sheet.WithLogger(logger),
	}
	if o.sleeper != nil {
		clientOpts = append(clientOpts, sheet.WithSleeper(o.sleeper))
	}
	client := sheet.NewClient(sheet.NewConnection(dial), clientOpts...)

	a := &App{
		Config:   cfg,
		Registry: registry,
		Logger:   logger,
		client:   client,
		cache:    cache.New[records.Snapshot](cfg.Cache.TTL, o.clock),
		clock:    o.clock,
	}

	storeOpts := []records.Option{
		records.WithRegistry(registry),
		records.WithCodec(coerce.NewCodec(cfg.Tokens)),
		records.WithCache(a.cache),
		records.WithLogger(logger),
	}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		a.Journal = j
		storeOpts = append(storeOpts, records.WithJournal(j))
	}
	a.Store = records.New(client, cfg.Resource, storeOpts...)

	mode := o.mode
	if mode == "" {
		if mode, err = reconcile.ParseMode(cfg.Reconcile.Mode); err != nil {
			a.Close()
			return nil, err
		}
	}
	recOpts := []reconcile.Option{reconcile.WithMode(mode), reconcile.WithLogger(logger)}
	if a.Journal != nil {
		recOpts = append(recOpts, reconcile.WithOperationIDs(a.Journal.NewOperationID))
	}
	a.Reconciler = reconcile.New(a.Store, recOpts...)

	logger.Debug("app ready",
		"resource", cfg.Resource,
		"backend", cfg.Backend,
		"worksheets", registry.Len(),
		"journal", cfg.Journal.Path,
	)
	return a, nil
}

// Dialer returns the backend dialer selected by cfg.Backend.
func Dialer(cfg *config.Config, logger *slog.Logger) (sheet.Dialer, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return workbook.FileDialer(cfg.File.Dir, logger), nil
	case config.BackendS3:
		return workbook.S3Dialer(workbook.S3Options{
			Bucket:  cfg.S3.Bucket,
			Key:     cfg.S3.Key,
			Prefix:  cfg.S3.Prefix,
			Region:  cfg.S3.Region,
			Profile: cfg.S3.Profile,
		}, logger), nil
	case config.BackendMemory:
		return sheet.MemoryDialer(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// Close releases the journal.
func (a *App) Close() error {
	return a.Journal.Close()
}

// Now returns the session clock's time.
func (a *App) Now() time.Time {
	return a.clock.Now()
}

// Init creates every declared worksheet that is missing and returns the
// names it created.
func (a *App) Init(ctx context.Context) ([]string, error) {
	created := []string{}
	for _, ws := range a.Registry.Names() {
		ok, err := a.Store.Ensure(ctx, ws)
		if err != nil {
			return created, fmt.Errorf("ensure %s: %w", ws, err)
		}
		if ok {
			created = append(created, ws)
		}
	}
	return created, nil
}

// Check verifies backend credentials and lists the worksheets.
func (a *App) Check(ctx context.Context) ([]string, error) {
	if err := a.client.Check(ctx, a.Config.Resource); err != nil {
		return nil, err
	}
	names, err := a.client.Worksheets(ctx, a.Config.Resource)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// CacheStats returns the session's read cache hit and miss counts.
func (a *App) CacheStats() (hits, misses int) {
	return a.cache.Stats()
}
