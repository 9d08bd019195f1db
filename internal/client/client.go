package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bundlesync/bundlesync/internal/bundlesdk"
	"github.com/bundlesync/bundlesync/internal/client/config"
	"github.com/bundlesync/bundlesync/internal/client/resolver"
	"github.com/bundlesync/bundlesync/internal/client/store"
	bsync "github.com/bundlesync/bundlesync/internal/client/sync"
	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/bundlesync/bundlesync/internal/utils"
	"golang.org/x/sync/singleflight"
)

const syncKey = "sync"

// Client owns the local stores of one installation and keeps the outer store in step with the server
type Client struct {
	config   *config.Config
	store    *store.LocalStore
	sdk      *bundlesdk.SDK
	engine   *bsync.Engine
	resolver *resolver.Resolver
	history  *bsync.History

	flight singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.New(cfg.InnerDir, cfg.OuterDir())
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	sdk, err := bundlesdk.New(&bundlesdk.Config{
		BaseURL:         cfg.ServerURL,
		Platform:        cfg.Platform,
		AppVersion:      cfg.AppVersion,
		VersionTimeout:  cfg.VersionTimeout,
		DownloadTimeout: cfg.DownloadTimeout,
		RetryCount:      cfg.RetryCount,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sdk: %w", err)
	}

	if err := utils.EnsureDir(cfg.MetaDir()); err != nil {
		return nil, fmt.Errorf("failed to create meta dir: %w", err)
	}
	history := bsync.NewHistory(cfg.HistoryPath())
	if err := history.Open(); err != nil {
		// rounds still run, they just aren't recorded
		slog.Warn("sync history unavailable", "path", cfg.HistoryPath(), "error", err)
		history = nil
	}

	engine, err := bsync.NewEngine(st, sdk, &bsync.Options{
		AppVersion:  cfg.AppVersion,
		FileTimeout: cfg.DownloadTimeout,
		History:     history,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sync engine: %w", err)
	}

	// the application may resolve before the first round finishes
	st.SetCatalog(localCatalog(st))

	res, err := resolver.New(st, cfg.Platform, resolver.DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config:   cfg,
		store:    st,
		sdk:      sdk,
		engine:   engine,
		resolver: res,
		history:  history,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Run performs the boot sync and then, when an interval is configured, re-syncs
// periodically. It blocks until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	slog.Info("bundlesync client start",
		"server", c.config.ServerURL,
		"platform", c.config.Platform,
		"inner", c.config.InnerDir,
		"outer", c.config.OuterDir(),
		"interval", c.config.SyncInterval,
	)

	if _, err := c.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
		// the application keeps booting from whatever is on disk
		slog.Error("boot sync failed", "error", err)
	}

	if c.config.SyncInterval > 0 {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()

			// using a timer and not a ticker to avoid queued ticks when
			// a round takes longer than the interval
			timer := time.NewTimer(c.config.SyncInterval)
			defer timer.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-timer.C:
					_, err := c.Sync(ctx)
					if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, bsync.ErrSyncAlreadyRunning) {
						slog.Error("periodic sync failed", "error", err)
					}
					timer.Reset(c.config.SyncInterval)
				}
			}
		}()
	}

	<-ctx.Done()
	c.wg.Wait()
	slog.Info("bundlesync client stop")
	return nil
}

// Sync runs one round. Concurrent callers share the round already in flight.
func (c *Client) Sync(ctx context.Context) (*bsync.Result, error) {
	v, err, _ := c.flight.Do(syncKey, func() (any, error) {
		return c.engine.Run(ctx)
	})
	res, _ := v.(*bsync.Result)
	return res, err
}

// SyncAsync starts a round bound to the client lifetime, or joins the one in flight
func (c *Client) SyncAsync() <-chan singleflight.Result {
	return c.flight.DoChan(syncKey, func() (any, error) {
		return c.engine.Run(c.ctx)
	})
}

// Subscribe registers a progress listener for every round of this client
func (c *Client) Subscribe(fn bsync.Listener) func() {
	return c.engine.Subscribe(fn)
}

func (c *Client) Resolve(id string) resolver.Location {
	return c.resolver.Resolve(id)
}

func (c *Client) Catalog() (resolver.Location, bool) {
	return c.resolver.Catalog()
}

func (c *Client) History(limit int) ([]*bsync.HistoryEntry, error) {
	if c.history == nil {
		return nil, bsync.ErrHistoryNotOpen
	}
	return c.history.Recent(limit)
}

func (c *Client) State() bsync.State {
	return c.engine.State()
}

func (c *Client) LastResult() *bsync.Result {
	return c.engine.LastResult()
}

// LocalTags are the committed tags of the inner and outer stores
func (c *Client) LocalTags() (inner, outer manifest.VersionTag) {
	return c.store.ReadVersionTag(store.Inner), c.store.ReadVersionTag(store.Outer)
}

func (c *Client) Platform() string {
	return c.config.Platform
}

func (c *Client) Config() *config.Config {
	return c.config
}

// Close cancels rounds started by SyncAsync and releases the history and HTTP connections
func (c *Client) Close() error {
	c.cancel()
	c.wg.Wait()

	// wait out a round that is still unwinding
	c.flight.Do(syncKey, func() (any, error) { return nil, nil })

	c.sdk.Close()
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			return err
		}
		c.history = nil
	}
	return nil
}

// localCatalog is the catalog of the committed outer manifest, else of the inner one
func localCatalog(st *store.LocalStore) string {
	for _, d := range []store.Domain{store.Outer, store.Inner} {
		if f, ok := st.ReadManifest(d).Catalog(); ok {
			return f.Name
		}
	}
	return ""
}
