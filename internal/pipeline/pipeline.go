// Package pipeline wires the POI source, pictogram resolver, cache and sequencer
// from the configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/at-ishikawa/pictomap/internal/cache"
	"github.com/at-ishikawa/pictomap/internal/config"
	"github.com/at-ishikawa/pictomap/internal/database"
	"github.com/at-ishikawa/pictomap/internal/orchestrator"
	"github.com/at-ishikawa/pictomap/internal/pictogram"
	"github.com/at-ishikawa/pictomap/internal/pictogram/globalsymbols"
	"github.com/at-ishikawa/pictomap/internal/poi"
	"github.com/at-ishikawa/pictomap/internal/poi/overpass"
	"github.com/at-ishikawa/pictomap/internal/sequence"
	"github.com/at-ishikawa/pictomap/internal/surface"
)

type Pipeline struct {
	Source    *overpass.Source
	Resolver  *globalsymbols.Resolver
	Cache     *cache.Cache
	Sequencer sequence.GridSequencer

	cfg     *config.Config
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	pictogramCache, closeCache, err := NewCache(ctx, cfg.Cache, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("NewCache > %w", err)
	}

	source := overpass.NewSource(OverpassConfig(cfg.Overpass))
	return &Pipeline{
		Source:    source,
		Resolver:  globalsymbols.NewResolver(GlobalSymbolsConfig(cfg.GlobalSymbols), pictogramCache),
		Cache:     pictogramCache,
		Sequencer: Sequencer(cfg.Sorting),
		cfg:       cfg,
		closers:   []func() error{source.Close, closeCache},
	}, nil
}

// NewCache opens the configured cache backend. The returned function releases
// the backing storage.
func NewCache(ctx context.Context, cfg config.CacheConfig, dbCfg config.DatabaseConfig) (*cache.Cache, func() error, error) {
	opts := []cache.Option{
		cache.WithExpiration(cfg.Expiration),
	}
	if cfg.KeyPrefix != "" {
		opts = append(opts, cache.WithKeyPrefix(cfg.KeyPrefix+":"))
	}
	noop := func() error { return nil }

	switch cfg.Backend {
	case "", "memory":
		return cache.NewTransient(opts...), noop, nil

	case "file":
		store, err := cache.NewFileStore(cfg.Directory)
		if err != nil {
			return nil, nil, fmt.Errorf("cache.NewFileStore > %w", err)
		}
		c, err := cache.NewPersistent(ctx, store, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("cache.NewPersistent > %w", err)
		}
		return c, noop, nil

	case "sql":
		db, err := database.Open(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("database.Open > %w", err)
		}
		store := cache.NewSQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, errors.Join(fmt.Errorf("store.Migrate > %w", err), db.Close())
		}
		c, err := cache.NewPersistent(ctx, store, opts...)
		if err != nil {
			return nil, nil, errors.Join(fmt.Errorf("cache.NewPersistent > %w", err), db.Close())
		}
		return c, db.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
}

func OverpassConfig(cfg config.OverpassConfig) overpass.Config {
	return overpass.Config{
		APIURL:          cfg.APIURL,
		DefaultTypes:    cfg.Types,
		OSMTypes:        cfg.OSMTypes,
		DefaultLimit:    cfg.Limit,
		MaxLimit:        cfg.MaxLimit,
		MaxRetries:      cfg.MaxRetries,
		RetryDelay:      cfg.RetryDelay,
		Timeout:         cfg.Timeout,
		DeriveNames:     cfg.DeriveNames,
		FilterOutNoName: cfg.FilterOutNoName,
	}
}

func GlobalSymbolsConfig(cfg config.GlobalSymbolsConfig) globalsymbols.Config {
	return globalsymbols.Config{
		APIURL:     cfg.APIURL,
		SymbolSet:  cfg.SymbolSet,
		Language:   cfg.Language,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		TextOptions: pictogram.TextOptions{
			IncludeTypeInDisplayText: cfg.IncludeTypeInDisplayText,
			IncludeTypeInAriaLabel:   cfg.IncludeTypeInAriaLabel,
		},
	}
}

func Sequencer(cfg config.SortingConfig) sequence.GridSequencer {
	sequencer := sequence.NewGridSequencer()
	if cfg.Horizontal != "" {
		sequencer.Horizontal = sequence.Horizontal(cfg.Horizontal)
	}
	if cfg.Vertical != "" {
		sequencer.Vertical = sequence.Vertical(cfg.Vertical)
	}
	if cfg.RowThreshold > 0 {
		sequencer.RowThreshold = cfg.RowThreshold
	}
	return sequencer
}

// NewSurface returns a headless surface of the configured size.
func (p *Pipeline) NewSurface(width, height float64) *surface.Headless {
	if width <= 0 {
		width = p.cfg.Map.Width
	}
	if height <= 0 {
		height = p.cfg.Map.Height
	}
	return surface.NewHeadless(emptyBound, width, height)
}

// NewOrchestrator builds an orchestrator over s. opts are applied after the
// configured ones.
func (p *Pipeline) NewOrchestrator(s surface.Surface, query poi.QueryOptions, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(s, p.Source, p.Resolver, p.Sequencer, append([]orchestrator.Option{
		orchestrator.WithDebounce(p.cfg.Map.Debounce),
		orchestrator.WithConcurrency(p.cfg.Map.Concurrency),
		orchestrator.WithQueryOptions(query),
	}, opts...)...)
}

func (p *Pipeline) Close() error {
	var errs []error
	for _, closer := range p.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
