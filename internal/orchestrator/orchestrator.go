// Package orchestrator keeps the markers on a map surface in sync with its viewport.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/at-ishikawa/pictomap/internal/marker"
	"github.com/at-ishikawa/pictomap/internal/pictogram"
	"github.com/at-ishikawa/pictomap/internal/poi"
	"github.com/at-ishikawa/pictomap/internal/sequence"
	"github.com/at-ishikawa/pictomap/internal/surface"
)

const (
	DefaultDebounce    = 300 * time.Millisecond
	DefaultConcurrency = 8
)

var ErrAlreadyStarted = errors.New("orchestrator is already started")

type State int32

const (
	Idle State = iota
	Fetching
	Resolving
	Sorting
	Reconciling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Resolving:
		return "resolving"
	case Sorting:
		return "sorting"
	case Reconciling:
		return "reconciling"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Result describes one update cycle. Markers are in reading order; Applied is false
// when a newer cycle reached the surface first.
type Result struct {
	CycleID  string
	Sequence uint64
	Applied  bool
	Markers  []*marker.Marker
}

type Option func(*Orchestrator)

func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.debounce = d
		}
	}
}

func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func WithQueryOptions(query poi.QueryOptions) Option {
	return func(o *Orchestrator) {
		o.query = query
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithClock(clock Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithOnApplied registers a callback run after each cycle that reached the surface.
func WithOnApplied(fn func(Result)) Option {
	return func(o *Orchestrator) {
		o.onApplied = fn
	}
}

// Orchestrator runs fetch, resolve, sort and reconcile cycles against a surface.
// Cycles may overlap; a cycle only replaces the markers when no later cycle has
// been applied before it.
type Orchestrator struct {
	surface   surface.Surface
	source    poi.Source
	resolver  pictogram.Resolver
	sequencer sequence.Sequencer

	query       poi.QueryOptions
	debounce    time.Duration
	concurrency int
	logger      *slog.Logger
	clock       Clock
	onApplied   func(Result)

	dispatched atomic.Uint64
	state      atomic.Int32

	mu      sync.Mutex
	applied uint64
	current []*marker.Marker

	lifecycleMu sync.Mutex
	ctx         context.Context
	debouncer   *Debouncer
	unsubscribe func()
	running     sync.WaitGroup
}

func New(
	s surface.Surface,
	source poi.Source,
	resolver pictogram.Resolver,
	sequencer sequence.Sequencer,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		surface:     s,
		source:      source,
		resolver:    resolver,
		sequencer:   sequencer,
		debounce:    DefaultDebounce,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		clock:       systemClock{},
		ctx:         context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.debouncer = NewDebouncer(o.clock, o.debounce, o.runDebounced)
	return o
}

func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Markers returns the markers of the last applied cycle in reading order.
func (o *Orchestrator) Markers() []*marker.Marker {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.current)
}

// Start subscribes to viewport changes and runs the initial update. Debounced
// updates use ctx until Stop is called.
func (o *Orchestrator) Start(ctx context.Context) (Result, error) {
	o.lifecycleMu.Lock()
	if o.unsubscribe != nil {
		o.lifecycleMu.Unlock()
		return Result{}, ErrAlreadyStarted
	}
	o.ctx = ctx
	o.unsubscribe = o.surface.OnViewportChange(o.debouncer.Trigger)
	o.lifecycleMu.Unlock()

	return o.Update(ctx)
}

// Stop unsubscribes from the surface and cancels a pending debounced update.
// Cycles already running complete; use Wait to block on them.
func (o *Orchestrator) Stop() {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	o.debouncer.Cancel()
}

func (o *Orchestrator) Wait() {
	o.running.Wait()
}

// runDebounced registers with running under lifecycleMu, so a cycle either
// starts before Stop returns and is covered by Wait, or does not start at all.
func (o *Orchestrator) runDebounced() {
	o.lifecycleMu.Lock()
	if o.unsubscribe == nil {
		o.lifecycleMu.Unlock()
		return
	}
	ctx := o.ctx
	o.running.Add(1)
	o.lifecycleMu.Unlock()

	defer o.running.Done()
	if _, err := o.Update(ctx); err != nil {
		o.logger.Error("Debounced update failed", "error", err)
	}
}

// Update runs one cycle synchronously.
func (o *Orchestrator) Update(ctx context.Context) (Result, error) {
	startedAt := o.clock.Now()
	result := Result{
		CycleID:  uuid.NewString(),
		Sequence: o.dispatched.Add(1),
	}
	logger := o.logger.With("cycle", result.CycleID, "sequence", result.Sequence)
	defer o.setState(result.Sequence, Idle)

	o.setState(result.Sequence, Fetching)
	bounds := o.surface.Bounds()
	pois, err := o.source.Fetch(ctx, bounds, o.query)
	if err != nil {
		return result, fmt.Errorf("source.Fetch > %w", err)
	}
	logger.Debug("Fetched points of interest", "count", len(pois))

	o.setState(result.Sequence, Resolving)
	markers := o.resolveAll(ctx, logger, pois)
	// An aborted cycle must not replace the markers of a completed one.
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("resolve > %w", err)
	}

	o.setState(result.Sequence, Sorting)
	ordered := o.sequencer.Order(markers, o.surface)

	o.setState(result.Sequence, Reconciling)
	result.Markers = ordered
	result.Applied = o.reconcile(result.Sequence, ordered)
	if !result.Applied {
		logger.Info("Discarding stale update", "markers", len(ordered))
		return result, nil
	}

	logger.Info("Applied markers",
		"markers", len(ordered),
		"pois", len(pois),
		"elapsed", o.clock.Now().Sub(startedAt))
	if o.onApplied != nil {
		o.onApplied(result)
	}
	return result, nil
}

// resolveAll resolves every POI with bounded concurrency. A POI whose resolution
// fails or has no match gets no marker. The markers keep the input order.
func (o *Orchestrator) resolveAll(ctx context.Context, logger *slog.Logger, pois []poi.PointOfInterest) []*marker.Marker {
	pictures := make([]*pictogram.Pictogram, len(pois))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, p := range pois {
		g.Go(func() error {
			picture, err := o.resolver.Resolve(ctx, p)
			if err != nil {
				logger.Warn("Failed to resolve a pictogram",
					"poi", p.ID,
					"type", p.Type,
					"error", err)
				return nil
			}
			pictures[i] = picture
			return nil
		})
	}
	_ = g.Wait()

	markers := make([]*marker.Marker, 0, len(pois))
	for i, p := range pois {
		if pictures[i] == nil {
			continue
		}
		markers = append(markers, marker.New(p, *pictures[i]))
	}
	return markers
}

func (o *Orchestrator) reconcile(seq uint64, ordered []*marker.Marker) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq <= o.applied {
		return false
	}

	for _, m := range o.current {
		o.surface.Detach(m)
	}
	for _, m := range ordered {
		o.surface.Attach(m)
	}
	o.current = ordered
	o.applied = seq
	return true
}

// setState records the phase of the most recently dispatched cycle only.
func (o *Orchestrator) setState(seq uint64, state State) {
	if o.dispatched.Load() == seq {
		o.state.Store(int32(state))
	}
}
