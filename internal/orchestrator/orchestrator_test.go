package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/pictomap/internal/marker"
	mock_pictogram "github.com/at-ishikawa/pictomap/internal/mocks/pictogram"
	mock_poi "github.com/at-ishikawa/pictomap/internal/mocks/poi"
	"github.com/at-ishikawa/pictomap/internal/pictogram"
	"github.com/at-ishikawa/pictomap/internal/poi"
	"github.com/at-ishikawa/pictomap/internal/sequence"
	"github.com/at-ishikawa/pictomap/internal/surface"
)

var vienna = orb.Bound{
	Min: orb.Point{16.36, 48.20},
	Max: orb.Point{16.38, 48.21},
}

func place(id string, lng, lat float64) poi.PointOfInterest {
	return poi.PointOfInterest{ID: id, Name: "Place " + id, Type: "cafe", Longitude: lng, Latitude: lat}
}

func pictogramFor(p poi.PointOfInterest) *pictogram.Pictogram {
	return &pictogram.Pictogram{ID: "picto-" + p.ID, DisplayText: p.Name}
}

func markerIDs(markers []*marker.Marker) []string {
	ids := make([]string, len(markers))
	for i, m := range markers {
		ids[i] = m.POI.ID
	}
	return ids
}

// inputOrder keeps markers as built, which exposes the resolve order.
type inputOrder struct{}

func (inputOrder) Order(markers []*marker.Marker, _ marker.Projector) []*marker.Marker {
	return markers
}

func TestOrchestrator_Update(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)
	headless := surface.NewHeadless(vienna, 800, 600)

	// South east first, north west last, so sorting visibly reorders them.
	pois := []poi.PointOfInterest{
		place("south-east", 16.379, 48.201),
		place("middle", 16.37, 48.205),
		place("north-west", 16.361, 48.209),
	}
	query := poi.QueryOptions{Types: []string{"amenity"}, Limit: 10}
	source.EXPECT().Fetch(gomock.Any(), vienna, query).Return(pois, nil)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p poi.PointOfInterest) (*pictogram.Pictogram, error) {
			return pictogramFor(p), nil
		}).Times(3)

	o := New(headless, source, resolver, sequence.NewGridSequencer(), WithQueryOptions(query))
	result, err := o.Update(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.Equal(t, uint64(1), result.Sequence)
	assert.NotEmpty(t, result.CycleID)
	assert.Equal(t, []string{"north-west", "middle", "south-east"}, markerIDs(result.Markers))
	assert.Equal(t, markerIDs(result.Markers), markerIDs(headless.Markers()))
	assert.Equal(t, markerIDs(result.Markers), markerIDs(o.Markers()))
	assert.Equal(t, "picto-middle", result.Markers[1].Pictogram.ID)
	assert.Equal(t, Idle, o.State())
}

func TestOrchestrator_Update_SkipsFailedResolutions(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)
	headless := surface.NewHeadless(vienna, 800, 600)

	pois := []poi.PointOfInterest{
		place("a", 16.361, 48.205),
		place("broken", 16.362, 48.205),
		place("unmatched", 16.363, 48.205),
		place("b", 16.364, 48.205),
		place("c", 16.365, 48.205),
	}
	source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(pois, nil)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p poi.PointOfInterest) (*pictogram.Pictogram, error) {
			switch p.ID {
			case "broken":
				return nil, errors.New("response error 500")
			case "unmatched":
				return nil, nil
			}
			return pictogramFor(p), nil
		}).Times(len(pois))

	o := New(headless, source, resolver, inputOrder{}, WithConcurrency(2))
	result, err := o.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, []string{"a", "b", "c"}, markerIDs(result.Markers))
	assert.Equal(t, []string{"a", "b", "c"}, markerIDs(headless.Markers()))
}

func TestOrchestrator_Update_ReplacesPreviousMarkers(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)
	headless := surface.NewHeadless(vienna, 800, 600)

	gomock.InOrder(
		source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]poi.PointOfInterest{place("old", 16.37, 48.205)}, nil),
		source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]poi.PointOfInterest{place("new", 16.37, 48.205)}, nil),
		source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]poi.PointOfInterest{}, nil),
	)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p poi.PointOfInterest) (*pictogram.Pictogram, error) {
			return pictogramFor(p), nil
		}).AnyTimes()

	o := New(headless, source, resolver, sequence.NewGridSequencer())
	_, err := o.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, markerIDs(headless.Markers()))

	_, err = o.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, markerIDs(headless.Markers()))

	result, err := o.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Empty(t, headless.Markers())
}

func TestOrchestrator_Update_FetchError(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)
	headless := surface.NewHeadless(vienna, 800, 600)

	source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, context.Canceled)

	o := New(headless, source, resolver, sequence.NewGridSequencer())
	result, err := o.Update(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, result.Applied)
	assert.Equal(t, Idle, o.State())
}

func TestOrchestrator_Update_CancelledWhileResolving(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)
	headless := surface.NewHeadless(vienna, 800, 600)

	source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]poi.PointOfInterest{place("a", 16.37, 48.205)}, nil).Times(2)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p poi.PointOfInterest) (*pictogram.Pictogram, error) {
			return pictogramFor(p), nil
		})

	var applied []uint64
	o := New(headless, source, resolver, sequence.NewGridSequencer(),
		WithOnApplied(func(r Result) {
			applied = append(applied, r.Sequence)
		}))
	first, err := o.Update(context.Background())
	require.NoError(t, err)
	require.True(t, first.Applied)
	require.Len(t, headless.Markers(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ poi.PointOfInterest) (*pictogram.Pictogram, error) {
			cancel()
			return nil, ctx.Err()
		})

	second, err := o.Update(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, second.Applied)
	assert.Equal(t, []string{"a"}, markerIDs(headless.Markers()))
	assert.Equal(t, []string{"a"}, markerIDs(o.Markers()))
	assert.Equal(t, []uint64{1}, applied)
	assert.Equal(t, Idle, o.State())
}

func TestOrchestrator_Update_DiscardsStaleCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)
	headless := surface.NewHeadless(vienna, 800, 600)

	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	gomock.InOrder(
		source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(context.Context, orb.Bound, poi.QueryOptions) ([]poi.PointOfInterest, error) {
				close(slowStarted)
				<-releaseSlow
				return []poi.PointOfInterest{place("slow", 16.37, 48.205)}, nil
			}),
		source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]poi.PointOfInterest{place("fast", 16.37, 48.205)}, nil),
	)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p poi.PointOfInterest) (*pictogram.Pictogram, error) {
			return pictogramFor(p), nil
		}).Times(2)

	var applied []uint64
	o := New(headless, source, resolver, sequence.NewGridSequencer(), WithOnApplied(func(r Result) {
		applied = append(applied, r.Sequence)
	}))

	type outcome struct {
		result Result
		err    error
	}
	slowDone := make(chan outcome, 1)
	go func() {
		result, err := o.Update(context.Background())
		slowDone <- outcome{result: result, err: err}
	}()
	<-slowStarted

	fast, err := o.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, fast.Applied)
	assert.Equal(t, uint64(2), fast.Sequence)

	close(releaseSlow)
	slow := <-slowDone
	require.NoError(t, slow.err)
	assert.Equal(t, uint64(1), slow.result.Sequence)
	assert.False(t, slow.result.Applied)
	assert.Equal(t, []string{"slow"}, markerIDs(slow.result.Markers))

	assert.Equal(t, []string{"fast"}, markerIDs(headless.Markers()))
	assert.Equal(t, []uint64{2}, applied)
}

func TestOrchestrator_Start_DebouncesViewportChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)
	headless := surface.NewHeadless(vienna, 800, 600)
	clock := newFakeClock()
	start := clock.Now()

	moved := orb.Bound{Min: orb.Point{16.37, 48.20}, Max: orb.Point{16.39, 48.21}}
	var fetchedAt []time.Duration
	source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, bounds orb.Bound, _ poi.QueryOptions) ([]poi.PointOfInterest, error) {
			fetchedAt = append(fetchedAt, clock.Now().Sub(start))
			return []poi.PointOfInterest{place("p", bounds.Center().X(), bounds.Center().Y())}, nil
		}).Times(2)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p poi.PointOfInterest) (*pictogram.Pictogram, error) {
			return pictogramFor(p), nil
		}).Times(2)

	o := New(headless, source, resolver, sequence.NewGridSequencer(),
		WithClock(clock),
		WithDebounce(300*time.Millisecond))

	initial, err := o.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, initial.Applied)
	_, err = o.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	headless.SetBounds(moved)
	clock.Advance(100 * time.Millisecond)
	headless.SetBounds(moved)
	clock.Advance(50 * time.Millisecond)
	headless.SetBounds(moved)

	clock.Advance(299 * time.Millisecond)
	assert.Equal(t, []time.Duration{0}, fetchedAt)
	clock.Advance(time.Millisecond)
	o.Wait()
	assert.Equal(t, []time.Duration{0, 450 * time.Millisecond}, fetchedAt)
	require.Len(t, headless.Markers(), 1)
	assert.InDelta(t, 16.38, headless.Markers()[0].POI.Longitude, 1e-9)

	// No more cycles once stopped, including the one pending at Stop.
	headless.SetBounds(vienna)
	o.Stop()
	headless.SetBounds(moved)
	clock.Advance(time.Second)
	assert.Len(t, fetchedAt, 2)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "fetching", Fetching.String())
	assert.Equal(t, "resolving", Resolving.String())
	assert.Equal(t, "sorting", Sorting.String())
	assert.Equal(t, "reconciling", Reconciling.String())
	assert.Equal(t, "state(9)", State(9).String())
}
