// Package overpass fetches points of interest from an Overpass API instance.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"resty.dev/v3"

	"github.com/at-ishikawa/pictomap/internal/poi"
	"github.com/at-ishikawa/pictomap/internal/retrypolicy"
)

const (
	DefaultAPIURL      = "https://overpass-api.de/api/interpreter"
	DefaultLimit       = 25
	DefaultMaxLimit    = 100
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = time.Second
	DefaultTimeout     = 25 * time.Second
	defaultUserAgent   = "pictomap"
	queryParameterName = "data"
)

var (
	// https://wiki.openstreetmap.org/wiki/Key:shop
	// https://wiki.openstreetmap.org/wiki/Key:leisure
	DefaultTypes = []string{"shop", "leisure"}
	// https://wiki.openstreetmap.org/wiki/Elements
	DefaultOSMTypes = []string{"node"}
)

// Config configures a Source. Zero values fall back to the package defaults,
// except for the two booleans which are taken as given; see DefaultConfig.
// MaxLimit caps QueryOptions.Limit, which may come straight from a request.
type Config struct {
	APIURL          string
	DefaultTypes    []string
	OSMTypes        []string
	DefaultLimit    int
	MaxLimit        int
	MaxRetries      uint
	RetryDelay      time.Duration
	Timeout         time.Duration
	DeriveNames     bool
	FilterOutNoName bool
}

func DefaultConfig() Config {
	return Config{
		APIURL:          DefaultAPIURL,
		DefaultTypes:    slices.Clone(DefaultTypes),
		OSMTypes:        slices.Clone(DefaultOSMTypes),
		DefaultLimit:    DefaultLimit,
		MaxLimit:        DefaultMaxLimit,
		MaxRetries:      DefaultMaxRetries,
		RetryDelay:      DefaultRetryDelay,
		Timeout:         DefaultTimeout,
		DeriveNames:     true,
		FilterOutNoName: true,
	}
}

// Source implements poi.Source on top of the Overpass QL interpreter endpoint.
type Source struct {
	httpClient *resty.Client
	config     Config
	normalizer normalizer
}

var _ poi.Source = (*Source)(nil)

func NewSource(config Config) *Source {
	defaults := DefaultConfig()
	if config.APIURL == "" {
		config.APIURL = defaults.APIURL
	}
	if config.DefaultTypes == nil {
		config.DefaultTypes = defaults.DefaultTypes
	}
	if len(config.OSMTypes) == 0 {
		config.OSMTypes = defaults.OSMTypes
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = defaults.DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = defaults.MaxLimit
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	config.DefaultTypes = slices.Clone(config.DefaultTypes)
	config.OSMTypes = slices.Clone(config.OSMTypes)

	client := resty.New()
	client.SetTimeout(config.Timeout)
	client.SetHeader("User-Agent", defaultUserAgent)

	return &Source{
		httpClient: client,
		config:     config,
		normalizer: normalizer{
			deriveNames:     config.DeriveNames,
			filterOutNoName: config.FilterOutNoName,
		},
	}
}

func (s *Source) Close() error {
	return s.httpClient.Close()
}

// Fetch implements poi.Source. Backend failures that survive the retries are
// logged and reported as an empty result; only a cancelled context is an error.
func (s *Source) Fetch(ctx context.Context, bounds orb.Bound, opts poi.QueryOptions) ([]poi.PointOfInterest, error) {
	if opts.MatchesNothing() {
		return []poi.PointOfInterest{}, nil
	}

	types := opts.Types
	if types == nil {
		types = s.config.DefaultTypes
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.config.DefaultLimit
	}
	limit = min(limit, s.config.MaxLimit)
	query := buildQuery(bounds, types, s.config.OSMTypes, limit, int(s.config.Timeout.Seconds()))

	policy := retrypolicy.Policy{
		MaxRetries: s.config.MaxRetries,
		Delay:      s.config.RetryDelay,
	}
	elements, err := retrypolicy.Execute(ctx, policy, func(ctx context.Context) ([]element, error) {
		return s.interpret(ctx, query)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("overpass fetch > %w", ctxErr)
		}
		slog.Default().Error("Error fetching POI data from Overpass API",
			"error", err,
			"bbox", bbox(bounds),
			"types", types)
		return []poi.PointOfInterest{}, nil
	}
	return s.normalizer.normalize(elements), nil
}

func (s *Source) interpret(ctx context.Context, query string) ([]element, error) {
	res, err := s.httpClient.R().
		SetContext(ctx).
		SetQueryParam(queryParameterName, query).
		Get(s.config.APIURL)
	if err != nil {
		return nil, fmt.Errorf("httpClient.Get > %w", err)
	}
	if res.IsError() {
		return nil, retrypolicy.NewStatusError(res.StatusCode(), res.Status(), res.String())
	}

	var body response
	if err := json.Unmarshal([]byte(res.String()), &body); err != nil {
		return nil, fmt.Errorf("json.Unmarshal > %w", err)
	}
	return body.Elements, nil
}
