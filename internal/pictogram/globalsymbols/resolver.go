// Package globalsymbols resolves pictograms with the Global Symbols label search.
// https://globalsymbols.com/api/docs
package globalsymbols

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/at-ishikawa/pictomap/internal/cache"
	"github.com/at-ishikawa/pictomap/internal/pictogram"
	"github.com/at-ishikawa/pictomap/internal/poi"
	"github.com/at-ishikawa/pictomap/internal/retrypolicy"
)

const (
	DefaultAPIURL    = "https://globalsymbols.com/api/v1/labels/search"
	DefaultSymbolSet = "arasaac"
	DefaultLanguage  = "eng"
	languageISO      = "639-3"
)

// Cache is the part of cache.Cache the resolver needs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, payload []byte) error
}

type Config struct {
	APIURL string
	// SymbolSet is e.g. "arasaac", "sclera" or "blissymbols".
	// https://globalsymbols.com/api/v1/symbolsets
	SymbolSet   string
	Language    string
	MaxRetries  uint
	RetryDelay  time.Duration
	TextOptions pictogram.TextOptions
}

func DefaultConfig() Config {
	return Config{
		APIURL:    DefaultAPIURL,
		SymbolSet: DefaultSymbolSet,
		Language:  DefaultLanguage,
		TextOptions: pictogram.TextOptions{
			IncludeTypeInDisplayText: false,
			IncludeTypeInAriaLabel:   true,
		},
	}
}

type label struct {
	ID          int    `json:"id"`
	Text        string `json:"text"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Picto       picto  `json:"picto"`
}

type picto struct {
	ID          int    `json:"id"`
	SymbolsetID int    `json:"symbolset_id"`
	ImageURL    string `json:"image_url"`
}

// Resolver implements pictogram.Resolver. Responses are cached per symbol set and
// type, including responses without any candidate.
type Resolver struct {
	httpClient *resty.Client
	config     Config
	cache      Cache
}

var _ pictogram.Resolver = (*Resolver)(nil)

func NewResolver(config Config, c Cache) *Resolver {
	defaults := DefaultConfig()
	if config.APIURL == "" {
		config.APIURL = defaults.APIURL
	}
	if config.SymbolSet == "" {
		config.SymbolSet = defaults.SymbolSet
	}
	if config.Language == "" {
		config.Language = defaults.Language
	}
	return &Resolver{
		httpClient: resty.New(),
		config:     config,
		cache:      c,
	}
}

func (r *Resolver) lookupAPI(ctx context.Context, term string) ([]byte, error) {
	res, err := r.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":               term,
			"language":            r.config.Language,
			"language_iso_format": languageISO,
			"limit":               "1",
			"symbolSet":           r.config.SymbolSet,
		}).
		Get(r.config.APIURL)
	if err != nil {
		return nil, fmt.Errorf("client.R.Get > %w", err)
	}
	if res.IsError() {
		return nil, retrypolicy.NewStatusError(res.StatusCode(), res.Status(), string(res.Body()))
	}
	return res.Body(), nil
}

// Resolve implements pictogram.Resolver.
func (r *Resolver) Resolve(ctx context.Context, p poi.PointOfInterest) (*pictogram.Pictogram, error) {
	// The query term is normalized like the cache key, so that every spelling
	// sharing an entry also sends the same query.
	term := strings.ToLower(strings.TrimSpace(p.Type))
	key := cache.Key(r.config.SymbolSet, term)

	if payload, ok := r.cache.Get(ctx, key); ok && len(payload) > 0 {
		picture, err := r.build(p, payload)
		if err == nil {
			return picture, nil
		}
		slog.Default().Warn("Ignoring unreadable cached pictogram response", "key", key, "error", err)
	}

	policy := retrypolicy.Policy{
		MaxRetries: r.config.MaxRetries,
		Delay:      r.config.RetryDelay,
	}
	payload, err := retrypolicy.Execute(ctx, policy, func(ctx context.Context) ([]byte, error) {
		return r.lookupAPI(ctx, term)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pictogram for %q > %w", p.Type, err)
	}

	picture, err := r.build(p, payload)
	if err != nil {
		return nil, fmt.Errorf("parse pictogram for %q > %w", p.Type, err)
	}
	if err := r.cache.Put(ctx, key, payload); err != nil {
		slog.Default().Warn("Failed to cache pictogram response", "key", key, "error", err)
	}
	return picture, nil
}

func (r *Resolver) build(p poi.PointOfInterest, payload []byte) (*pictogram.Pictogram, error) {
	var candidates []json.RawMessage
	if err := json.Unmarshal(payload, &candidates); err != nil {
		return nil, fmt.Errorf("json.Unmarshal > %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	var first label
	if err := json.Unmarshal(candidates[0], &first); err != nil {
		return nil, fmt.Errorf("json.Unmarshal(label) > %w", err)
	}
	var metadata map[string]any
	if err := json.Unmarshal(candidates[0], &metadata); err != nil {
		return nil, fmt.Errorf("json.Unmarshal(metadata) > %w", err)
	}

	displayText, ariaLabel := r.config.TextOptions.Texts(p)
	return &pictogram.Pictogram{
		ID:          strconv.Itoa(first.ID),
		URL:         first.Picto.ImageURL,
		DisplayText: displayText,
		Label:       ariaLabel,
		Description: first.Description,
		Metadata:    metadata,
	}, nil
}
