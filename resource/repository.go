package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kasuganosora/novelsim/cache"
	"go.uber.org/zap"
)

// Repository supplies stories and their per-story tables.
type Repository interface {
	StoryByID(ctx context.Context, id string) (*Story, error)
	Events(ctx context.Context, storyID string) ([]GameEvent, error)
	Enemies(ctx context.Context, storyID string) ([]Enemy, error)
}

// StorySummary is one entry of the story catalogue.
type StorySummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author,omitempty"`
}

var docExtensions = []string{".json", ".yaml", ".yml"}

// AssetRepository resolves stories from an AssetLoader using the layout
//
//	index.json            catalogue ([]StorySummary)
//	stories/<id>.json     story
//	events/<id>.json      []GameEvent for story <id>
//	enemies/<id>.json     []Enemy for story <id>
//
// Each document may also be .yaml or .yml. Raw documents are kept in the
// cache for TTL so repeated session starts skip the loader.
type AssetRepository struct {
	loader AssetLoader
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewAssetRepository creates an AssetRepository. c may be nil.
func NewAssetRepository(loader AssetLoader, c cache.Cache, ttl time.Duration, logger *zap.Logger) *AssetRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetRepository{loader: loader, cache: c, ttl: ttl, logger: logger}
}

// fetch returns the first document that exists for base + one of the
// supported extensions.
func (r *AssetRepository) fetch(ctx context.Context, base string) (name, content string, err error) {
	for _, ext := range docExtensions {
		name = base + ext
		content, err = r.load(ctx, name)
		if err == nil {
			return name, content, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, base)
}

func (r *AssetRepository) load(ctx context.Context, name string) (string, error) {
	key := "asset:" + name
	if r.cache != nil {
		v, err := r.cache.Get(ctx, key)
		if err == nil {
			return v, nil
		}
		if !cache.IsMiss(err) {
			r.logger.Warn("asset cache read failed", zap.String("asset", name), zap.Error(err))
		}
	}
	content, err := r.loader.Load(ctx, name)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, content, r.ttl); err != nil {
			r.logger.Warn("asset cache write failed", zap.String("asset", name), zap.Error(err))
		}
	}
	return content, nil
}

func (r *AssetRepository) StoryByID(ctx context.Context, id string) (*Story, error) {
	name, content, err := r.fetch(ctx, "stories/"+id)
	if err != nil {
		return nil, err
	}
	s, err := DecodeStory(name, content)
	if err != nil {
		return nil, err
	}
	if s.ID == "" {
		s.ID = id
	}
	return s, nil
}

// Events returns the story's events; a story without an events document has none.
func (r *AssetRepository) Events(ctx context.Context, storyID string) ([]GameEvent, error) {
	var events []GameEvent
	if err := r.optionalList(ctx, "events/"+storyID, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Enemies returns the story's enemy table; missing means empty.
func (r *AssetRepository) Enemies(ctx context.Context, storyID string) ([]Enemy, error) {
	var enemies []Enemy
	if err := r.optionalList(ctx, "enemies/"+storyID, &enemies); err != nil {
		return nil, err
	}
	return enemies, nil
}

func (r *AssetRepository) optionalList(ctx context.Context, base string, out any) error {
	name, content, err := r.fetch(ctx, base)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return decodeDocument(name, content, out)
}

// Catalogue lists the stories declared in the index document.
func (r *AssetRepository) Catalogue(ctx context.Context) ([]StorySummary, error) {
	var list []StorySummary
	if err := r.optionalList(ctx, "index", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Invalidate drops cached documents for a story so the next load rereads them.
func (r *AssetRepository) Invalidate(ctx context.Context, storyID string) error {
	if r.cache == nil {
		return nil
	}
	var keys []string
	for _, base := range []string{"stories/", "events/", "enemies/"} {
		for _, ext := range docExtensions {
			keys = append(keys, "asset:"+base+storyID+ext)
		}
	}
	return r.cache.Del(ctx, keys...)
}
