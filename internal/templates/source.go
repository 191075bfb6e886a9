package templates

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrTemplateNotFound is returned when a template does not exist for the
// requested language.
var ErrTemplateNotFound = errors.New("templates: template not found")

// namePattern restricts template names and languages to path-safe tokens.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Source loads raw template text by name and language.
type Source interface {
	Load(ctx context.Context, name, language string) (string, error)
}

// Config holds configuration for creating a Source.
type Config struct {
	Source   string // "local" or "s3"
	Dir      string
	S3Bucket string
	S3Prefix string
	S3Region string
	// S3Endpoint overrides the S3 endpoint (e.g. MinIO or LocalStack).
	S3Endpoint string
	CacheTTL   time.Duration
}

// NewSource creates a Source from cfg. S3 sources are wrapped in a
// CachedSource when CacheTTL is positive.
func NewSource(ctx context.Context, cfg Config, logger zerolog.Logger) (Source, error) {
	switch cfg.Source {
	case "s3":
		s3src, err := NewS3SourceFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.CacheTTL > 0 {
			return NewCachedSource(s3src, cfg.CacheTTL), nil
		}
		return s3src, nil
	case "local":
		return NewLocalSource(cfg.Dir), nil
	default:
		logger.Warn().
			Str("source", cfg.Source).
			Msg("unsupported or empty template source, defaulting to local")
		return NewLocalSource(cfg.Dir), nil
	}
}

func validateKey(name, language string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("templates: invalid template name %q", name)
	}
	if !namePattern.MatchString(language) {
		return fmt.Errorf("templates: invalid language %q", language)
	}
	return nil
}

// MapSource serves templates from memory, keyed by language then name.
type MapSource map[string]map[string]string

// Load implements Source.
func (m MapSource) Load(_ context.Context, name, language string) (string, error) {
	src, ok := m[language][name]
	if !ok {
		return "", ErrTemplateNotFound
	}
	return src, nil
}

type cacheEntry struct {
	src     string
	expires time.Time
}

// CachedSource memoizes successful loads of another Source for a fixed TTL.
// Misses and errors are not cached.
type CachedSource struct {
	next Source
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCachedSource wraps next with a TTL cache.
func NewCachedSource(next Source, ttl time.Duration) *CachedSource {
	return &CachedSource{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Load implements Source.
func (c *CachedSource) Load(ctx context.Context, name, language string) (string, error) {
	key := language + "/" + name

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return e.src, nil
	}

	src, err := c.next.Load(ctx, name, language)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{src: src, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return src, nil
}
