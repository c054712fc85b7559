// Package cache stores completed result sets under their normalized request
// URL for a fixed time.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ibeckermayer/xscrape/internal/types"
)

var tracer = otel.Tracer("xscrape/cache")

// entry is what is stored in badger. An entry is never rewritten; a newer
// result for the same key replaces it wholesale.
type entry struct {
	Value     types.ResultSet `json:"value"`
	ExpiresAt int64           `json:"expires_at"`
}

// Cache is safe for concurrent use; badger serializes conflicting writes.
type Cache struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens a badger database in dir, or an in-memory one when dir is empty.
func Open(dir string, log zerolog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// SetClock replaces the clock used to judge expiry.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key normalizes a request URL so that requests differing only in query
// parameter order, host case, default port or fragment share an entry.
func Key(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse cache key %q: %w", rawURL, err)
	}
	return purell.NormalizeURL(u,
		purell.FlagsSafe|
			purell.FlagsUsuallySafeNonGreedy|
			purell.FlagRemoveFragment|
			purell.FlagSortQuery,
	), nil
}

// Get returns the cached result for key. Expired entries are misses.
func (c *Cache) Get(ctx context.Context, key string) (types.ResultSet, bool, error) {
	_, span := tracer.Start(ctx, "cache.Get")
	defer span.End()
	span.SetAttributes(attribute.String("cache_key", key))

	var e entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		span.AddEvent("miss")
		return types.ResultSet{}, false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read cache entry")
		return types.ResultSet{}, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if c.now().UnixNano() >= e.ExpiresAt {
		span.AddEvent("expired", trace.WithAttributes(attribute.Int64("expires_at", e.ExpiresAt)))
		return types.ResultSet{}, false, nil
	}

	span.AddEvent("hit", trace.WithAttributes(attribute.Int("records", len(e.Value.Records))))
	return e.Value, true, nil
}

// Set stores rs under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, rs types.ResultSet, ttl time.Duration) error {
	_, span := tracer.Start(ctx, "cache.Set")
	defer span.End()
	span.SetAttributes(attribute.String("cache_key", key))

	b, err := json.Marshal(entry{Value: rs, ExpiresAt: c.now().Add(ttl).UnixNano()})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to serialize result set")
		return fmt.Errorf("failed to serialize result set: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), b).WithTTL(ttl))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write cache entry")
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Compact reclaims value log space left behind by expired entries.
func (c *Cache) Compact() error {
	for {
		err := c.db.RunValueLogGC(0.5)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return err
		}
	}
}

// badgerLogger routes badger's logging through zerolog.
type badgerLogger struct {
	log zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warn().Msgf(f, v...) }
func (l badgerLogger) Infof(f string, v ...interface{})    { l.log.Debug().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{})   { l.log.Debug().Msgf(f, v...) }
