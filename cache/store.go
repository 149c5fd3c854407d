// Package cache persists which Athena execution answered which query, so identical queries
// can reuse results instead of running again.
//
// Every failure in this package degrades to a cache miss: caching is an optimisation and
// must never stop a query from running.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kent-id/athenaq/clock"
	"github.com/kent-id/athenaq/logging"
	"github.com/kent-id/athenaq/metrics"
	"github.com/rs/zerolog"
)

const cacheFileExtension = ".json"

// UnavailableError reports that the cache storage could not be used. It is returned by
// Store for logging and never surfaced to engine callers.
type UnavailableError struct {
	Op   string
	Path string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// FileStore keeps one JSON record per query key in a local directory.
// Concurrent writers of the same key are not coordinated; the last rename wins.
type FileStore struct {
	directory string
	checker   ExistenceChecker
	clock     clock.Clock
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock overrides the time source used for record timestamps and freshness.
func WithClock(c clock.Clock) Option {
	return func(s *FileStore) {
		s.clock = c
	}
}

// NewFileStore creates a store rooted at directory. The directory is created on first write.
func NewFileStore(directory string, checker ExistenceChecker, opts ...Option) *FileStore {
	s := &FileStore{
		directory: directory,
		checker:   checker,
		clock:     clock.System(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Directory returns the backing directory.
func (s *FileStore) Directory() string {
	return s.directory
}

func (s *FileStore) keyToFilePath(key string) string {
	return filepath.Join(s.directory, key+cacheFileExtension)
}

// Lookup returns the record for key only if it exists, parses, and validates.
func (s *FileStore) Lookup(ctx context.Context, key string) (*Record, bool) {
	if key == "" {
		return nil, false
	}
	filePath := s.keyToFilePath(key)
	log := logger().With().Str("query_key", key).Str("path", filePath).Logger()

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			metrics.CacheLookups.WithLabelValues(metrics.OutcomeMiss).Inc()
			log.Debug().Msg("cache miss")
			return nil, false
		}
		metrics.CacheLookups.WithLabelValues(metrics.OutcomeUnavailable).Inc()
		log.Warn().Err(err).Msg("failed to read cache file")
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		metrics.CacheLookups.WithLabelValues(metrics.OutcomeCorrupt).Inc()
		log.Warn().Err(err).Msg("failed to parse cache file")
		return nil, false
	}
	if !rec.complete() || rec.QueryKey != key {
		metrics.CacheLookups.WithLabelValues(metrics.OutcomeCorrupt).Inc()
		log.Warn().Msg("invalid cache entry: missing or mismatched fields")
		return nil, false
	}

	switch Validate(ctx, &rec, s.clock.Now(), s.checker) {
	case Stale:
		metrics.CacheLookups.WithLabelValues(metrics.OutcomeStale).Inc()
		log.Debug().Str("execution_id", rec.ExecutionID).Msg("cache entry is stale")
		return nil, false
	case Orphaned:
		metrics.CacheLookups.WithLabelValues(metrics.OutcomeOrphaned).Inc()
		log.Debug().Str("execution_id", rec.ExecutionID).Str("location", rec.ResultLocation).Msg("cached result no longer exists")
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues(metrics.OutcomeHit).Inc()
	log.Info().Str("execution_id", rec.ExecutionID).Msg("found valid cached execution")
	return &rec, true
}

// Store records executionID as the answer for key, replacing any previous record.
func (s *FileStore) Store(ctx context.Context, key, executionID, resultLocation string, ttlSeconds int) error {
	if key == "" {
		return &UnavailableError{Op: "write", Path: s.directory, Err: errors.New("cache key cannot be empty")}
	}
	if err := os.MkdirAll(s.directory, 0750); err != nil {
		return &UnavailableError{Op: "mkdir", Path: s.directory, Err: err}
	}

	rec := Record{
		QueryKey:       key,
		ExecutionID:    executionID,
		CreatedAt:      s.clock.Now().UTC().Truncate(time.Millisecond),
		ResultLocation: resultLocation,
		TTLSeconds:     ttlSeconds,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &UnavailableError{Op: "encode", Path: s.directory, Err: err}
	}

	filePath := s.keyToFilePath(key)
	tempPath := filepath.Join(s.directory, fmt.Sprintf(".%s.%s.tmp", key, uuid.NewString()))
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return &UnavailableError{Op: "write", Path: tempPath, Err: err}
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return &UnavailableError{Op: "rename", Path: filePath, Err: err}
	}

	logger().Debug().Str("query_key", key).Str("execution_id", executionID).Str("path", filePath).Msg("stored cache entry")
	return nil
}

func logger() *zerolog.Logger {
	l := logging.Logger().With().Str("module", "cache").Logger()
	return &l
}
