package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record ties a query key to the Athena execution that answered it.
type Record struct {
	// QueryKey is the SHA-256 of the exact SQL text the caller submitted.
	QueryKey string `json:"query_key"`

	// ExecutionID is the Athena QueryExecutionId whose results are reused on a hit.
	ExecutionID string `json:"execution_id"`

	CreatedAt time.Time `json:"created_at"`

	// ResultLocation is where Athena wrote the result object, e.g. s3://bucket/prefix/<id>.csv.
	ResultLocation string `json:"result_location"`

	TTLSeconds int `json:"ttl_seconds"`
}

// KeyFor derives the cache key from the exact SQL text. No normalisation is applied:
// queries differing only in whitespace or comments get different keys.
func KeyFor(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

func (r *Record) complete() bool {
	return r.QueryKey != "" && r.ExecutionID != "" && r.ResultLocation != "" && !r.CreatedAt.IsZero()
}

// Age returns how old the record is at now.
func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// Validity is the verdict of Validate.
type Validity int

const (
	Valid Validity = iota
	Stale
	Orphaned
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "valid"
	case Stale:
		return "stale"
	default:
		return "orphaned"
	}
}

// ExistenceChecker probes whether a stored result object still exists upstream.
type ExistenceChecker interface {
	Exists(ctx context.Context, location string) (bool, error)
}

// CheckerFunc adapts a function to ExistenceChecker.
type CheckerFunc func(ctx context.Context, location string) (bool, error)

func (f CheckerFunc) Exists(ctx context.Context, location string) (bool, error) {
	return f(ctx, location)
}

// Validate decides whether rec may be reused at now. Freshness is checked first since it
// needs no remote call. A failed existence probe counts as Orphaned.
func Validate(ctx context.Context, rec *Record, now time.Time, checker ExistenceChecker) Validity {
	if rec.Age(now) >= time.Duration(rec.TTLSeconds)*time.Second {
		return Stale
	}
	if checker == nil {
		return Valid
	}

	exists, err := checker.Exists(ctx, rec.ResultLocation)
	if err != nil {
		logger().Warn().Str("location", rec.ResultLocation).Err(err).Msg("could not verify cached result, discarding")
		return Orphaned
	}
	if !exists {
		return Orphaned
	}
	return Valid
}
