package athenaq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kent-id/athenaq/cache"
	"github.com/kent-id/athenaq/clock"
	"github.com/kent-id/athenaq/logging"
	"github.com/kent-id/athenaq/metrics"
	"github.com/kent-id/athenaq/retry"
)

const (
	defaultPollInterval  = 1 * time.Second
	defaultCacheTTL      = 3600
	defaultQueryToolName = "athenaq"
)

// QueryService is the remote, asynchronous query backend driven by the Engine.
type QueryService interface {
	// Submit starts sql and returns its execution id.
	Submit(ctx context.Context, sql string) (string, error)
	// Status reports the current state of an execution.
	Status(ctx context.Context, executionID string) (ExecutionStatus, error)
	// Fetch retrieves all rows of a SUCCEEDED execution.
	Fetch(ctx context.Context, executionID string) (*QueryResult, error)
	// ResultLocation is where the service stores the result object of an execution.
	ResultLocation(executionID string) string
}

// Canceler is implemented by services that can stop a running execution.
type Canceler interface {
	Cancel(ctx context.Context, executionID string) error
}

// ExecutionCache is the persistence the Engine consults before running a query.
// Implementations swallow their own failures; see cache.FileStore.
type ExecutionCache interface {
	Lookup(ctx context.Context, key string) (*cache.Record, bool)
	Store(ctx context.Context, key, executionID, resultLocation string, ttlSeconds int) error
}

// Request is one query to run.
type Request struct {
	SQL string

	// QueryName is added to the submitted query's comment prefix; it does not affect caching.
	QueryName string

	Caching bool
}

// Outcome is a query result together with how it was obtained.
type Outcome struct {
	Result      *QueryResult
	ExecutionID string
	FromCache   bool
}

// Engine drives queries through submit, poll and fetch, reusing cached executions where valid.
// It keeps no state between calls and is safe for concurrent use.
type Engine struct {
	service      QueryService
	cache        ExecutionCache
	cacheTTL     int
	retrier      *retry.Retrier
	clock        clock.Clock
	sleep        clock.Sleeper
	pollInterval time.Duration
	pollTimeout  time.Duration
	prefixTool   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache enables result reuse through c.
func WithCache(c ExecutionCache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithCacheTTL sets how long, in seconds, a stored execution stays reusable.
func WithCacheTTL(seconds int) Option {
	return func(e *Engine) { e.cacheTTL = seconds }
}

// WithRetrier sets the retry policy applied to every remote call.
func WithRetrier(r *retry.Retrier) Option {
	return func(e *Engine) { e.retrier = r }
}

// WithPollInterval sets the delay between status checks of a running query.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithPollTimeout bounds the total time spent polling one query. Zero means no bound.
func WithPollTimeout(d time.Duration) Option {
	return func(e *Engine) { e.pollTimeout = d }
}

// WithClock sets the time source used to measure polling.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithSleeper sets the primitive used for the poll interval.
func WithSleeper(s clock.Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// WithQueryPrefix makes the engine prepend "-- [tool] query_name=<name>" to submitted SQL.
// An empty tool name falls back to "athenaq".
func WithQueryPrefix(tool string) Option {
	return func(e *Engine) {
		if tool == "" {
			tool = defaultQueryToolName
		}
		e.prefixTool = tool
	}
}

// NewEngine creates an Engine on top of service.
func NewEngine(service QueryService, opts ...Option) *Engine {
	e := &Engine{
		service:      service,
		cacheTTL:     defaultCacheTTL,
		retrier:      retry.NewRetrier(retry.DefaultPolicy()),
		clock:        clock.System(),
		sleep:        clock.Sleep,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CachingEnabled reports whether a cache is configured.
func (e *Engine) CachingEnabled() bool {
	return e.cache != nil
}

// Execute runs sql and returns its result.
//
// Example:
//
//	result, err := engine.Execute(ctx, "select id, name from my_table", true)
func (e *Engine) Execute(ctx context.Context, sql string, caching bool) (*QueryResult, error) {
	outcome, err := e.Run(ctx, Request{SQL: sql, Caching: caching})
	if err != nil {
		return nil, err
	}
	return outcome.Result, nil
}

// Run executes req, serving it from a valid cached execution when caching is requested.
func (e *Engine) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := e.clock.Now()
	outcome, err := e.run(ctx, req)

	source := "remote"
	switch {
	case err != nil:
		metrics.Executions.WithLabelValues(resultLabel(err)).Inc()
	case outcome.FromCache:
		source = "cache"
		metrics.Executions.WithLabelValues("cached").Inc()
	default:
		metrics.Executions.WithLabelValues("succeeded").Inc()
	}
	metrics.ExecutionDuration.WithLabelValues(source).Observe(e.clock.Now().Sub(start).Seconds())
	return outcome, err
}

func (e *Engine) run(ctx context.Context, req Request) (*Outcome, error) {
	caching := req.Caching && e.cache != nil
	var key string

	if caching {
		// keyed on the unannotated SQL
		key = cache.KeyFor(req.SQL)
		if rec, ok := e.cache.Lookup(ctx, key); ok {
			logging.Logger().Info().Str("execution_id", rec.ExecutionID).Msg("cache hit, reusing execution")
			result, err := e.fetch(ctx, rec.ExecutionID)
			if err != nil {
				return nil, err
			}
			return &Outcome{Result: result, ExecutionID: rec.ExecutionID, FromCache: true}, nil
		}
	}

	executionID, err := e.submit(ctx, e.annotate(req))
	if err != nil {
		return nil, err
	}

	status, err := e.waitForCompletion(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if status.State != StateSucceeded {
		return nil, &QueryExecutionError{ExecutionID: executionID, State: status.State, Reason: status.Reason}
	}

	result, err := e.fetch(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if caching {
		location := status.ResultLocation
		if location == "" {
			location = e.service.ResultLocation(executionID)
		}
		if err := e.cache.Store(ctx, key, executionID, location, e.cacheTTL); err != nil {
			metrics.CacheWriteErrors.Inc()
			logging.Logger().Warn().Err(err).Str("execution_id", executionID).Msg("failed to cache execution")
		} else {
			logging.Logger().Info().Str("execution_id", executionID).Msg("cached execution")
		}
	}

	return &Outcome{Result: result, ExecutionID: executionID}, nil
}

func (e *Engine) annotate(req Request) string {
	if e.prefixTool == "" {
		return req.SQL
	}
	if req.QueryName != "" {
		return fmt.Sprintf("-- [%s] query_name=%s\n%s", e.prefixTool, req.QueryName, req.SQL)
	}
	return fmt.Sprintf("-- [%s]\n%s", e.prefixTool, req.SQL)
}

func (e *Engine) submit(ctx context.Context, sql string) (string, error) {
	executionID, err := retry.Do(ctx, e.retrier, "submit", func(ctx context.Context) (string, error) {
		return e.service.Submit(ctx, sql)
	})
	if err != nil {
		return "", e.remoteError(ctx, "submit", err)
	}
	logging.Logger().Info().Str("execution_id", executionID).Msg("started query")
	return executionID, nil
}

// waitForCompletion polls until the execution is terminal. A failed poll is retried on its
// own and never resubmits the query.
func (e *Engine) waitForCompletion(ctx context.Context, executionID string) (ExecutionStatus, error) {
	start := e.clock.Now()
	for {
		status, err := retry.Do(ctx, e.retrier, "status", func(ctx context.Context) (ExecutionStatus, error) {
			return e.service.Status(ctx, executionID)
		})
		if err != nil {
			return ExecutionStatus{}, e.remoteError(ctx, "status", err)
		}
		if status.State.Terminal() {
			logging.Logger().Info().Str("execution_id", executionID).Str("state", string(status.State)).Msg("query reached terminal state")
			return status, nil
		}

		elapsed := e.clock.Now().Sub(start)
		if e.pollTimeout > 0 && elapsed >= e.pollTimeout {
			e.cancel(executionID)
			return ExecutionStatus{}, &PollTimeoutError{ExecutionID: executionID, Elapsed: elapsed}
		}

		logging.Logger().Debug().
			Str("execution_id", executionID).
			Str("state", string(status.State)).
			Dur("wait_interval", e.pollInterval).
			Msg("still awaiting query results")
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return ExecutionStatus{}, err
		}
	}
}

// cancel stops a timed-out execution on a best-effort basis.
func (e *Engine) cancel(executionID string) {
	canceler, ok := e.service.(Canceler)
	if !ok {
		return
	}
	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := canceler.Cancel(ctx, executionID); err != nil {
		logging.Logger().Warn().Err(err).Str("execution_id", executionID).Msg("failed to stop timed out query")
	}
}

func (e *Engine) fetch(ctx context.Context, executionID string) (*QueryResult, error) {
	result, err := retry.Do(ctx, e.retrier, "fetch", func(ctx context.Context) (*QueryResult, error) {
		return e.service.Fetch(ctx, executionID)
	})
	if err != nil {
		return nil, e.remoteError(ctx, "fetch", err)
	}
	if result == nil {
		result = NewQueryResult(nil, nil)
	}
	logging.Logger().Info().Str("execution_id", executionID).Int("rows", result.RowCount).Msg("finished fetching results")
	return result, nil
}

// remoteError wraps a failure from retry.Do, leaving the caller's own cancellation bare.
func (e *Engine) remoteError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	classify := e.retrier.Classify
	if classify == nil {
		classify = retry.Classify
	}
	return &RemoteError{Op: op, Class: classify(err), Err: err}
}

func resultLabel(err error) string {
	var queryErr *QueryExecutionError
	var timeoutErr *PollTimeoutError
	switch {
	case errors.As(err, &queryErr):
		return "failed"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
