package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// ErrTraceUnavailable is returned when a run never became readable within
// the resolver's retry budget.
var ErrTraceUnavailable = errors.New("trace unavailable")

// Resolver defaults. Five total read attempts with a constant one-second
// delay between them, matching the backend's usual indexing lag.
const (
	DefaultMaxAttempts = 5
	DefaultBackoff     = time.Second
)

// ResolverOptions configures a ShareResolver.
type ResolverOptions struct {
	// MaxAttempts is the total number of run-read attempts. Zero means
	// DefaultMaxAttempts.
	MaxAttempts int
	// Backoff is the constant delay between read attempts. Zero means
	// DefaultBackoff.
	Backoff time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ShareResolver resolves the publicly shareable URL of a run's trace,
// creating the share on first request. The resolver retries the initial run
// read because runs are indexed asynchronously by the backend; the share
// calls themselves are never retried.
type ShareResolver struct {
	client      RunClient
	maxAttempts int
	backoff     time.Duration
	logger      *slog.Logger
}

// NewShareResolver creates a ShareResolver over the given run client.
func NewShareResolver(client RunClient, opts *ResolverOptions) *ShareResolver {
	r := &ShareResolver{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		logger:      slog.Default(),
	}
	if opts != nil {
		if opts.MaxAttempts > 0 {
			r.maxAttempts = opts.MaxAttempts
		}
		if opts.Backoff > 0 {
			r.backoff = opts.Backoff
		}
		if opts.Logger != nil {
			r.logger = opts.Logger
		}
	}
	return r
}

// ResolveShareURL returns the shareable URL for the run's trace. If the run
// is already shared the existing link is returned; repeated calls are
// idempotent. Returns ErrTraceUnavailable when the run never becomes
// readable within the retry budget.
func (r *ShareResolver) ResolveShareURL(ctx context.Context, runID uuid.UUID) (string, error) {
	if err := r.awaitRun(ctx, runID); err != nil {
		return "", err
	}

	url, err := r.client.ReadSharedLink(ctx, runID)
	if err == nil {
		return url, nil
	}
	if !errors.Is(err, ErrNotShared) {
		return "", err
	}

	url, err = r.client.ShareRun(ctx, runID)
	if err != nil {
		return "", err
	}
	r.logger.Info("created trace share", "run_id", runID)
	return url, nil
}

// awaitRun reads the run record, retrying while the backend reports it as
// not yet indexed. Only the not-found class is retryable; any other backend
// error aborts immediately.
func (r *ShareResolver) awaitRun(ctx context.Context, runID uuid.UUID) error {
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(r.maxAttempts-1), retry.NewConstant(r.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		_, err := r.client.ReadRun(ctx, runID)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRunNotFound) {
			r.logger.Debug("run not readable yet",
				"run_id", runID, "attempt", attempt, "max_attempts", r.maxAttempts)
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRunNotFound) {
		return fmt.Errorf("%w: run %s not readable after %d attempts: %w",
			ErrTraceUnavailable, runID, r.maxAttempts, err)
	}
	return err
}
