// Package sync coordinates the local ledger with the remote store: pushes,
// pulls, conflict resolution through the merge resolver, retry with backoff,
// and the debounced auto-push loop.
//
// One sync operation is in flight at a time; concurrent callers are
// rejected, never queued. There is no mid-flight cancellation on new user
// action: the in-flight guard holds the door until the current operation
// completes or times out.
package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tallybook/tallybook/internal/client/ledger"
	"github.com/tallybook/tallybook/internal/client/remote"
	"github.com/tallybook/tallybook/internal/common"
	"github.com/tallybook/tallybook/internal/logging"
	"github.com/tallybook/tallybook/internal/merge"
	"github.com/tallybook/tallybook/internal/models"
)

var (
	// ErrSyncInProgress is returned to a manual caller while another
	// operation holds the single-flight guard.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrThrottled is returned to a manual caller re-entering within the
	// minimum-interval window.
	ErrThrottled = errors.New("synced too recently, try again shortly")
)

// Result summarizes a completed operation for the caller.
type Result struct {
	// Conflicted reports that the push was rejected on versions and the
	// server's records were merged into local state. The orchestrator
	// never re-pushes automatically after a conflict; that is how
	// conflict loops start.
	Conflicted bool

	// Records is the number of records pushed or pulled.
	Records int
}

// Orchestrator drives synchronization. All state is behind one mutex and is
// read fresh by every decision point, including the auto-push callback,
// which must observe current state rather than a snapshot captured when it
// was scheduled.
type Orchestrator struct {
	remote remote.Store
	ledger *ledger.Ledger
	log    logging.Logger
	now    func() time.Time
	opts   Options

	mu                stdsync.Mutex
	syncing           bool
	lastAttempt       time.Time
	lastSuccess       time.Time
	suppressAutoUntil time.Time
	staleAdvised      bool
}

// New wires an orchestrator. A nil clock means the wall clock.
func New(store remote.Store, l *ledger.Ledger, log logging.Logger, opts Options, clock func() time.Time) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Orchestrator{
		remote: store,
		ledger: l,
		log:    log,
		now:    clock,
		opts:   opts.withDefaults(),
	}
}

// Syncing reports whether an operation is in flight.
func (o *Orchestrator) Syncing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.syncing
}

// LastSuccess returns the completion time of the last successful sync.
func (o *Orchestrator) LastSuccess() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSuccess
}

// begin claims the single-flight guard and records the attempt. The attempt
// timestamp moves on every entry, success or not, so failures cannot dodge
// the throttle.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.syncing {
		return ErrSyncInProgress
	}
	if !o.lastAttempt.IsZero() && o.now().Sub(o.lastAttempt) < o.opts.MinInterval {
		return ErrThrottled
	}
	o.syncing = true
	o.lastAttempt = o.now()
	return nil
}

func (o *Orchestrator) end(success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncing = false
	now := o.now()
	if success {
		o.lastSuccess = now
	}
	o.suppressAutoUntil = now.Add(o.opts.PostSyncQuiet)
}

// Push writes the full local dataset to the remote store.
//
// A version-conflict rejection is not an error to the caller: the server's
// conflicting records are merged into local state by version precedence and
// the result reports Conflicted so the UI can show a notice. For automatic
// pushes, guard rejections are silent no-ops.
func (o *Orchestrator) Push(ctx context.Context, automatic bool) (Result, error) {
	if err := o.begin(); err != nil {
		if automatic {
			o.log.Debug(ctx, "auto push skipped", "reason", err)
			return Result{}, nil
		}
		return Result{}, err
	}

	local := o.ledger.Snapshot()
	err := o.withRetry(ctx, "push", func(ctx context.Context) error {
		return o.remote.Write(ctx, local)
	})

	var conflict *remote.ConflictError
	if errors.As(err, &conflict) {
		res, mergeErr := o.resolveConflict(ctx, local, conflict)
		o.end(mergeErr == nil)
		return res, mergeErr
	}
	if err != nil {
		o.end(false)
		o.log.Error(ctx, "push failed", "automatic", automatic, "error", err)
		return Result{}, err
	}

	o.end(true)
	o.log.Info(ctx, "push finished", "automatic", automatic, "records", local.RecordCount())
	return Result{Records: local.RecordCount()}, nil
}

// resolveConflict merges the server's winning records against local state:
// conflicting beats remote beats local on version ties, and tied records
// are flagged for human review. The merged dataset re-enters the ledger
// through the ordinary replace path.
func (o *Orchestrator) resolveConflict(ctx context.Context, local models.Dataset, conflict *remote.ConflictError) (Result, error) {
	merged, err := merge.Datasets(local, models.Dataset{}, conflict.Conflicts)
	if err != nil {
		// Per-type failures: merged still carries every type that
		// reconciled; the broken ones kept local state.
		o.log.Warn(ctx, "partial merge", "error", err)
	}
	if err := o.ledger.ReplaceAll(ctx, merged); err != nil {
		return Result{}, fmt.Errorf("apply merge: %w", err)
	}
	o.log.Info(ctx, "push conflict resolved",
		"serverRecords", conflict.Conflicts.RecordCount())
	return Result{Conflicted: true}, nil
}

// Pull reads the remote dataset and replaces local state with it. A
// malformed response counts as a transient failure and is never applied.
func (o *Orchestrator) Pull(ctx context.Context) (Result, error) {
	if err := o.begin(); err != nil {
		return Result{}, err
	}

	var ds models.Dataset
	err := o.withRetry(ctx, "pull", func(ctx context.Context) error {
		got, err := o.remote.Read(ctx)
		if err != nil {
			return err
		}
		if err := got.Validate(); err != nil {
			return fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
		}
		ds = got
		return nil
	})
	if err != nil {
		o.end(false)
		o.log.Error(ctx, "pull failed", "error", err)
		return Result{}, err
	}

	if err := o.ledger.ReplaceAll(ctx, ds); err != nil {
		o.end(false)
		return Result{}, err
	}

	o.end(true)
	o.log.Info(ctx, "pull finished", "records", ds.RecordCount())
	return Result{Records: ds.RecordCount()}, nil
}

// withRetry runs op under the profile's per-attempt timeout, retrying
// transient failures with exponential backoff and jitter. Version conflicts
// are permanent: retrying one without merging first can only conflict again.
func (o *Orchestrator) withRetry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	p := o.opts.Profile
	backoff := retry.WithJitter(p.BackoffBase/2,
		retry.WithMaxRetries(p.MaxRetries, retry.NewExponential(p.BackoffBase)))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()

		err := op(actx)
		if err == nil {
			return nil
		}
		if transient(err) {
			o.log.Warn(ctx, "transient sync failure",
				"op", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}

func transient(err error) bool {
	return errors.Is(err, common.ErrUnavailable) ||
		errors.Is(err, common.ErrMalformedResponse) ||
		errors.Is(err, context.DeadlineExceeded)
}

// StaleAdvice returns a one-per-session suggestion to sync manually when
// auto-sync is off and the last success is older than the staleness
// threshold. Once returned (or dismissed) it stays quiet for the session.
func (o *Orchestrator) StaleAdvice() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.opts.AutoSync || o.staleAdvised {
		return "", false
	}
	age := o.now().Sub(o.lastSuccess)
	if !o.lastSuccess.IsZero() && age < o.opts.StaleAfter {
		return "", false
	}
	o.staleAdvised = true
	if o.lastSuccess.IsZero() {
		return "no sync recorded this session; consider syncing", true
	}
	return fmt.Sprintf("last sync was %s ago; consider syncing", age.Round(time.Minute)), true
}

// DismissStaleAdvice silences the suggestion for the rest of the session.
func (o *Orchestrator) DismissStaleAdvice() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.staleAdvised = true
}

// autoSuppressed reports whether the post-sync quiet window is active. Read
// at debounce-fire time, never captured earlier.
func (o *Orchestrator) autoSuppressed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now().Before(o.suppressAutoUntil)
}
