// Package accounting coordinates ledger mutations for groups: it serializes
// writers per group, runs each mutation in one storage transaction, and
// publishes events once the transaction has committed.
package accounting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/groupledger/internal/fx"
	"github.com/mmynk/groupledger/internal/ledger"
	"github.com/mmynk/groupledger/internal/metrics"
	"github.com/mmynk/groupledger/internal/notify"
	"github.com/mmynk/groupledger/internal/storage"
)

// Publisher receives events after the mutation that produced them commits.
type Publisher interface {
	Publish(event notify.Event)
}

// Manager is the entry point for every balance-changing operation.
type Manager struct {
	store       storage.Store
	locks       *groupLocks
	events      Publisher
	rates       *fx.Rates
	metrics     *metrics.Metrics
	lockTimeout time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher sets where committed events are sent.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.events = p }
}

// WithRates sets the conversion table used by MemberSummary.
func WithRates(r *fx.Rates) Option {
	return func(m *Manager) { m.rates = r }
}

// WithMetrics sets the collectors mutations are recorded to.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLockTimeout bounds how long a mutation waits for its group. Zero
// waits as long as the caller's context allows.
func WithLockTimeout(d time.Duration) Option {
	return func(m *Manager) { m.lockTimeout = d }
}

// New creates a Manager over store.
func New(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		locks: newGroupLocks(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.Noop()
	}
	return m
}

// mutate runs fn under the group's in-process lock and inside one storage
// transaction. Nothing is persisted unless fn returns nil and the commit
// succeeds; a cancelled ctx rolls everything back.
//
// fn must only touch storage through tx.
func (m *Manager) mutate(ctx context.Context, op, groupID string, fn func(ctx context.Context, tx storage.GroupTx) error) error {
	release, err := m.lock(ctx, groupID)
	if err != nil {
		m.record(op, err)
		return err
	}
	defer release()

	err = m.store.InGroupTx(ctx, groupID, fn)
	m.record(op, err)
	return err
}

// lock acquires the in-process lock for groupID, bounded by lockTimeout.
func (m *Manager) lock(ctx context.Context, groupID string) (func(), error) {
	lockCtx := ctx
	if m.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, m.lockTimeout)
		defer cancel()
	}

	start := time.Now()
	release, err := m.locks.acquire(lockCtx, groupID)
	m.metrics.LockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ledger.ConflictError{Kind: ledger.ConflictStale, Msg: "group is busy, retry later"}
	}
	return release, nil
}

// record counts the outcome of op and logs invariant violations.
func (m *Manager) record(op string, err error) {
	outcome := outcomeOf(err)
	m.metrics.Mutations.WithLabelValues(op, outcome).Inc()
	if outcome == metrics.OutcomeInvariant {
		m.metrics.InvariantViolations.Inc()
		slog.Error("Invariant violation, mutation rejected", "op", op, "error", err)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case ledger.IsValidation(err):
		return metrics.OutcomeInvalid
	case ledger.IsInvariantViolation(err):
		return metrics.OutcomeInvariant
	case errors.Is(err, storage.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		return metrics.OutcomeConflict
	}
	if _, ok := ledger.AsConflict(err); ok {
		return metrics.OutcomeConflict
	}
	return metrics.OutcomeError
}

func (m *Manager) publish(event notify.Event) {
	if m.events != nil {
		m.events.Publish(event)
	}
}

// saveBalances checks the zero-sum rule and persists b.
func saveBalances(ctx context.Context, tx storage.GroupTx, b ledger.BalanceMap) error {
	if err := b.CheckZeroSum(); err != nil {
		return err
	}
	return tx.SaveBalances(ctx, b)
}
