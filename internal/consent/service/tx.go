package service

import (
	"context"
	"time"

	pkgerrors "consentlake/pkg/domain-errors"
)

// StoreTx runs a read-merge-append as one unit against the store. Stores
// shared by several replicas use it to serialize a user's updates across
// processes; the per-user lock only covers this one.
type StoreTx interface {
	RunInTx(ctx context.Context, userID string, fn func(ctx context.Context, store Store) error) error
}

// WithStoreTx sets the transaction boundary for updates.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// directTx runs fn on the service store with no transaction.
type directTx struct {
	store Store
}

func (t directTx) RunInTx(ctx context.Context, _ string, fn func(ctx context.Context, store Store) error) error {
	return fn(ctx, t.store)
}

// defaultUpdateTimeout bounds a single per-user update.
const defaultUpdateTimeout = 5 * time.Second

// withUserLock runs fn holding the user's shard lock. The context is checked
// before and after waiting so a cancelled request never writes.
func (s *Service) withUserLock(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "consent update aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultUpdateTimeout)
		defer cancel()
	}

	lockStart := time.Now()
	return s.locks.Do(userID, func() error {
		if s.metrics != nil {
			s.metrics.ObserveShardLockWait(time.Since(lockStart).Seconds())
		}
		if err := ctx.Err(); err != nil {
			return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "consent update aborted: context cancelled")
		}
		return fn(ctx)
	})
}
