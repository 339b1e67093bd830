package users

import (
	"context"
	"errors"
	"time"

	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"github.com/imaginify/imaginify/backend/go-services/pkg/metrics"
)

// ErrWriteBackDisabled is returned by writers that do not reach the provider.
// Users stay unsynced so a later pass with a real writer links them.
var ErrWriteBackDisabled = errors.New("metadata write-back disabled")

// MetadataWriter writes the local user id into the identity provider's
// public metadata for the account.
type MetadataWriter interface {
	SetUserMetadata(ctx context.Context, clerkID string, userID string) error
}

// Reconciler repairs users whose metadata write-back never completed, e.g.
// because the process died between the local insert and the provider call.
type Reconciler struct {
	repo     UserRepository
	writer   MetadataWriter
	interval time.Duration
	grace    time.Duration
	batch    int64
	now      func() time.Time
}

func NewReconciler(repo UserRepository, writer MetadataWriter, interval time.Duration) *Reconciler {
	return &Reconciler{
		repo:     repo,
		writer:   writer,
		interval: interval,
		grace:    time.Minute,
		batch:    100,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce performs a single repair pass and returns how many users were linked.
// Individual failures are logged and skipped.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.repo.ListUnsynced(ctx, r.now().Add(-r.grace), r.batch)
	if err != nil {
		return 0, err
	}
	synced := 0
	for _, u := range pending {
		if err := r.writer.SetUserMetadata(ctx, u.ClerkID, u.ID.Hex()); err != nil {
			if errors.Is(err, ErrWriteBackDisabled) {
				logger.Debugf("reconcile: write-back disabled, %d user(s) left pending", len(pending))
				return synced, nil
			}
			metrics.MetadataSync.WithLabelValues("reconcile_error").Inc()
			logger.Warnf("reconcile: metadata write-back for %s failed: %v", u.ClerkID, err)
			continue
		}
		if err := r.repo.MarkMetadataSynced(ctx, u.ID); err != nil {
			logger.Warnf("reconcile: marking %s synced failed: %v", u.ClerkID, err)
			continue
		}
		metrics.MetadataSync.WithLabelValues("reconciled").Inc()
		synced++
	}
	if synced > 0 {
		logger.Infof("reconcile: linked %d user(s) to provider metadata", synced)
	}
	return synced, nil
}

// Start runs repair passes every interval until ctx is done. A non-positive
// interval disables the loop.
func (r *Reconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		logger.Infof("reconcile: disabled")
		return
	}
	go func() {
		t := time.NewTicker(r.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if _, err := r.RunOnce(ctx); err != nil {
					logger.Errorf("reconcile pass failed: %v", err)
				}
			}
		}
	}()
}
