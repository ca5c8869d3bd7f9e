package multisig

import (
	"context"
	"errors"

	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/internal/metrics"
	"github.com/better-wallet/multisig/internal/storage"
	"github.com/better-wallet/multisig/pkg/types"
)

// expireBatchSize bounds how many requests one sweep pass flips
const expireBatchSize = 500

// ExpireStale flips pending requests past their expiry to expired and returns how
// many it flipped. Every state-changing call re-checks expiry on its own, so the
// sweep only keeps listings and metrics current.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock()

	ids, err := s.repo.ListStalePending(ctx, now, expireBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		var req *types.ApprovalRequest
		err := s.repo.RunInTx(ctx, func(tx storage.Tx) error {
			var err error
			req, err = tx.LockApprovalRequest(ctx, id)
			if err != nil {
				return err
			}
			if req == nil || !req.IsExpiredAt(now) {
				req = nil
				return nil
			}
			return expireRequest(ctx, tx, req, SystemActor, now)
		})
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return expired, err
			}
			logger.Warn(ctx, "failed to expire approval request", "request_id", id, "error", err)
			continue
		}
		if req != nil {
			expired++
			s.afterExpiry(ctx, req, SystemActor)
		}
	}

	metrics.RecordExpired(expired)
	return expired, nil
}

