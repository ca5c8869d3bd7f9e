package multisig

import (
	"context"
	"time"

	"github.com/better-wallet/multisig/internal/events"
	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/internal/metrics"
	"github.com/better-wallet/multisig/internal/storage"
	"github.com/better-wallet/multisig/internal/validation"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// BroadcastTransaction submits an approved request's raw transaction to its chain.
// The request row stays locked across the broadcaster call, so a concurrent second
// call waits and then sees the request as broadcast. A broadcaster failure leaves
// the request approved with the error recorded, and the call may be retried.
func (s *Service) BroadcastTransaction(ctx context.Context, caller, requestID uuid.UUID) (*types.ApprovalRequest, error) {
	var (
		req          *types.ApprovalRequest
		wallet       *types.MultiSigWallet
		outcome      error
		expired      bool
		broadcastErr error
	)

	err := s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		var err error
		req, err = s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		wallet, err = getWallet(ctx, tx, req.WalletID)
		if err != nil {
			return err
		}

		if !wallet.IsOwner(caller) && req.InitiatorID != caller {
			return apperrors.ErrForbidden.WithDetail("only the wallet owner or the request initiator can broadcast")
		}

		now := s.clock()
		switch {
		case req.Status == types.RequestStatusBroadcast:
			return apperrors.ErrAlreadyBroadcast
		case req.IsExpiredAt(now):
			if err := expireRequest(ctx, tx, req, caller.String(), now); err != nil {
				return err
			}
			expired = true
			outcome = apperrors.ErrRequestExpired
			return nil
		case req.Status != types.RequestStatusApproved:
			return apperrors.ErrQuorumNotReached.WithDetailf("request is %s with %d of %d signatures",
				req.Status, req.CurrentSignatures, req.RequiredSignatures)
		}

		if req.RequestType != types.RequestTypeTransaction {
			return apperrors.ErrBadRequest.WithDetail("only transaction requests can be broadcast")
		}
		if req.TransactionData.RawTransaction == "" {
			return apperrors.ErrBadRequest.WithDetail("transaction_data.raw_transaction is required to broadcast")
		}
		rawTx, err := validation.DecodeHex(req.TransactionData.RawTransaction)
		if err != nil {
			return apperrors.ErrBadRequest.WithDetail("invalid raw_transaction: " + err.Error())
		}

		c, err := s.chains.Get(wallet.Chain)
		if err != nil {
			return err
		}

		start := time.Now()
		result, err := c.Broadcaster.Broadcast(ctx, rawTx)
		metrics.RecordBroadcast(wallet.Chain, time.Since(start), err == nil)

		if err != nil {
			broadcastErr = err
			outcome = apperrors.BroadcastFailed(err)

			msg := err.Error()
			req.LastBroadcastError = &msg
			if err := tx.UpdateApprovalRequest(ctx, req); err != nil {
				return storageConflict(err)
			}
			return audit(ctx, tx, caller.String(), "approval.broadcast_failed", resourceRequest, req.ID, msg)
		}

		req.Status = types.RequestStatusBroadcast
		req.BroadcastAt = &now
		req.TransactionHash = &result.Hash
		req.RawTransaction = &result.RawTransaction
		req.LastBroadcastError = nil
		if err := tx.UpdateApprovalRequest(ctx, req); err != nil {
			logger.Error(ctx, "transaction broadcast but request update failed",
				"request_id", req.ID, "tx_hash", result.Hash, "error", err)
			return storageConflict(err)
		}
		return audit(ctx, tx, caller.String(), "approval.broadcast", resourceRequest, req.ID, "tx_hash="+result.Hash)
	})
	if err != nil {
		return nil, err
	}

	switch {
	case expired:
		s.afterExpiry(ctx, req, caller.String())
		return nil, outcome
	case broadcastErr != nil:
		logger.Warn(ctx, "transaction broadcast failed",
			"request_id", req.ID, "chain", wallet.Chain, "error", broadcastErr)
		s.emit(ctx, events.Event{
			Type: events.TypeBroadcastFailed, WalletID: wallet.ID, RequestID: &req.ID,
			Actor: caller.String(), Status: string(req.Status), Error: broadcastErr.Error(),
		})
		return nil, outcome
	}

	metrics.RecordTransition(string(types.RequestStatusBroadcast))
	logger.Info(ctx, "transaction broadcast",
		"request_id", req.ID, "chain", wallet.Chain, "tx_hash", *req.TransactionHash)
	s.emit(ctx, events.Event{
		Type: events.TypeBroadcast, WalletID: wallet.ID, RequestID: &req.ID,
		Actor: caller.String(), Status: string(req.Status), TxHash: *req.TransactionHash,
	})

	return req, nil
}
