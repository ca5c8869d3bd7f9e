package multisig

import (
	"context"
	"errors"
	"time"

	"github.com/better-wallet/multisig/internal/events"
	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/internal/metrics"
	"github.com/better-wallet/multisig/internal/storage"
	"github.com/better-wallet/multisig/internal/validation"
	"github.com/better-wallet/multisig/pkg/auth"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// vote is the locked state a signer acts on
type vote struct {
	req    *types.ApprovalRequest
	wallet *types.MultiSigWallet
	signer *types.Signer
	// expired is set when opening the vote flipped the request to expired
	expired bool
}

// openVote locks the request and runs the checks every vote shares, in order:
// signer resolution, lazy expiry, status, and duplicate vote.
func (s *Service) openVote(ctx context.Context, tx storage.Tx, caller, requestID uuid.UUID, publicKey string, now time.Time) (*vote, error) {
	req, err := s.lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	wallet, err := getWallet(ctx, tx, req.WalletID)
	if err != nil {
		return nil, err
	}

	signer, err := resolveSigner(ctx, tx, wallet.ID, caller, publicKey)
	if err != nil {
		return nil, err
	}

	v := &vote{req: req, wallet: wallet, signer: signer}

	if req.Status == types.RequestStatusExpired {
		return nil, apperrors.ErrRequestExpired
	}
	if req.IsExpiredAt(now) {
		if err := expireRequest(ctx, tx, req, caller.String(), now); err != nil {
			return nil, err
		}
		v.expired = true
		return v, nil
	}

	if req.Status != types.RequestStatusPending {
		return nil, apperrors.ErrRequestNotPending.WithDetailf("request is %s", req.Status)
	}

	approvals, err := tx.ListApprovals(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range approvals {
		if a.SignerID == signer.ID {
			return nil, apperrors.ErrDuplicateSignature
		}
	}

	return v, nil
}

// resolveSigner finds the active signer acting for caller. Signers linked to a user
// match by user; signers without a user (external keys) match by public key.
func resolveSigner(ctx context.Context, r storage.Reader, walletID, caller uuid.UUID, publicKey string) (*types.Signer, error) {
	signers, err := r.ListSigners(ctx, walletID, false)
	if err != nil {
		return nil, err
	}

	for _, sg := range signers {
		if sg.BelongsTo(caller) {
			return sg, nil
		}
	}
	if publicKey != "" {
		for _, sg := range signers {
			if sg.UserID == nil && sg.HasPublicKey(publicKey) {
				return sg, nil
			}
		}
	}

	return nil, apperrors.ErrNotAnAuthorizedSigner
}

// expireRequest flips a pending request past its expiry to expired
func expireRequest(ctx context.Context, tx storage.Tx, req *types.ApprovalRequest, actor string, now time.Time) error {
	req.Status = types.RequestStatusExpired
	req.DecidedAt = &now
	if err := tx.UpdateApprovalRequest(ctx, req); err != nil {
		return storageConflict(err)
	}
	return audit(ctx, tx, actor, "approval.expire", resourceRequest, req.ID, "")
}

// SubmitSignature records an approving signature. The increment, the quorum
// comparison, and the transition to approved happen under the request's row lock,
// so concurrent signatures cannot both observe the pre-quorum count.
func (s *Service) SubmitSignature(ctx context.Context, caller, requestID uuid.UUID, signatureHex, publicKeyHex string) (approval *types.SignerApproval, err error) {
	defer func() {
		result := "accepted"
		if err != nil {
			result = "error"
			if appErr, ok := apperrors.IsAppError(err); ok {
				result = appErr.Code
			}
		}
		metrics.RecordSignature(result)
	}()

	var (
		v        *vote
		approved bool
	)
	now := s.clock()

	err = s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		var err error
		v, err = s.openVote(ctx, tx, caller, requestID, publicKeyHex, now)
		if err != nil || v.expired {
			return err
		}

		if !v.signer.HasPublicKey(publicKeyHex) {
			return apperrors.ErrPublicKeyMismatch
		}

		_, payload, err := auth.BuildApprovalPayload(v.wallet, v.req)
		if err != nil {
			return err
		}
		if err := s.verifySignature(v, signatureHex, payload); err != nil {
			return err
		}

		approval = &types.SignerApproval{
			ID:                uuid.New(),
			ApprovalRequestID: v.req.ID,
			SignerID:          v.signer.ID,
			Decision:          types.DecisionApprove,
			Signature:         types.NormalizeHex(signatureHex),
			PublicKey:         v.signer.PublicKey,
			PayloadDigest:     auth.PayloadDigest(payload),
			DecidedAt:         now,
		}
		if err := tx.CreateApproval(ctx, approval); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperrors.ErrDuplicateSignature
			}
			return err
		}

		v.req.CurrentSignatures++
		if v.req.Status == types.RequestStatusPending && v.req.QuorumReached() {
			v.req.Status = types.RequestStatusApproved
			v.req.DecidedAt = &now
			approved = true
		}
		if err := tx.UpdateApprovalRequest(ctx, v.req); err != nil {
			return storageConflict(err)
		}

		action := "approval.sign"
		if approved {
			action = "approval.approve"
		}
		return audit(ctx, tx, caller.String(), action, resourceRequest, v.req.ID, "signer="+v.signer.ID.String())
	})
	if err != nil {
		return nil, err
	}
	if v.expired {
		s.afterExpiry(ctx, v.req, caller.String())
		return nil, apperrors.ErrRequestExpired
	}

	logger.Info(ctx, "signature accepted",
		"request_id", requestID, "signer_id", v.signer.ID,
		"current", v.req.CurrentSignatures, "required", v.req.RequiredSignatures)
	s.emit(ctx, events.Event{
		Type: events.TypeSignatureAdded, WalletID: v.wallet.ID, RequestID: &v.req.ID,
		SignerID: &v.signer.ID, Actor: caller.String(), Status: string(v.req.Status),
	})

	if approved {
		metrics.RecordTransition(string(types.RequestStatusApproved))
		logger.Info(ctx, "approval request reached quorum", "request_id", requestID, "wallet_id", v.wallet.ID)
		s.emit(ctx, events.Event{
			Type: events.TypeRequestApproved, WalletID: v.wallet.ID, RequestID: &v.req.ID,
			Actor: caller.String(), Status: string(v.req.Status),
		})
	}

	return approval, nil
}

func (s *Service) verifySignature(v *vote, signatureHex string, payload []byte) error {
	signature, err := validation.DecodeHex(signatureHex)
	if err != nil {
		return apperrors.ErrInvalidSignature.WithDetail(err.Error())
	}

	c, err := s.chains.Get(v.wallet.Chain)
	if err != nil {
		return err
	}

	key, err := auth.NewSignerKey(v.signer, c.Verifier)
	if err != nil {
		return apperrors.ErrInvalidSignature.WithDetail(err.Error())
	}

	ok, err := key.Verify(signature, payload)
	if err != nil {
		return apperrors.ErrInvalidSignature.WithDetail(err.Error())
	}
	if !ok {
		return apperrors.ErrInvalidSignature
	}
	return nil
}

// RejectInput is a rejecting vote. Signers linked to a user reject as that user;
// signers without one are resolved by PublicKey and must sign the rejection payload.
type RejectInput struct {
	Reason    string
	Signature string
	PublicKey string
}

// RejectRequest records a rejecting vote. A single rejection is terminal.
func (s *Service) RejectRequest(ctx context.Context, caller, requestID uuid.UUID, in RejectInput) (*types.SignerApproval, error) {
	var (
		v        *vote
		approval *types.SignerApproval
	)
	reason := in.Reason
	now := s.clock()

	err := s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		var err error
		v, err = s.openVote(ctx, tx, caller, requestID, in.PublicKey, now)
		if err != nil || v.expired {
			return err
		}

		_, payload, err := auth.BuildRejectionPayload(v.wallet, v.req, reason)
		if err != nil {
			return err
		}

		if in.PublicKey != "" && !v.signer.HasPublicKey(in.PublicKey) {
			return apperrors.ErrPublicKeyMismatch
		}
		if v.signer.UserID == nil && in.Signature == "" {
			return apperrors.ErrInvalidSignature.WithDetail("signers without a linked user must sign the rejection")
		}
		if in.Signature != "" {
			if err := s.verifySignature(v, in.Signature, payload); err != nil {
				return err
			}
		}

		approval = &types.SignerApproval{
			ID:                uuid.New(),
			ApprovalRequestID: v.req.ID,
			SignerID:          v.signer.ID,
			Decision:          types.DecisionReject,
			Signature:         types.NormalizeHex(in.Signature),
			PublicKey:         v.signer.PublicKey,
			PayloadDigest:     auth.PayloadDigest(payload),
			DecidedAt:         now,
		}
		if reason != "" {
			approval.Reason = &reason
		}
		if err := tx.CreateApproval(ctx, approval); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperrors.ErrDuplicateSignature
			}
			return err
		}

		v.req.Status = types.RequestStatusRejected
		v.req.DecidedAt = &now
		if err := tx.UpdateApprovalRequest(ctx, v.req); err != nil {
			return storageConflict(err)
		}
		return audit(ctx, tx, caller.String(), "approval.reject", resourceRequest, v.req.ID, reason)
	})
	if err != nil {
		return nil, err
	}
	if v.expired {
		s.afterExpiry(ctx, v.req, caller.String())
		return nil, apperrors.ErrRequestExpired
	}

	metrics.RecordTransition(string(types.RequestStatusRejected))
	logger.Info(ctx, "approval request rejected", "request_id", requestID, "signer_id", v.signer.ID)
	s.emit(ctx, events.Event{
		Type: events.TypeRequestRejected, WalletID: v.wallet.ID, RequestID: &v.req.ID,
		SignerID: &v.signer.ID, Actor: caller.String(), Status: string(v.req.Status),
	})

	return approval, nil
}

func (s *Service) afterExpiry(ctx context.Context, req *types.ApprovalRequest, actor string) {
	metrics.RecordTransition(string(types.RequestStatusExpired))
	logger.Info(ctx, "approval request expired", "request_id", req.ID, "expires_at", req.ExpiresAt)
	s.emit(ctx, events.Event{
		Type: events.TypeRequestExpired, WalletID: req.WalletID, RequestID: &req.ID,
		Actor: actor, Status: string(req.Status),
	})
}
