package multisig

import (
	"context"
	"encoding/json"
	"fmt"

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

// CreateApprovalRequestInput describes a proposal awaiting quorum
type CreateApprovalRequestInput struct {
	RequestType     types.RequestType
	TransactionData types.TransactionData
	// Metadata is free-form context for humans. It is stored but not signed.
	Metadata json.RawMessage
}

// ApprovalRequestDetail is a request together with the votes cast on it
type ApprovalRequestDetail struct {
	*types.ApprovalRequest
	Approvals []*types.SignerApproval `json:"approvals"`
}

// SigningPayload is what a signer must sign to approve a request
type SigningPayload struct {
	Payload   *auth.ApprovalPayload `json:"payload"`
	Canonical string                `json:"canonical"`
	Digest    string                `json:"digest"`
}

// RejectionSigningPayload is what a signer without a linked user signs to reject
type RejectionSigningPayload struct {
	Payload   *auth.RejectionPayload `json:"payload"`
	Canonical string                 `json:"canonical"`
	Digest    string                 `json:"digest"`
}

// CreateApprovalRequest opens a pending request. The wallet's required signature
// count is frozen onto the request.
func (s *Service) CreateApprovalRequest(ctx context.Context, caller, walletID uuid.UUID, in CreateApprovalRequestInput) (*types.ApprovalRequest, error) {
	if in.RequestType == "" {
		in.RequestType = types.RequestTypeTransaction
	}
	if !in.RequestType.IsValid() {
		return nil, apperrors.InvalidConfiguration(fmt.Sprintf("unknown request type %q", in.RequestType))
	}
	if err := validation.ValidateTransactionData(in.TransactionData, s.maxDataSize); err != nil {
		return nil, apperrors.InvalidConfiguration(err.Error())
	}
	if len(in.Metadata) > 0 && !json.Valid(in.Metadata) {
		return nil, apperrors.InvalidConfiguration("metadata must be valid JSON")
	}

	var req *types.ApprovalRequest
	err := s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if err := authorizeMember(ctx, tx, wallet, caller); err != nil {
			return err
		}
		if !wallet.IsActive() {
			return apperrors.ErrWalletSuspended
		}
		if in.TransactionData.To != "" {
			c, err := s.chains.Get(wallet.Chain)
			if err != nil {
				return err
			}
			if err := c.Addresses.ValidateAddress(in.TransactionData.To); err != nil {
				return apperrors.InvalidConfiguration("invalid destination: " + err.Error())
			}
		}

		now := s.clock()
		req = &types.ApprovalRequest{
			ID:                 uuid.New(),
			WalletID:           wallet.ID,
			InitiatorID:        caller,
			RequestType:        in.RequestType,
			TransactionData:    in.TransactionData,
			Metadata:           in.Metadata,
			RequiredSignatures: wallet.Policy.RequiredSignatures(),
			Status:             types.RequestStatusPending,
			CreatedAt:          now,
			ExpiresAt:          now.Add(wallet.Policy.TTLOr(s.defaultTTL)),
		}

		if err := tx.CreateApprovalRequest(ctx, req); err != nil {
			return err
		}
		return audit(ctx, tx, caller.String(), "approval.create", resourceRequest, req.ID,
			fmt.Sprintf("wallet=%s type=%s required=%d", wallet.ID, req.RequestType, req.RequiredSignatures))
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTransition(string(types.RequestStatusPending))
	logger.Info(ctx, "approval request created",
		"request_id", req.ID, "wallet_id", walletID, "required", req.RequiredSignatures, "expires_at", req.ExpiresAt)
	s.emit(ctx, events.Event{
		Type: events.TypeRequestCreated, WalletID: walletID, RequestID: &req.ID,
		Actor: caller.String(), Status: string(req.Status),
	})

	return req, nil
}

// GetApprovalRequest returns a request and its votes to wallet members
func (s *Service) GetApprovalRequest(ctx context.Context, caller, requestID uuid.UUID) (*ApprovalRequestDetail, error) {
	req, wallet, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRequestReader(ctx, wallet, req, caller); err != nil {
		return nil, err
	}

	approvals, err := s.repo.ListApprovals(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if approvals == nil {
		approvals = []*types.SignerApproval{}
	}

	return &ApprovalRequestDetail{ApprovalRequest: req, Approvals: approvals}, nil
}

// ListApprovalRequests lists a wallet's requests, optionally filtered by status
func (s *Service) ListApprovalRequests(ctx context.Context, caller, walletID uuid.UUID, status *types.RequestStatus) ([]*types.ApprovalRequest, error) {
	if status != nil && !status.IsValid() {
		return nil, apperrors.ErrBadRequest.WithDetailf("unknown status %q", *status)
	}

	wallet, err := getWallet(ctx, s.repo, walletID)
	if err != nil {
		return nil, err
	}
	if err := authorizeMember(ctx, s.repo, wallet, caller); err != nil {
		return nil, err
	}

	requests, err := s.repo.ListApprovalRequests(ctx, walletID, status)
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []*types.ApprovalRequest{}
	}
	return requests, nil
}

// ListPendingForUser lists unexpired requests still waiting on caller's vote
func (s *Service) ListPendingForUser(ctx context.Context, caller uuid.UUID) ([]*types.ApprovalRequest, error) {
	requests, err := s.repo.ListPendingForSigner(ctx, caller, s.clock())
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []*types.ApprovalRequest{}
	}
	return requests, nil
}

// GetApprovalStatus projects quorum progress. Expiry is computed, never written.
func (s *Service) GetApprovalStatus(ctx context.Context, requestID uuid.UUID) (*types.ApprovalStatus, error) {
	req, err := s.repo.GetApprovalRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NotFound("Approval request", requestID.String())
	}

	status := req.StatusAt(s.clock())
	return &status, nil
}

// GetSigningPayload returns the canonical document signers sign for a request
func (s *Service) GetSigningPayload(ctx context.Context, caller, requestID uuid.UUID) (*SigningPayload, error) {
	req, wallet, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRequestReader(ctx, wallet, req, caller); err != nil {
		return nil, err
	}

	payload, canonical, err := auth.BuildApprovalPayload(wallet, req)
	if err != nil {
		return nil, err
	}

	return &SigningPayload{
		Payload:   payload,
		Canonical: string(canonical),
		Digest:    auth.PayloadDigest(canonical),
	}, nil
}

// GetRejectionPayload returns the canonical document a signer without a linked user
// signs to reject a request with the given reason
func (s *Service) GetRejectionPayload(ctx context.Context, caller, requestID uuid.UUID, reason string) (*RejectionSigningPayload, error) {
	req, wallet, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRequestReader(ctx, wallet, req, caller); err != nil {
		return nil, err
	}

	payload, canonical, err := auth.BuildRejectionPayload(wallet, req, reason)
	if err != nil {
		return nil, err
	}

	return &RejectionSigningPayload{
		Payload:   payload,
		Canonical: string(canonical),
		Digest:    auth.PayloadDigest(canonical),
	}, nil
}

func (s *Service) loadRequest(ctx context.Context, requestID uuid.UUID) (*types.ApprovalRequest, *types.MultiSigWallet, error) {
	req, err := s.repo.GetApprovalRequest(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, apperrors.NotFound("Approval request", requestID.String())
	}

	wallet, err := getWallet(ctx, s.repo, req.WalletID)
	if err != nil {
		return nil, nil, err
	}
	return req, wallet, nil
}

// authorizeRequestReader allows wallet members and the request's initiator
func (s *Service) authorizeRequestReader(ctx context.Context, wallet *types.MultiSigWallet, req *types.ApprovalRequest, caller uuid.UUID) error {
	if req.InitiatorID == caller {
		return nil
	}
	return authorizeMember(ctx, s.repo, wallet, caller)
}
