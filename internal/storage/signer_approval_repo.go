package storage

import (
	"context"
	"fmt"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SignerApprovalRepository handles signer vote data operations
type SignerApprovalRepository struct{}

// CreateTx records a signer's vote. A second vote by the same signer fails with ErrDuplicate.
func (r *SignerApprovalRepository) CreateTx(ctx context.Context, db DBTX, approval *types.SignerApproval) error {
	query := `
		INSERT INTO signer_approvals (
			id, approval_request_id, signer_id, decision, signature, public_key,
			payload_digest, reason, decided_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := db.Exec(ctx, query,
		approval.ID,
		approval.ApprovalRequestID,
		approval.SignerID,
		approval.Decision,
		approval.Signature,
		approval.PublicKey,
		approval.PayloadDigest,
		approval.Reason,
		approval.DecidedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to record signer approval: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to record signer approval: %w", err)
	}

	return nil
}

// ListByRequest lists the votes on a request in the order they were cast
func (r *SignerApprovalRepository) ListByRequest(ctx context.Context, db DBTX, requestID uuid.UUID) ([]*types.SignerApproval, error) {
	query := `
		SELECT id, approval_request_id, signer_id, decision, signature, public_key,
		       payload_digest, reason, decided_at
		FROM signer_approvals
		WHERE approval_request_id = $1
		ORDER BY decided_at, id
	`

	rows, err := db.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list signer approvals: %w", err)
	}

	approvals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*types.SignerApproval, error) {
		var a types.SignerApproval
		err := row.Scan(
			&a.ID,
			&a.ApprovalRequestID,
			&a.SignerID,
			&a.Decision,
			&a.Signature,
			&a.PublicKey,
			&a.PayloadDigest,
			&a.Reason,
			&a.DecidedAt,
		)
		return &a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan signer approval: %w", err)
	}

	return approvals, nil
}
