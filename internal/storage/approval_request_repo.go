package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ApprovalRequestRepository handles approval request data operations
type ApprovalRequestRepository struct{}

const approvalRequestColumns = `
	r.id, r.wallet_id, r.initiator_id, r.request_type, r.transaction_data, r.metadata,
	r.required_signatures, r.current_signatures, r.status, r.created_at, r.expires_at,
	r.decided_at, r.broadcast_at, r.transaction_hash, r.raw_transaction,
	r.last_broadcast_error, r.version
`

// CreateTx creates a new approval request
func (r *ApprovalRequestRepository) CreateTx(ctx context.Context, db DBTX, req *types.ApprovalRequest) error {
	txData, err := json.Marshal(req.TransactionData)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction data: %w", err)
	}

	query := `
		INSERT INTO approval_requests (
			id, wallet_id, initiator_id, request_type, transaction_data, metadata,
			required_signatures, current_signatures, status, created_at, expires_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = db.Exec(ctx, query,
		req.ID,
		req.WalletID,
		req.InitiatorID,
		req.RequestType,
		txData,
		nullableJSON(req.Metadata),
		req.RequiredSignatures,
		req.CurrentSignatures,
		req.Status,
		req.CreatedAt,
		req.ExpiresAt,
		req.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create approval request: %w", err)
	}

	return nil
}

// GetByIDTx retrieves an approval request, optionally taking a row lock
func (r *ApprovalRequestRepository) GetByIDTx(ctx context.Context, db DBTX, id uuid.UUID, forUpdate bool) (*types.ApprovalRequest, error) {
	query := `SELECT ` + approvalRequestColumns + ` FROM approval_requests r WHERE r.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	req, err := scanApprovalRequest(db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval request: %w", err)
	}

	return req, nil
}

// UpdateTx writes the mutable fields of req guarded by its version
func (r *ApprovalRequestRepository) UpdateTx(ctx context.Context, db DBTX, req *types.ApprovalRequest) error {
	query := `
		UPDATE approval_requests
		SET current_signatures = $3,
		    status = $4,
		    decided_at = $5,
		    broadcast_at = $6,
		    transaction_hash = $7,
		    raw_transaction = $8,
		    last_broadcast_error = $9,
		    version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`

	var version int64
	err := db.QueryRow(ctx, query,
		req.ID,
		req.Version,
		req.CurrentSignatures,
		req.Status,
		req.DecidedAt,
		req.BroadcastAt,
		req.TransactionHash,
		req.RawTransaction,
		req.LastBroadcastError,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update approval request: %w", err)
	}

	req.Version = version
	return nil
}

// ListByWallet lists a wallet's requests, newest first, optionally filtered by status
func (r *ApprovalRequestRepository) ListByWallet(ctx context.Context, db DBTX, walletID uuid.UUID, status *types.RequestStatus) ([]*types.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalRequestColumns + `
		FROM approval_requests r
		WHERE r.wallet_id = $1 AND ($2::text IS NULL OR r.status = $2::text)
		ORDER BY r.created_at DESC
	`

	var statusArg *string
	if status != nil {
		s := string(*status)
		statusArg = &s
	}

	return r.list(ctx, db, "failed to list approval requests", query, walletID, statusArg)
}

// ListPendingForSigner lists requests awaiting userID's vote
func (r *ApprovalRequestRepository) ListPendingForSigner(ctx context.Context, db DBTX, userID uuid.UUID, now time.Time) ([]*types.ApprovalRequest, error) {
	query := `
		SELECT ` + approvalRequestColumns + `
		FROM approval_requests r
		JOIN multisig_signers s ON s.wallet_id = r.wallet_id AND s.active AND s.user_id = $1
		WHERE r.status = 'pending'
		  AND r.expires_at > $2
		  AND NOT EXISTS (
		      SELECT 1 FROM signer_approvals a
		      WHERE a.approval_request_id = r.id AND a.signer_id = s.id
		  )
		ORDER BY r.expires_at ASC
	`

	return r.list(ctx, db, "failed to list pending approval requests", query, userID, now)
}

// ListStalePending returns IDs of pending requests that expired before now
func (r *ApprovalRequestRepository) ListStalePending(ctx context.Context, db DBTX, now time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT id FROM approval_requests
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale approval requests: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan approval request ID: %w", err)
	}

	return ids, nil
}

func (r *ApprovalRequestRepository) list(ctx context.Context, db DBTX, errMsg, query string, args ...interface{}) ([]*types.ApprovalRequest, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	defer rows.Close()

	var requests []*types.ApprovalRequest
	for rows.Next() {
		req, err := scanApprovalRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

func scanApprovalRequest(row pgx.Row) (*types.ApprovalRequest, error) {
	var (
		req      types.ApprovalRequest
		txData   []byte
		metadata []byte
	)

	err := row.Scan(
		&req.ID,
		&req.WalletID,
		&req.InitiatorID,
		&req.RequestType,
		&txData,
		&metadata,
		&req.RequiredSignatures,
		&req.CurrentSignatures,
		&req.Status,
		&req.CreatedAt,
		&req.ExpiresAt,
		&req.DecidedAt,
		&req.BroadcastAt,
		&req.TransactionHash,
		&req.RawTransaction,
		&req.LastBroadcastError,
		&req.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(txData, &req.TransactionData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction data: %w", err)
	}
	if len(metadata) > 0 {
		req.Metadata = json.RawMessage(metadata)
	}

	return &req, nil
}

func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
