package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SignerRepository handles wallet signer data operations
type SignerRepository struct{}

// CreateTx registers a signer on a wallet
func (r *SignerRepository) CreateTx(ctx context.Context, db DBTX, signer *types.Signer) error {
	query := `
		INSERT INTO multisig_signers (
			id, wallet_id, signer_type, user_id, hardware_wallet_id, public_key,
			address, label, active, signer_order, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := db.Exec(ctx, query,
		signer.ID,
		signer.WalletID,
		signer.SignerType,
		signer.UserID,
		signer.HardwareWalletID,
		signer.PublicKey,
		signer.Address,
		signer.Label,
		signer.Active,
		signer.Order,
		signer.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to create signer: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	return nil
}

// ListByWallet lists a wallet's signers in registration order
func (r *SignerRepository) ListByWallet(ctx context.Context, db DBTX, walletID uuid.UUID, includeInactive bool) ([]*types.Signer, error) {
	query := `
		SELECT id, wallet_id, signer_type, user_id, hardware_wallet_id, public_key,
		       address, label, active, signer_order, created_at, deactivated_at
		FROM multisig_signers
		WHERE wallet_id = $1 AND (active OR $2)
		ORDER BY signer_order
	`

	rows, err := db.Query(ctx, query, walletID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list signers: %w", err)
	}
	defer rows.Close()

	signers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*types.Signer, error) {
		var s types.Signer
		err := row.Scan(
			&s.ID,
			&s.WalletID,
			&s.SignerType,
			&s.UserID,
			&s.HardwareWalletID,
			&s.PublicKey,
			&s.Address,
			&s.Label,
			&s.Active,
			&s.Order,
			&s.CreatedAt,
			&s.DeactivatedAt,
		)
		return &s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan signer: %w", err)
	}

	return signers, nil
}

// DeactivateTx marks an active signer inactive
func (r *SignerRepository) DeactivateTx(ctx context.Context, db DBTX, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE multisig_signers
		SET active = FALSE, deactivated_at = $2
		WHERE id = $1 AND active
	`

	tag, err := db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to deactivate signer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to deactivate signer: %s is not active", id)
	}

	return nil
}
