package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository handles multi-signature wallet data operations
type WalletRepository struct{}

const walletColumns = `
	id, owner_id, name, chain, address, required_signatures, total_signers,
	approval_ttl_seconds, status, created_at, updated_at
`

// CreateTx creates a new wallet
func (r *WalletRepository) CreateTx(ctx context.Context, db DBTX, wallet *types.MultiSigWallet) error {
	query := `
		INSERT INTO multisig_wallets (
			id, owner_id, name, chain, address, required_signatures, total_signers,
			approval_ttl_seconds, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := db.Exec(ctx, query,
		wallet.ID,
		wallet.OwnerID,
		wallet.Name,
		wallet.Chain,
		wallet.Address,
		wallet.Policy.RequiredSignatures(),
		wallet.Policy.TotalSigners(),
		int64(wallet.Policy.ApprovalTTL()/time.Second),
		wallet.Status,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByIDTx retrieves a wallet by ID, optionally taking a row lock
func (r *WalletRepository) GetByIDTx(ctx context.Context, db DBTX, id uuid.UUID, forUpdate bool) (*types.MultiSigWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM multisig_wallets WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	wallet, err := scanWallet(db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet by ID: %w", err)
	}

	return wallet, nil
}

// ListByOwner retrieves all wallets owned by a user
func (r *WalletRepository) ListByOwner(ctx context.Context, db DBTX, ownerID uuid.UUID) ([]*types.MultiSigWallet, error) {
	query := `SELECT ` + walletColumns + ` FROM multisig_wallets WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets by owner: %w", err)
	}
	defer rows.Close()

	var wallets []*types.MultiSigWallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, wallet)
	}

	return wallets, rows.Err()
}

// UpdateTx persists a wallet's mutable fields: status and address
func (r *WalletRepository) UpdateTx(ctx context.Context, db DBTX, wallet *types.MultiSigWallet) error {
	query := `
		UPDATE multisig_wallets
		SET status = $2, address = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := db.Exec(ctx, query, wallet.ID, wallet.Status, wallet.Address, wallet.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update wallet: %s not found", wallet.ID)
	}

	return nil
}

func scanWallet(row pgx.Row) (*types.MultiSigWallet, error) {
	var (
		wallet     types.MultiSigWallet
		required   int
		total      int
		ttlSeconds int64
	)

	err := row.Scan(
		&wallet.ID,
		&wallet.OwnerID,
		&wallet.Name,
		&wallet.Chain,
		&wallet.Address,
		&required,
		&total,
		&ttlSeconds,
		&wallet.Status,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	policy, err := types.NewWalletPolicy(required, total, time.Duration(ttlSeconds)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("stored policy for wallet %s is invalid: %w", wallet.ID, err)
	}
	wallet.Policy = policy

	return &wallet, nil
}
