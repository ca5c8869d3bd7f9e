package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HardwareWalletRepository handles hardware device associations
type HardwareWalletRepository struct{}

// Create registers a hardware device for its owner
func (r *HardwareWalletRepository) Create(ctx context.Context, db DBTX, hw *types.HardwareWallet) error {
	query := `
		INSERT INTO hardware_wallets (id, owner_id, device_type, public_key, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := db.QueryRow(ctx, query, hw.ID, hw.OwnerID, hw.DeviceType, hw.PublicKey, hw.Address).Scan(&hw.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("failed to create hardware wallet: %w", ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create hardware wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a hardware device by ID
func (r *HardwareWalletRepository) GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*types.HardwareWallet, error) {
	query := `
		SELECT id, owner_id, device_type, public_key, address, created_at
		FROM hardware_wallets
		WHERE id = $1
	`

	var hw types.HardwareWallet
	err := db.QueryRow(ctx, query, id).Scan(
		&hw.ID,
		&hw.OwnerID,
		&hw.DeviceType,
		&hw.PublicKey,
		&hw.Address,
		&hw.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hardware wallet: %w", err)
	}

	return &hw, nil
}
