package multisig

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/better-wallet/multisig/internal/events"
	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/internal/storage"
	"github.com/better-wallet/multisig/internal/validation"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// CreateWalletInput describes a new multi-signature wallet
type CreateWalletInput struct {
	Name               string
	Chain              string
	RequiredSignatures int
	TotalSigners       int
	// ApprovalTTL overrides the service default when positive
	ApprovalTTL time.Duration
	// Address is optional; it can be assigned later once derived on chain
	Address string
}

// CreateWallet creates an active wallet with no signers
func (s *Service) CreateWallet(ctx context.Context, caller uuid.UUID, in CreateWalletInput) (*types.MultiSigWallet, error) {
	if err := validation.ValidateWalletName(in.Name); err != nil {
		return nil, apperrors.InvalidConfiguration(err.Error())
	}

	c, err := s.chains.Get(in.Chain)
	if err != nil {
		return nil, apperrors.InvalidConfiguration(fmt.Sprintf("unsupported chain %q, supported: %s",
			in.Chain, strings.Join(s.chains.Supported(), ", ")))
	}

	policy, err := types.NewWalletPolicy(in.RequiredSignatures, in.TotalSigners, in.ApprovalTTL)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	wallet := &types.MultiSigWallet{
		ID:        uuid.New(),
		OwnerID:   caller,
		Name:      strings.TrimSpace(in.Name),
		Chain:     c.Name,
		Policy:    policy,
		Status:    types.WalletStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.Address != "" {
		if err := c.Addresses.ValidateAddress(in.Address); err != nil {
			return nil, apperrors.InvalidConfiguration(err.Error())
		}
		wallet.Address = &in.Address
	}

	err = s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateWallet(ctx, wallet); err != nil {
			return err
		}
		return audit(ctx, tx, caller.String(), "wallet.create", resourceWallet, wallet.ID, policy.Scheme()+" on "+wallet.Chain)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	logger.Info(ctx, "multisig wallet created",
		"wallet_id", wallet.ID, "chain", wallet.Chain, "scheme", policy.Scheme())
	s.emit(ctx, events.Event{Type: events.TypeWalletCreated, WalletID: wallet.ID, Actor: caller.String(), Status: wallet.Status})

	return wallet, nil
}

// GetWallet returns a wallet visible to its owner and active signers
func (s *Service) GetWallet(ctx context.Context, caller, walletID uuid.UUID) (*types.MultiSigWallet, error) {
	wallet, err := getWallet(ctx, s.repo, walletID)
	if err != nil {
		return nil, err
	}
	if err := authorizeMember(ctx, s.repo, wallet, caller); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ListWallets returns the wallets owned by caller
func (s *Service) ListWallets(ctx context.Context, caller uuid.UUID) ([]*types.MultiSigWallet, error) {
	wallets, err := s.repo.ListWalletsByOwner(ctx, caller)
	if err != nil {
		return nil, err
	}
	if wallets == nil {
		wallets = []*types.MultiSigWallet{}
	}
	return wallets, nil
}

// SuspendWallet blocks new approval requests. In-flight requests are unaffected.
func (s *Service) SuspendWallet(ctx context.Context, caller, walletID uuid.UUID) (*types.MultiSigWallet, error) {
	return s.setWalletStatus(ctx, caller, walletID, types.WalletStatusSuspended, "wallet.suspend", events.TypeWalletSuspended)
}

// ReactivateWallet lifts a suspension
func (s *Service) ReactivateWallet(ctx context.Context, caller, walletID uuid.UUID) (*types.MultiSigWallet, error) {
	return s.setWalletStatus(ctx, caller, walletID, types.WalletStatusActive, "wallet.reactivate", events.TypeWalletReactivated)
}

func (s *Service) setWalletStatus(ctx context.Context, caller, walletID uuid.UUID, status, action, eventType string) (*types.MultiSigWallet, error) {
	var (
		wallet  *types.MultiSigWallet
		changed bool
	)

	err := s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		var err error
		wallet, err = s.lockWallet(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if !wallet.IsOwner(caller) {
			return apperrors.ErrForbidden.WithDetail("only the wallet owner can change its status")
		}
		if wallet.Status == status {
			return nil
		}

		wallet.Status = status
		wallet.UpdatedAt = s.clock()
		if err := tx.UpdateWallet(ctx, wallet); err != nil {
			return err
		}
		changed = true
		return audit(ctx, tx, caller.String(), action, resourceWallet, wallet.ID, "")
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logger.Info(ctx, "multisig wallet status changed", "wallet_id", wallet.ID, "status", status)
		s.emit(ctx, events.Event{Type: eventType, WalletID: wallet.ID, Actor: caller.String(), Status: status})
	}
	return wallet, nil
}

// AssignAddress records the wallet's on-chain address. The first assignment wins.
func (s *Service) AssignAddress(ctx context.Context, caller, walletID uuid.UUID, address string) (*types.MultiSigWallet, error) {
	var wallet *types.MultiSigWallet

	err := s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		var err error
		wallet, err = s.lockWallet(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if !wallet.IsOwner(caller) {
			return apperrors.ErrForbidden.WithDetail("only the wallet owner can assign its address")
		}
		if wallet.Address != nil {
			return apperrors.ErrConflict.WithDetail("wallet address is already assigned")
		}

		c, err := s.chains.Get(wallet.Chain)
		if err != nil {
			return err
		}
		if err := c.Addresses.ValidateAddress(address); err != nil {
			return apperrors.InvalidConfiguration(err.Error())
		}

		wallet.Address = &address
		wallet.UpdatedAt = s.clock()
		if err := tx.UpdateWallet(ctx, wallet); err != nil {
			return err
		}
		return audit(ctx, tx, caller.String(), "wallet.assign_address", resourceWallet, wallet.ID, address)
	})
	if err != nil {
		return nil, err
	}

	return wallet, nil
}
