package multisig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/better-wallet/multisig/internal/events"
	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/internal/storage"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// AddSignerInput describes a signer to register on a wallet
type AddSignerInput struct {
	SignerType       types.SignerType
	PublicKey        string
	Address          string
	UserID           *uuid.UUID
	HardwareWalletID *uuid.UUID
	Label            string
}

// AddSigner registers a signer. The wallet row stays locked so capacity and
// duplicate checks cannot race with a concurrent AddSigner.
func (s *Service) AddSigner(ctx context.Context, caller, walletID uuid.UUID, in AddSignerInput) (*types.Signer, error) {
	if !in.SignerType.IsValid() {
		return nil, apperrors.InvalidConfiguration(fmt.Sprintf("unknown signer type %q", in.SignerType))
	}
	publicKey := types.NormalizeHex(in.PublicKey)

	var signer *types.Signer
	err := s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if !wallet.IsOwner(caller) {
			return apperrors.ErrForbidden.WithDetail("only the wallet owner can add signers")
		}

		c, err := s.chains.Get(wallet.Chain)
		if err != nil {
			return err
		}
		if err := c.Verifier.ValidatePublicKey(publicKey); err != nil {
			return apperrors.InvalidConfiguration(err.Error())
		}

		if err := s.checkSignerLinks(ctx, in, publicKey); err != nil {
			return err
		}

		all, err := tx.ListSigners(ctx, wallet.ID, true)
		if err != nil {
			return err
		}
		active := 0
		for _, existing := range all {
			if !existing.Active {
				continue
			}
			active++
			if err := checkDuplicateSigner(existing, in, publicKey); err != nil {
				return err
			}
		}
		if active >= wallet.Policy.TotalSigners() {
			return apperrors.ErrCapacityExceeded.WithDetailf("wallet allows %d signers", wallet.Policy.TotalSigners())
		}

		address := strings.TrimSpace(in.Address)
		if address == "" {
			address, err = c.Addresses.DeriveAddress(publicKey)
			if err != nil {
				return apperrors.InvalidConfiguration(err.Error())
			}
		} else if err := c.Addresses.ValidateAddress(address); err != nil {
			return apperrors.InvalidConfiguration(err.Error())
		}

		signer = &types.Signer{
			ID:               uuid.New(),
			WalletID:         wallet.ID,
			SignerType:       in.SignerType,
			UserID:           in.UserID,
			HardwareWalletID: in.HardwareWalletID,
			PublicKey:        publicKey,
			Address:          &address,
			Active:           true,
			Order:            len(all) + 1,
			CreatedAt:        s.clock(),
		}
		if label := strings.TrimSpace(in.Label); label != "" {
			signer.Label = &label
		}

		if err := tx.CreateSigner(ctx, signer); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return apperrors.ErrDuplicateSigner
			}
			return err
		}
		return audit(ctx, tx, caller.String(), "signer.add", resourceSigner, signer.ID,
			fmt.Sprintf("wallet=%s type=%s", wallet.ID, signer.SignerType))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "signer added", "wallet_id", walletID, "signer_id", signer.ID, "signer_type", signer.SignerType)
	s.emit(ctx, events.Event{Type: events.TypeSignerAdded, WalletID: walletID, SignerID: &signer.ID, Actor: caller.String()})

	return signer, nil
}

// checkSignerLinks enforces the user/device links each signer type requires
func (s *Service) checkSignerLinks(ctx context.Context, in AddSignerInput, publicKey string) error {
	switch {
	case in.SignerType == types.SignerTypeInternal:
		if in.UserID == nil {
			return apperrors.InvalidConfiguration("internal signers require a user_id")
		}
	case in.SignerType.IsHardware():
		if in.HardwareWalletID == nil {
			return apperrors.InvalidConfiguration("hardware signers require a hardware_wallet_id")
		}
		hw, err := s.hardware.GetHardwareWallet(ctx, *in.HardwareWalletID)
		if err != nil {
			return err
		}
		if hw == nil {
			return apperrors.NotFound("Hardware wallet", in.HardwareWalletID.String())
		}
		if hw.DeviceType != in.SignerType.DeviceType() {
			return apperrors.InvalidConfiguration(fmt.Sprintf("hardware wallet is a %s device, signer type is %s", hw.DeviceType, in.SignerType))
		}
		if types.NormalizeHex(hw.PublicKey) != publicKey {
			return apperrors.ErrPublicKeyMismatch.WithDetail("public key does not match the hardware wallet")
		}
	}
	return nil
}

func checkDuplicateSigner(existing *types.Signer, in AddSignerInput, publicKey string) error {
	if existing.HasPublicKey(publicKey) {
		return apperrors.ErrDuplicateSigner.WithDetail("public key is already an active signer")
	}
	if in.HardwareWalletID != nil && existing.HardwareWalletID != nil && *existing.HardwareWalletID == *in.HardwareWalletID {
		return apperrors.ErrDuplicateSigner.WithDetail("hardware wallet is already an active signer")
	}
	if in.UserID != nil && existing.BelongsTo(*in.UserID) {
		return apperrors.ErrDuplicateSigner.WithDetail("user is already an active signer")
	}
	return nil
}

// RemoveSigner deactivates a signer. Removal is refused when the remaining active
// signers could no longer reach the wallet's quorum.
func (s *Service) RemoveSigner(ctx context.Context, caller, walletID, signerID uuid.UUID) error {
	err := s.repo.RunInTx(ctx, func(tx storage.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, walletID)
		if err != nil {
			return err
		}
		if !wallet.IsOwner(caller) {
			return apperrors.ErrForbidden.WithDetail("only the wallet owner can remove signers")
		}

		active, err := tx.ListSigners(ctx, wallet.ID, false)
		if err != nil {
			return err
		}

		found := false
		for _, sg := range active {
			if sg.ID == signerID {
				found = true
				break
			}
		}
		if !found {
			return apperrors.NotFound("Signer", signerID.String())
		}

		if len(active)-1 < wallet.Policy.RequiredSignatures() {
			return apperrors.ErrQuorumUnreachable.WithDetailf("%d active signers would remain, %d required",
				len(active)-1, wallet.Policy.RequiredSignatures())
		}

		if err := tx.DeactivateSigner(ctx, signerID, s.clock()); err != nil {
			return err
		}
		return audit(ctx, tx, caller.String(), "signer.remove", resourceSigner, signerID, "wallet="+wallet.ID.String())
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "signer removed", "wallet_id", walletID, "signer_id", signerID)
	s.emit(ctx, events.Event{Type: events.TypeSignerRemoved, WalletID: walletID, SignerID: &signerID, Actor: caller.String()})

	return nil
}

// ListSigners lists a wallet's signers in registration order
func (s *Service) ListSigners(ctx context.Context, caller, walletID uuid.UUID, includeInactive bool) ([]*types.Signer, error) {
	wallet, err := getWallet(ctx, s.repo, walletID)
	if err != nil {
		return nil, err
	}
	if err := authorizeMember(ctx, s.repo, wallet, caller); err != nil {
		return nil, err
	}

	signers, err := s.repo.ListSigners(ctx, walletID, includeInactive)
	if err != nil {
		return nil, err
	}
	if signers == nil {
		signers = []*types.Signer{}
	}
	return signers, nil
}
