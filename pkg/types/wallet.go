package types

import (
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/google/uuid"
)

// WalletPolicy is the M-of-N policy of a multi-signature wallet.
// It is fixed when the wallet is created and never mutated afterwards.
type WalletPolicy struct {
	requiredSignatures int
	totalSigners       int
	approvalTTL        time.Duration
}

// NewWalletPolicy validates and builds a wallet policy.
// approvalTTL of zero means the service-wide default applies.
func NewWalletPolicy(requiredSignatures, totalSigners int, approvalTTL time.Duration) (WalletPolicy, error) {
	if requiredSignatures < 1 {
		return WalletPolicy{}, apperrors.InvalidConfiguration("required_signatures must be at least 1")
	}
	if totalSigners < 2 {
		return WalletPolicy{}, apperrors.InvalidConfiguration("total_signers must be at least 2")
	}
	if requiredSignatures > totalSigners {
		return WalletPolicy{}, apperrors.InvalidConfiguration(
			fmt.Sprintf("required_signatures (%d) cannot exceed total_signers (%d)", requiredSignatures, totalSigners))
	}
	if totalSigners > MaxSigners {
		return WalletPolicy{}, apperrors.InvalidConfiguration(
			fmt.Sprintf("total_signers cannot exceed %d", MaxSigners))
	}
	if approvalTTL < 0 {
		return WalletPolicy{}, apperrors.InvalidConfiguration("approval_ttl cannot be negative")
	}
	return WalletPolicy{
		requiredSignatures: requiredSignatures,
		totalSigners:       totalSigners,
		approvalTTL:        approvalTTL,
	}, nil
}

// RequiredSignatures returns M
func (p WalletPolicy) RequiredSignatures() int { return p.requiredSignatures }

// TotalSigners returns N
func (p WalletPolicy) TotalSigners() int { return p.totalSigners }

// ApprovalTTL returns the per-wallet TTL override, zero if unset
func (p WalletPolicy) ApprovalTTL() time.Duration { return p.approvalTTL }

// Scheme returns the "M-of-N" descriptor
func (p WalletPolicy) Scheme() string {
	return fmt.Sprintf("%d-of-%d", p.requiredSignatures, p.totalSigners)
}

// TTLOr returns the wallet TTL, or fallback when the wallet does not override it
func (p WalletPolicy) TTLOr(fallback time.Duration) time.Duration {
	if p.approvalTTL > 0 {
		return p.approvalTTL
	}
	return fallback
}

// MarshalJSON exposes the policy fields and derived scheme
func (p WalletPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RequiredSignatures int    `json:"required_signatures"`
		TotalSigners       int    `json:"total_signers"`
		Scheme             string `json:"scheme"`
		ApprovalTTLSeconds int64  `json:"approval_ttl_seconds,omitempty"`
	}{
		RequiredSignatures: p.requiredSignatures,
		TotalSigners:       p.totalSigners,
		Scheme:             p.Scheme(),
		ApprovalTTLSeconds: int64(p.approvalTTL / time.Second),
	})
}

// MultiSigWallet is a wallet that requires M-of-N signer approval for outbound activity
type MultiSigWallet struct {
	ID        uuid.UUID    `json:"id"`
	OwnerID   uuid.UUID    `json:"owner_id"`
	Name      string       `json:"name"`
	Chain     string       `json:"chain"`
	Address   *string      `json:"address,omitempty"`
	Policy    WalletPolicy `json:"policy"`
	Status    string       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// IsActive reports whether new approval requests may be opened on the wallet
func (w *MultiSigWallet) IsActive() bool {
	return w.Status == WalletStatusActive
}

// IsOwner reports whether userID owns the wallet
func (w *MultiSigWallet) IsOwner(userID uuid.UUID) bool {
	return w.OwnerID == userID
}
