package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Signer is a key registered on a wallet as eligible to approve requests.
// Signers are deactivated, never deleted, so past approvals keep their audit trail.
type Signer struct {
	ID               uuid.UUID  `json:"id"`
	WalletID         uuid.UUID  `json:"wallet_id"`
	SignerType       SignerType `json:"signer_type"`
	UserID           *uuid.UUID `json:"user_id,omitempty"`
	HardwareWalletID *uuid.UUID `json:"hardware_wallet_id,omitempty"`
	PublicKey        string     `json:"public_key"`
	Address          *string    `json:"address,omitempty"`
	Label            *string    `json:"label,omitempty"`
	Active           bool       `json:"active"`
	Order            int        `json:"order"`
	CreatedAt        time.Time  `json:"created_at"`
	DeactivatedAt    *time.Time `json:"deactivated_at,omitempty"`
}

// BelongsTo reports whether the signer is linked to userID
func (s *Signer) BelongsTo(userID uuid.UUID) bool {
	return s.UserID != nil && *s.UserID == userID
}

// HasPublicKey compares hex public keys case-insensitively, ignoring a 0x prefix
func (s *Signer) HasPublicKey(publicKeyHex string) bool {
	return NormalizeHex(s.PublicKey) == NormalizeHex(publicKeyHex)
}

// NormalizeHex lowercases a hex string and strips surrounding space and any 0x prefix
func NormalizeHex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "0x")
}

// HardwareWallet is a registered hardware device association
type HardwareWallet struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	DeviceType string    `json:"device_type"`
	PublicKey  string    `json:"public_key"`
	Address    string    `json:"address"`
	CreatedAt  time.Time `json:"created_at"`
}
