// Package events publishes approval lifecycle events to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/better-wallet/multisig/internal/logger"
	"github.com/google/uuid"
)

// Event types
const (
	TypeWalletCreated     = "wallet.created"
	TypeWalletSuspended   = "wallet.suspended"
	TypeWalletReactivated = "wallet.reactivated"
	TypeSignerAdded       = "signer.added"
	TypeSignerRemoved     = "signer.removed"
	TypeRequestCreated    = "approval.created"
	TypeSignatureAdded    = "approval.signed"
	TypeRequestApproved   = "approval.approved"
	TypeRequestRejected   = "approval.rejected"
	TypeRequestExpired    = "approval.expired"
	TypeBroadcast         = "approval.broadcast"
	TypeBroadcastFailed   = "approval.broadcast_failed"
)

// Event is a state change in the approval engine
type Event struct {
	Type       string     `json:"type"`
	WalletID   uuid.UUID  `json:"wallet_id"`
	RequestID  *uuid.UUID `json:"request_id,omitempty"`
	SignerID   *uuid.UUID `json:"signer_id,omitempty"`
	Actor      string     `json:"actor,omitempty"`
	Status     string     `json:"status,omitempty"`
	TxHash     string     `json:"tx_hash,omitempty"`
	Error      string     `json:"error,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Key partitions events so all events of one wallet stay ordered
func (e Event) Key() string {
	return e.WalletID.String()
}

// Emitter publishes events. Events are emitted after the state change commits.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}

// LogEmitter writes events to the structured log. It is used when no broker is configured.
type LogEmitter struct{}

// Emit logs the event
func (LogEmitter) Emit(ctx context.Context, event Event) error {
	args := []any{"type", event.Type, "wallet_id", event.WalletID}
	if event.RequestID != nil {
		args = append(args, "request_id", *event.RequestID)
	}
	if event.Status != "" {
		args = append(args, "status", event.Status)
	}
	if event.TxHash != "" {
		args = append(args, "tx_hash", event.TxHash)
	}
	logger.Debug(ctx, "lifecycle event", args...)
	return nil
}

// Close is a no-op
func (LogEmitter) Close() error { return nil }
