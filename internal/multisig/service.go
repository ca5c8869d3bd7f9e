// Package multisig implements the M-of-N approval engine: wallet policies, signer
// registries, the approval request state machine, and the broadcast gate.
package multisig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/better-wallet/multisig/internal/chain"
	"github.com/better-wallet/multisig/internal/config"
	"github.com/better-wallet/multisig/internal/events"
	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/internal/storage"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// Audit resource types
const (
	resourceWallet  = "multisig_wallet"
	resourceSigner  = "multisig_signer"
	resourceRequest = "approval_request"
)

// SystemActor is recorded as the actor of changes made by background jobs
const SystemActor = "system"

// DefaultMaxTransactionData caps the encoded size of transaction_data.data
const DefaultMaxTransactionData = 128 * 1024

// HardwareWalletLookup resolves hardware device associations for signer cross-checks
type HardwareWalletLookup interface {
	GetHardwareWallet(ctx context.Context, id uuid.UUID) (*types.HardwareWallet, error)
}

// Service is the approval engine
type Service struct {
	repo        storage.Repository
	chains      *chain.Registry
	hardware    HardwareWalletLookup
	emitter     events.Emitter
	now         func() time.Time
	defaultTTL  time.Duration
	maxDataSize int
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithEmitter sets the lifecycle event emitter
func WithEmitter(e events.Emitter) Option {
	return func(s *Service) { s.emitter = e }
}

// WithHardwareLookup sets the hardware wallet association lookup
func WithHardwareLookup(h HardwareWalletLookup) Option {
	return func(s *Service) { s.hardware = h }
}

// WithDefaultTTL sets the approval TTL used when a wallet has no override
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) { s.defaultTTL = ttl }
}

// NewService creates the approval engine. The repository doubles as the hardware
// wallet lookup unless WithHardwareLookup says otherwise.
func NewService(repo storage.Repository, chains *chain.Registry, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		chains:      chains,
		hardware:    repo,
		emitter:     events.LogEmitter{},
		now:         func() time.Time { return time.Now() },
		defaultTTL:  config.DefaultApprovalTTL,
		maxDataSize: DefaultMaxTransactionData,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// clock returns the current time at the precision Postgres stores
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock()
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		logger.Warn(ctx, "failed to emit lifecycle event", "type", event.Type, "error", err)
	}
}

func audit(ctx context.Context, tx storage.Tx, actor, action, resourceType string, resourceID uuid.UUID, detail string) error {
	entry := &types.AuditLog{
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID.String(),
	}
	if detail != "" {
		entry.Detail = &detail
	}
	if err := tx.CreateAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *Service) lockWallet(ctx context.Context, tx storage.Tx, id uuid.UUID) (*types.MultiSigWallet, error) {
	wallet, err := tx.LockWallet(ctx, id)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperrors.NotFound("Wallet", id.String())
	}
	return wallet, nil
}

func (s *Service) lockRequest(ctx context.Context, tx storage.Tx, id uuid.UUID) (*types.ApprovalRequest, error) {
	req, err := tx.LockApprovalRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NotFound("Approval request", id.String())
	}
	return req, nil
}

func getWallet(ctx context.Context, r storage.Reader, id uuid.UUID) (*types.MultiSigWallet, error) {
	wallet, err := r.GetWallet(ctx, id)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, apperrors.NotFound("Wallet", id.String())
	}
	return wallet, nil
}

// authorizeMember allows the wallet owner or any active signer linked to caller
func authorizeMember(ctx context.Context, r storage.Reader, wallet *types.MultiSigWallet, caller uuid.UUID) error {
	if wallet.IsOwner(caller) {
		return nil
	}
	signers, err := r.ListSigners(ctx, wallet.ID, false)
	if err != nil {
		return err
	}
	for _, sg := range signers {
		if sg.BelongsTo(caller) {
			return nil
		}
	}
	return apperrors.ErrForbidden.WithDetail("caller is neither the wallet owner nor an active signer")
}

// storageConflict maps optimistic concurrency failures to a retryable conflict
func storageConflict(err error) error {
	if errors.Is(err, storage.ErrVersionConflict) {
		return apperrors.ErrConflict.WithDetail("approval request was modified concurrently, retry")
	}
	return err
}
