package storage

import (
	"context"
	"errors"
	"time"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

var (
	// ErrVersionConflict is returned when an update targets a stale version of a row
	ErrVersionConflict = errors.New("row was modified concurrently")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint
	ErrDuplicate = errors.New("duplicate record")
)

// Reader is the read side shared by the repository and its transactions.
// Lookups of a missing record return nil, nil.
type Reader interface {
	GetWallet(ctx context.Context, id uuid.UUID) (*types.MultiSigWallet, error)
	ListSigners(ctx context.Context, walletID uuid.UUID, includeInactive bool) ([]*types.Signer, error)
	GetApprovalRequest(ctx context.Context, id uuid.UUID) (*types.ApprovalRequest, error)
	ListApprovals(ctx context.Context, requestID uuid.UUID) ([]*types.SignerApproval, error)
	GetHardwareWallet(ctx context.Context, id uuid.UUID) (*types.HardwareWallet, error)
}

// Tx is a unit of work. Lock* methods hold the row until the transaction ends.
type Tx interface {
	Reader

	LockWallet(ctx context.Context, id uuid.UUID) (*types.MultiSigWallet, error)
	CreateWallet(ctx context.Context, wallet *types.MultiSigWallet) error
	UpdateWallet(ctx context.Context, wallet *types.MultiSigWallet) error

	CreateSigner(ctx context.Context, signer *types.Signer) error
	DeactivateSigner(ctx context.Context, id uuid.UUID, at time.Time) error

	LockApprovalRequest(ctx context.Context, id uuid.UUID) (*types.ApprovalRequest, error)
	CreateApprovalRequest(ctx context.Context, req *types.ApprovalRequest) error
	// UpdateApprovalRequest writes req if its Version is current and bumps Version on success
	UpdateApprovalRequest(ctx context.Context, req *types.ApprovalRequest) error

	CreateApproval(ctx context.Context, approval *types.SignerApproval) error
	CreateAuditLog(ctx context.Context, log *types.AuditLog) error
}

// AuditQuery filters audit log reads
type AuditQuery struct {
	ResourceType string
	ResourceID   string
	Limit        int
}

// Repository is the persistence boundary of the approval engine
type Repository interface {
	Reader

	// RunInTx runs fn in a transaction, committing if fn returns nil
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	ListWalletsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*types.MultiSigWallet, error)
	ListApprovalRequests(ctx context.Context, walletID uuid.UUID, status *types.RequestStatus) ([]*types.ApprovalRequest, error)
	// ListPendingForSigner returns unexpired pending requests on wallets where userID is an
	// active signer that has not voted yet
	ListPendingForSigner(ctx context.Context, userID uuid.UUID, now time.Time) ([]*types.ApprovalRequest, error)
	// ListStalePending returns IDs of pending requests whose expiry is before now
	ListStalePending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListAuditLogs(ctx context.Context, q AuditQuery) ([]*types.AuditLog, error)
	CreateHardwareWallet(ctx context.Context, hw *types.HardwareWallet) error

	Ping(ctx context.Context) error
	Close()
}
