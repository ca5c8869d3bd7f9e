package storage

import (
	"context"
	"time"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// repos bundles the per-table repositories
type repos struct {
	wallets   WalletRepository
	signers   SignerRepository
	requests  ApprovalRequestRepository
	approvals SignerApprovalRepository
	audit     AuditRepository
	hardware  HardwareWalletRepository
}

// queries binds the repositories to a pool or an open transaction
type queries struct {
	db DBTX
	r  *repos
}

func (q queries) GetWallet(ctx context.Context, id uuid.UUID) (*types.MultiSigWallet, error) {
	return q.r.wallets.GetByIDTx(ctx, q.db, id, false)
}

func (q queries) ListSigners(ctx context.Context, walletID uuid.UUID, includeInactive bool) ([]*types.Signer, error) {
	return q.r.signers.ListByWallet(ctx, q.db, walletID, includeInactive)
}

func (q queries) GetApprovalRequest(ctx context.Context, id uuid.UUID) (*types.ApprovalRequest, error) {
	return q.r.requests.GetByIDTx(ctx, q.db, id, false)
}

func (q queries) ListApprovals(ctx context.Context, requestID uuid.UUID) ([]*types.SignerApproval, error) {
	return q.r.approvals.ListByRequest(ctx, q.db, requestID)
}

func (q queries) GetHardwareWallet(ctx context.Context, id uuid.UUID) (*types.HardwareWallet, error) {
	return q.r.hardware.GetByID(ctx, q.db, id)
}

// pgTx implements Tx on top of an open pgx transaction
type pgTx struct {
	queries
}

func (t pgTx) LockWallet(ctx context.Context, id uuid.UUID) (*types.MultiSigWallet, error) {
	return t.r.wallets.GetByIDTx(ctx, t.db, id, true)
}

func (t pgTx) CreateWallet(ctx context.Context, wallet *types.MultiSigWallet) error {
	return t.r.wallets.CreateTx(ctx, t.db, wallet)
}

func (t pgTx) UpdateWallet(ctx context.Context, wallet *types.MultiSigWallet) error {
	return t.r.wallets.UpdateTx(ctx, t.db, wallet)
}

func (t pgTx) CreateSigner(ctx context.Context, signer *types.Signer) error {
	return t.r.signers.CreateTx(ctx, t.db, signer)
}

func (t pgTx) DeactivateSigner(ctx context.Context, id uuid.UUID, at time.Time) error {
	return t.r.signers.DeactivateTx(ctx, t.db, id, at)
}

func (t pgTx) LockApprovalRequest(ctx context.Context, id uuid.UUID) (*types.ApprovalRequest, error) {
	return t.r.requests.GetByIDTx(ctx, t.db, id, true)
}

func (t pgTx) CreateApprovalRequest(ctx context.Context, req *types.ApprovalRequest) error {
	return t.r.requests.CreateTx(ctx, t.db, req)
}

func (t pgTx) UpdateApprovalRequest(ctx context.Context, req *types.ApprovalRequest) error {
	return t.r.requests.UpdateTx(ctx, t.db, req)
}

func (t pgTx) CreateApproval(ctx context.Context, approval *types.SignerApproval) error {
	return t.r.approvals.CreateTx(ctx, t.db, approval)
}

func (t pgTx) CreateAuditLog(ctx context.Context, log *types.AuditLog) error {
	return t.r.audit.CreateTx(ctx, t.db, log)
}

// PostgresRepository combines the table repositories into a Repository
type PostgresRepository struct {
	queries
	store *Store
}

// NewPostgresRepository creates a repository backed by store
func NewPostgresRepository(store *Store) *PostgresRepository {
	r := &repos{}
	return &PostgresRepository{
		queries: queries{db: store.pool, r: r},
		store:   store,
	}
}

// RunInTx runs fn in a database transaction
func (p *PostgresRepository) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	return p.store.InTx(ctx, func(db DBTX) error {
		return fn(pgTx{queries: queries{db: db, r: p.r}})
	})
}

// ListWalletsByOwner lists the wallets a user owns
func (p *PostgresRepository) ListWalletsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*types.MultiSigWallet, error) {
	return p.r.wallets.ListByOwner(ctx, p.db, ownerID)
}

// ListApprovalRequests lists a wallet's requests
func (p *PostgresRepository) ListApprovalRequests(ctx context.Context, walletID uuid.UUID, status *types.RequestStatus) ([]*types.ApprovalRequest, error) {
	return p.r.requests.ListByWallet(ctx, p.db, walletID, status)
}

// ListPendingForSigner lists requests awaiting a user's vote
func (p *PostgresRepository) ListPendingForSigner(ctx context.Context, userID uuid.UUID, now time.Time) ([]*types.ApprovalRequest, error) {
	return p.r.requests.ListPendingForSigner(ctx, p.db, userID, now)
}

// ListStalePending lists pending requests past their expiry
func (p *PostgresRepository) ListStalePending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return p.r.requests.ListStalePending(ctx, p.db, now, limit)
}

// ListAuditLogs queries the audit trail
func (p *PostgresRepository) ListAuditLogs(ctx context.Context, q AuditQuery) ([]*types.AuditLog, error) {
	return p.r.audit.Query(ctx, p.db, q)
}

// CreateHardwareWallet registers a hardware device
func (p *PostgresRepository) CreateHardwareWallet(ctx context.Context, hw *types.HardwareWallet) error {
	return p.r.hardware.Create(ctx, p.db, hw)
}

// Ping checks database connectivity
func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.store.Ping(ctx)
}

// Close closes the pool
func (p *PostgresRepository) Close() {
	p.store.Close()
}

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Tx         = pgTx{}
)
