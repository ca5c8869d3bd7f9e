package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/google/uuid"
)

// memState is one consistent version of the in-memory data set.
// Records are stored by value; approval requests are deep-copied on write and
// read because their payload holds maps and byte slices.
type memState struct {
	wallets   map[uuid.UUID]types.MultiSigWallet
	signers   map[uuid.UUID]types.Signer
	requests  map[uuid.UUID]types.ApprovalRequest
	approvals map[uuid.UUID]types.SignerApproval
	hardware  map[uuid.UUID]types.HardwareWallet
	audit     []types.AuditLog
	auditSeq  int64
}

func newMemState() *memState {
	return &memState{
		wallets:   make(map[uuid.UUID]types.MultiSigWallet),
		signers:   make(map[uuid.UUID]types.Signer),
		requests:  make(map[uuid.UUID]types.ApprovalRequest),
		approvals: make(map[uuid.UUID]types.SignerApproval),
		hardware:  make(map[uuid.UUID]types.HardwareWallet),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		wallets:   make(map[uuid.UUID]types.MultiSigWallet, len(s.wallets)),
		signers:   make(map[uuid.UUID]types.Signer, len(s.signers)),
		requests:  make(map[uuid.UUID]types.ApprovalRequest, len(s.requests)),
		approvals: make(map[uuid.UUID]types.SignerApproval, len(s.approvals)),
		hardware:  make(map[uuid.UUID]types.HardwareWallet, len(s.hardware)),
		audit:     append([]types.AuditLog(nil), s.audit...),
		auditSeq:  s.auditSeq,
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.signers {
		c.signers[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.approvals {
		c.approvals[k] = v
	}
	for k, v := range s.hardware {
		c.hardware[k] = v
	}
	return c
}

// MemoryStore is an in-process Repository. Transactions are serialized by a single
// writer lock and applied atomically on commit, so a transaction sees the same
// isolation a row lock gives it in Postgres.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *memState
}

// NewMemoryStore creates an empty in-memory repository
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (m *MemoryStore) snapshot() *memState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// RunInTx runs fn against a private copy of the data and publishes it if fn succeeds
func (m *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := m.snapshot().clone()
	if err := fn(&memTx{state: working}); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = working
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetWallet(_ context.Context, id uuid.UUID) (*types.MultiSigWallet, error) {
	return m.snapshot().getWallet(id), nil
}

func (m *MemoryStore) ListSigners(_ context.Context, walletID uuid.UUID, includeInactive bool) ([]*types.Signer, error) {
	return m.snapshot().listSigners(walletID, includeInactive), nil
}

func (m *MemoryStore) GetApprovalRequest(_ context.Context, id uuid.UUID) (*types.ApprovalRequest, error) {
	return m.snapshot().getRequest(id), nil
}

func (m *MemoryStore) ListApprovals(_ context.Context, requestID uuid.UUID) ([]*types.SignerApproval, error) {
	return m.snapshot().listApprovals(requestID), nil
}

func (m *MemoryStore) GetHardwareWallet(_ context.Context, id uuid.UUID) (*types.HardwareWallet, error) {
	return m.snapshot().getHardware(id), nil
}

func (m *MemoryStore) ListWalletsByOwner(_ context.Context, ownerID uuid.UUID) ([]*types.MultiSigWallet, error) {
	s := m.snapshot()
	var out []*types.MultiSigWallet
	for _, w := range s.wallets {
		if w.OwnerID == ownerID {
			w := w
			out = append(out, &w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListApprovalRequests(_ context.Context, walletID uuid.UUID, status *types.RequestStatus) ([]*types.ApprovalRequest, error) {
	s := m.snapshot()
	var out []*types.ApprovalRequest
	for _, r := range s.requests {
		if r.WalletID != walletID || (status != nil && r.Status != *status) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListPendingForSigner(_ context.Context, userID uuid.UUID, now time.Time) ([]*types.ApprovalRequest, error) {
	s := m.snapshot()

	signerByWallet := make(map[uuid.UUID]uuid.UUID)
	for _, sg := range s.signers {
		if sg.Active && sg.BelongsTo(userID) {
			signerByWallet[sg.WalletID] = sg.ID
		}
	}

	voted := make(map[[2]uuid.UUID]bool)
	for _, a := range s.approvals {
		voted[[2]uuid.UUID{a.ApprovalRequestID, a.SignerID}] = true
	}

	var out []*types.ApprovalRequest
	for _, r := range s.requests {
		signerID, ok := signerByWallet[r.WalletID]
		if !ok || r.Status != types.RequestStatusPending || !r.ExpiresAt.After(now) {
			continue
		}
		if voted[[2]uuid.UUID{r.ID, signerID}] {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (m *MemoryStore) ListStalePending(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s := m.snapshot()
	var stale []types.ApprovalRequest
	for _, r := range s.requests {
		if r.Status == types.RequestStatusPending && r.ExpiresAt.Before(now) {
			stale = append(stale, r)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ExpiresAt.Before(stale[j].ExpiresAt) })

	ids := make([]uuid.UUID, 0, len(stale))
	for i, r := range stale {
		if limit > 0 && i >= limit {
			break
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *MemoryStore) ListAuditLogs(_ context.Context, q AuditQuery) ([]*types.AuditLog, error) {
	s := m.snapshot()
	var out []*types.AuditLog
	for i := len(s.audit) - 1; i >= 0; i-- {
		l := s.audit[i]
		if (q.ResourceType != "" && l.ResourceType != q.ResourceType) ||
			(q.ResourceID != "" && l.ResourceID != q.ResourceID) {
			continue
		}
		out = append(out, &l)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// CreateHardwareWallet registers a hardware device
func (m *MemoryStore) CreateHardwareWallet(ctx context.Context, hw *types.HardwareWallet) error {
	return m.RunInTx(ctx, func(tx Tx) error {
		return tx.(*memTx).createHardwareWallet(hw)
	})
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() {}

func (s *memState) getWallet(id uuid.UUID) *types.MultiSigWallet {
	w, ok := s.wallets[id]
	if !ok {
		return nil
	}
	return &w
}

func (s *memState) listSigners(walletID uuid.UUID, includeInactive bool) []*types.Signer {
	var out []*types.Signer
	for _, sg := range s.signers {
		if sg.WalletID == walletID && (sg.Active || includeInactive) {
			sg := sg
			out = append(out, &sg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func (s *memState) getRequest(id uuid.UUID) *types.ApprovalRequest {
	r, ok := s.requests[id]
	if !ok {
		return nil
	}
	return r.Clone()
}

func (s *memState) listApprovals(requestID uuid.UUID) []*types.SignerApproval {
	var out []*types.SignerApproval
	for _, a := range s.approvals {
		if a.ApprovalRequestID == requestID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DecidedAt.Equal(out[j].DecidedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].DecidedAt.Before(out[j].DecidedAt)
	})
	return out
}

func (s *memState) getHardware(id uuid.UUID) *types.HardwareWallet {
	hw, ok := s.hardware[id]
	if !ok {
		return nil
	}
	return &hw
}

// memTx works on a private copy of the state owned by one RunInTx call
type memTx struct {
	state *memState
}

func (t *memTx) GetWallet(_ context.Context, id uuid.UUID) (*types.MultiSigWallet, error) {
	return t.state.getWallet(id), nil
}

func (t *memTx) ListSigners(_ context.Context, walletID uuid.UUID, includeInactive bool) ([]*types.Signer, error) {
	return t.state.listSigners(walletID, includeInactive), nil
}

func (t *memTx) GetApprovalRequest(_ context.Context, id uuid.UUID) (*types.ApprovalRequest, error) {
	return t.state.getRequest(id), nil
}

func (t *memTx) ListApprovals(_ context.Context, requestID uuid.UUID) ([]*types.SignerApproval, error) {
	return t.state.listApprovals(requestID), nil
}

func (t *memTx) GetHardwareWallet(_ context.Context, id uuid.UUID) (*types.HardwareWallet, error) {
	return t.state.getHardware(id), nil
}

func (t *memTx) LockWallet(_ context.Context, id uuid.UUID) (*types.MultiSigWallet, error) {
	return t.state.getWallet(id), nil
}

func (t *memTx) CreateWallet(_ context.Context, wallet *types.MultiSigWallet) error {
	if _, ok := t.state.wallets[wallet.ID]; ok {
		return fmt.Errorf("failed to create wallet: %w", ErrDuplicate)
	}
	t.state.wallets[wallet.ID] = *wallet
	return nil
}

func (t *memTx) UpdateWallet(_ context.Context, wallet *types.MultiSigWallet) error {
	stored, ok := t.state.wallets[wallet.ID]
	if !ok {
		return fmt.Errorf("failed to update wallet: %s not found", wallet.ID)
	}
	stored.Status = wallet.Status
	stored.Address = wallet.Address
	stored.UpdatedAt = wallet.UpdatedAt
	t.state.wallets[wallet.ID] = stored
	return nil
}

func (t *memTx) CreateSigner(_ context.Context, signer *types.Signer) error {
	for _, sg := range t.state.signers {
		if sg.WalletID == signer.WalletID && sg.Active && sg.HasPublicKey(signer.PublicKey) {
			return fmt.Errorf("failed to create signer: %w", ErrDuplicate)
		}
	}
	t.state.signers[signer.ID] = *signer
	return nil
}

func (t *memTx) DeactivateSigner(_ context.Context, id uuid.UUID, at time.Time) error {
	sg, ok := t.state.signers[id]
	if !ok || !sg.Active {
		return fmt.Errorf("failed to deactivate signer: %s is not active", id)
	}
	sg.Active = false
	sg.DeactivatedAt = &at
	t.state.signers[id] = sg
	return nil
}

func (t *memTx) LockApprovalRequest(_ context.Context, id uuid.UUID) (*types.ApprovalRequest, error) {
	return t.state.getRequest(id), nil
}

func (t *memTx) CreateApprovalRequest(_ context.Context, req *types.ApprovalRequest) error {
	if _, ok := t.state.requests[req.ID]; ok {
		return fmt.Errorf("failed to create approval request: %w", ErrDuplicate)
	}
	t.state.requests[req.ID] = *req.Clone()
	return nil
}

func (t *memTx) UpdateApprovalRequest(_ context.Context, req *types.ApprovalRequest) error {
	stored, ok := t.state.requests[req.ID]
	if !ok || stored.Version != req.Version {
		return ErrVersionConflict
	}
	updated := *req.Clone()
	updated.Version++
	t.state.requests[req.ID] = updated
	req.Version = updated.Version
	return nil
}

func (t *memTx) CreateApproval(_ context.Context, approval *types.SignerApproval) error {
	for _, a := range t.state.approvals {
		if a.ApprovalRequestID == approval.ApprovalRequestID && a.SignerID == approval.SignerID {
			return fmt.Errorf("failed to record signer approval: %w", ErrDuplicate)
		}
	}
	t.state.approvals[approval.ID] = *approval
	return nil
}

func (t *memTx) CreateAuditLog(_ context.Context, log *types.AuditLog) error {
	t.state.auditSeq++
	log.ID = t.state.auditSeq
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	t.state.audit = append(t.state.audit, *log)
	return nil
}

func (t *memTx) createHardwareWallet(hw *types.HardwareWallet) error {
	if _, ok := t.state.hardware[hw.ID]; ok {
		return fmt.Errorf("failed to create hardware wallet: %w", ErrDuplicate)
	}
	if hw.CreatedAt.IsZero() {
		hw.CreatedAt = time.Now().UTC()
	}
	t.state.hardware[hw.ID] = *hw
	return nil
}

var (
	_ Repository = (*MemoryStore)(nil)
	_ Tx         = (*memTx)(nil)
)
