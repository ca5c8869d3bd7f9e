package multisig

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/better-wallet/multisig/internal/chain"
	"github.com/better-wallet/multisig/internal/events"
	"github.com/better-wallet/multisig/internal/storage"
	"github.com/better-wallet/multisig/pkg/auth"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEmitter) Close() error { return nil }

func (r *recordingEmitter) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// countingBroadcaster wraps a broadcaster, counts calls, and can be told to fail
type countingBroadcaster struct {
	inner chain.Broadcaster
	calls atomic.Int32
	fail  atomic.Bool
	delay time.Duration
}

func (b *countingBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (*chain.BroadcastResult, error) {
	b.calls.Add(1)
	if b.delay > 0 {
		time.Sleep(b.delay)
	}
	if b.fail.Load() {
		return nil, errors.New("node unavailable")
	}
	return b.inner.Broadcast(ctx, rawTx)
}

type fixture struct {
	t           *testing.T
	ctx         context.Context
	store       *storage.MemoryStore
	svc         *Service
	clock       *fakeClock
	emitter     *recordingEmitter
	broadcaster *countingBroadcaster
	owner       uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	registry := chain.NewDryRunRegistry(&chaincfg.RegressionNetParams)
	broadcaster := &countingBroadcaster{inner: chain.EVMDryRunBroadcaster{}}
	registry.Register(&chain.Chain{
		Name:        types.ChainEthereum,
		Family:      chain.FamilyEVM,
		Verifier:    chain.EVMVerifier{},
		Addresses:   chain.EVMAddressCodec{},
		Broadcaster: broadcaster,
	})

	store := storage.NewMemoryStore()
	clock := newFakeClock()
	emitter := &recordingEmitter{}

	return &fixture{
		t:           t,
		ctx:         context.Background(),
		store:       store,
		svc:         NewService(store, registry, WithClock(clock.Now), WithEmitter(emitter), WithDefaultTTL(48*time.Hour)),
		clock:       clock,
		emitter:     emitter,
		broadcaster: broadcaster,
		owner:       uuid.New(),
	}
}

// member is a user with an internal signer key
type member struct {
	userID uuid.UUID
	key    *ecdsa.PrivateKey
	signer *types.Signer
}

func (m *member) publicKey() string {
	return hex.EncodeToString(crypto.FromECDSAPub(&m.key.PublicKey))
}

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func (f *fixture) createWallet(required, total int, ttl time.Duration) *types.MultiSigWallet {
	f.t.Helper()
	wallet, err := f.svc.CreateWallet(f.ctx, f.owner, CreateWalletInput{
		Name:               "treasury",
		Chain:              types.ChainEthereum,
		RequiredSignatures: required,
		TotalSigners:       total,
		ApprovalTTL:        ttl,
	})
	require.NoError(f.t, err)
	return wallet
}

func (f *fixture) addMember(walletID uuid.UUID) *member {
	f.t.Helper()
	m := &member{userID: uuid.New(), key: newKey(f.t)}
	signer, err := f.svc.AddSigner(f.ctx, f.owner, walletID, AddSignerInput{
		SignerType: types.SignerTypeInternal,
		PublicKey:  m.publicKey(),
		UserID:     &m.userID,
	})
	require.NoError(f.t, err)
	m.signer = signer
	return m
}

// signedTransfer returns a hex encoded signed legacy transaction and its hash
func (f *fixture) signedTransfer() (string, string) {
	f.t.Helper()
	to := common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")
	tx := ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    1,
		To:       &to,
		Value:    big.NewInt(100),
		Gas:      21000,
		GasPrice: big.NewInt(1_000_000_000),
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(big.NewInt(1)), newKey(f.t))
	require.NoError(f.t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(f.t, err)
	return "0x" + hex.EncodeToString(raw), signed.Hash().Hex()
}

func (f *fixture) createRequest(walletID, initiator uuid.UUID) *types.ApprovalRequest {
	f.t.Helper()
	raw, _ := f.signedTransfer()
	req, err := f.svc.CreateApprovalRequest(f.ctx, initiator, walletID, CreateApprovalRequestInput{
		RequestType: types.RequestTypeTransaction,
		TransactionData: types.TransactionData{
			To:             "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
			Amount:         "100",
			Asset:          "ETH",
			RawTransaction: raw,
		},
	})
	require.NoError(f.t, err)
	return req
}

// sign produces the signature key would give over the request's canonical payload
func (f *fixture) sign(key *ecdsa.PrivateKey, requestID uuid.UUID) string {
	f.t.Helper()
	req, err := f.store.GetApprovalRequest(f.ctx, requestID)
	require.NoError(f.t, err)
	require.NotNil(f.t, req, "request %s not found", requestID)
	wallet, err := f.store.GetWallet(f.ctx, req.WalletID)
	require.NoError(f.t, err)

	_, payload, err := auth.BuildApprovalPayload(wallet, req)
	require.NoError(f.t, err)

	sig, err := crypto.Sign(accounts.TextHash(payload), key)
	require.NoError(f.t, err)
	return hex.EncodeToString(sig)
}

// signRejection signs the rejection payload for the request with the given reason
func (f *fixture) signRejection(key *ecdsa.PrivateKey, requestID uuid.UUID, reason string) string {
	f.t.Helper()
	req := f.request(requestID)
	wallet, err := f.store.GetWallet(f.ctx, req.WalletID)
	require.NoError(f.t, err)

	_, payload, err := auth.BuildRejectionPayload(wallet, req, reason)
	require.NoError(f.t, err)

	sig, err := crypto.Sign(accounts.TextHash(payload), key)
	require.NoError(f.t, err)
	return hex.EncodeToString(sig)
}

func (f *fixture) submit(m *member, requestID uuid.UUID) (*types.SignerApproval, error) {
	return f.svc.SubmitSignature(f.ctx, m.userID, requestID, f.sign(m.key, requestID), m.publicKey())
}

func (f *fixture) request(id uuid.UUID) *types.ApprovalRequest {
	f.t.Helper()
	req, err := f.store.GetApprovalRequest(f.ctx, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, req)
	return req
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code, appErr.Error())
}
