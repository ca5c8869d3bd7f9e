package types

import (
	"encoding/json"
	"testing"
	"time"

	apperrors "github.com/better-wallet/multisig/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWalletPolicy(t *testing.T) {
	tests := []struct {
		name     string
		required int
		total    int
		ttl      time.Duration
		wantErr  bool
	}{
		{name: "2_of_3", required: 2, total: 3},
		{name: "1_of_2", required: 1, total: 2},
		{name: "10_of_10", required: 10, total: 10},
		{name: "with_ttl_override", required: 2, total: 3, ttl: time.Hour},
		{name: "zero_required", required: 0, total: 3, wantErr: true},
		{name: "single_signer", required: 1, total: 1, wantErr: true},
		{name: "required_exceeds_total", required: 4, total: 3, wantErr: true},
		{name: "too_many_signers", required: 2, total: 11, wantErr: true},
		{name: "negative_ttl", required: 2, total: 3, ttl: -time.Second, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := NewWalletPolicy(tt.required, tt.total, tt.ttl)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.required, policy.RequiredSignatures())
			assert.Equal(t, tt.total, policy.TotalSigners())
			assert.Equal(t, tt.ttl, policy.ApprovalTTL())
		})
	}
}

func TestWalletPolicy_SchemeAndTTL(t *testing.T) {
	policy, err := NewWalletPolicy(2, 3, 0)
	require.NoError(t, err)

	assert.Equal(t, "2-of-3", policy.Scheme())
	assert.Equal(t, 48*time.Hour, policy.TTLOr(48*time.Hour))

	override, err := NewWalletPolicy(2, 3, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, override.TTLOr(48*time.Hour))

	raw, err := json.Marshal(override)
	require.NoError(t, err)
	assert.JSONEq(t, `{"required_signatures":2,"total_signers":3,"scheme":"2-of-3","approval_ttl_seconds":3600}`, string(raw))
}

func TestSignerType(t *testing.T) {
	assert.Len(t, AllSignerTypes(), 4)
	assert.True(t, SignerTypeHardwareLedger.IsValid())
	assert.False(t, SignerType("yubikey").IsValid())
	assert.True(t, SignerTypeHardwareTrezor.IsHardware())
	assert.False(t, SignerTypeExternal.IsHardware())
	assert.Equal(t, DeviceTypeLedger, SignerTypeHardwareLedger.DeviceType())
	assert.Empty(t, SignerTypeInternal.DeviceType())
}

func TestRequestStatus(t *testing.T) {
	assert.False(t, RequestStatusPending.IsTerminal())
	assert.False(t, RequestStatusApproved.IsTerminal())
	assert.True(t, RequestStatusRejected.IsTerminal())
	assert.True(t, RequestStatusExpired.IsTerminal())
	assert.True(t, RequestStatusBroadcast.IsTerminal())
	assert.False(t, RequestStatus("cancelled").IsValid())
}

func TestSigner_HasPublicKey(t *testing.T) {
	signer := &Signer{PublicKey: "02abcdef"}

	assert.True(t, signer.HasPublicKey("02ABCDEF"))
	assert.True(t, signer.HasPublicKey("0x02abcdef"))
	assert.True(t, signer.HasPublicKey("  0X02AbCdEf "))
	assert.False(t, signer.HasPublicKey("03abcdef"))
}

func TestSigner_BelongsTo(t *testing.T) {
	userID := uuid.New()

	assert.True(t, (&Signer{UserID: &userID}).BelongsTo(userID))
	assert.False(t, (&Signer{UserID: &userID}).BelongsTo(uuid.New()))
	assert.False(t, (&Signer{}).BelongsTo(userID))
}

func TestApprovalRequest_StatusAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("pending_before_expiry", func(t *testing.T) {
		req := &ApprovalRequest{
			Status:             RequestStatusPending,
			RequiredSignatures: 2,
			CurrentSignatures:  1,
			ExpiresAt:          now.Add(time.Hour),
		}
		status := req.StatusAt(now)
		assert.Equal(t, 1, status.Remaining)
		assert.False(t, status.QuorumReached)
		assert.False(t, status.IsExpired)
	})

	t.Run("pending_past_expiry_is_reported_without_mutation", func(t *testing.T) {
		req := &ApprovalRequest{
			Status:             RequestStatusPending,
			RequiredSignatures: 2,
			ExpiresAt:          now.Add(-time.Minute),
		}
		status := req.StatusAt(now)
		assert.True(t, status.IsExpired)
		assert.Equal(t, RequestStatusPending, req.Status)
	})

	t.Run("over_quorum_has_zero_remaining", func(t *testing.T) {
		req := &ApprovalRequest{
			Status:             RequestStatusApproved,
			RequiredSignatures: 2,
			CurrentSignatures:  3,
			ExpiresAt:          now.Add(-time.Minute),
		}
		status := req.StatusAt(now)
		assert.Equal(t, 0, status.Remaining)
		assert.True(t, status.QuorumReached)
		assert.False(t, status.IsExpired, "approved requests do not expire")
	})
}

func TestTransactionData_IsEmpty(t *testing.T) {
	assert.True(t, TransactionData{}.IsEmpty())
	assert.False(t, TransactionData{Amount: "100"}.IsEmpty())
	assert.False(t, TransactionData{Extra: map[string]any{"memo": "x"}}.IsEmpty())
}

func TestTransactionData_UnmarshalKeepsNumbers(t *testing.T) {
	var d TransactionData
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"5","extra":{"nonce":12345678901234567891,"path":[1.50,{"n":7}]}}`), &d))

	assert.Equal(t, json.Number("12345678901234567891"), d.Extra["nonce"])
	path, ok := d.Extra["path"].([]any)
	require.True(t, ok)
	assert.Equal(t, json.Number("1.50"), path[0])
	assert.Equal(t, json.Number("7"), path[1].(map[string]any)["n"])

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"nonce":12345678901234567891`)

	var wrapped struct {
		Data TransactionData `json:"transaction_data"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"transaction_data":{"extra":{"n":98765432109876543210}}}`), &wrapped))
	assert.Equal(t, json.Number("98765432109876543210"), wrapped.Data.Extra["n"])

	assert.Error(t, json.Unmarshal([]byte(`{"amount":"5","recipient":"x"}`), &d))
}

func TestApprovalRequest_CloneIsDeep(t *testing.T) {
	decided := time.Now().UTC()
	orig := &ApprovalRequest{
		ID: uuid.New(),
		TransactionData: TransactionData{Extra: map[string]any{
			"memo":  "rent",
			"legs":  []any{map[string]any{"to": "a"}},
			"limit": json.Number("10"),
		}},
		Metadata:  json.RawMessage(`{"ticket":"OPS-1"}`),
		DecidedAt: &decided,
	}

	c := orig.Clone()
	c.TransactionData.Extra["memo"] = "changed"
	c.TransactionData.Extra["legs"].([]any)[0].(map[string]any)["to"] = "b"
	c.Metadata[2] = 'X'
	*c.DecidedAt = decided.Add(time.Hour)

	assert.Equal(t, "rent", orig.TransactionData.Extra["memo"])
	assert.Equal(t, "a", orig.TransactionData.Extra["legs"].([]any)[0].(map[string]any)["to"])
	assert.JSONEq(t, `{"ticket":"OPS-1"}`, string(orig.Metadata))
	assert.Equal(t, decided, *orig.DecidedAt)
}
