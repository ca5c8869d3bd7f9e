package validation

import (
	"math/big"
	"strings"
	"testing"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEthereumAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid lowercase address",
			address: "0x742d35cc6634c0532925a3b844bc454e4438f44e",
			wantErr: false,
		},
		{
			name:    "valid uppercase address",
			address: "0x742D35CC6634C0532925A3B844BC454E4438F44E",
			wantErr: false,
		},
		{
			name:    "valid mixed case address",
			address: "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
			wantErr: false,
		},
		{
			name:    "empty address",
			address: "",
			wantErr: true,
			errMsg:  "address cannot be empty",
		},
		{
			name:    "missing 0x prefix",
			address: "742d35cc6634c0532925a3b844bc454e4438f44e",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "too short address",
			address: "0x742d35cc6634c0532925a3b844bc454e4438f4",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "too long address",
			address: "0x742d35cc6634c0532925a3b844bc454e4438f44e00",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "invalid characters",
			address: "0x742d35cc6634c0532925a3b844bc454e4438fXYZ",
			wantErr: true,
			errMsg:  "invalid Ethereum address format",
		},
		{
			name:    "zero address",
			address: "0x0000000000000000000000000000000000000000",
			wantErr: true,
			errMsg:  "cannot send to zero address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEthereumAddress(tt.address)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateBitcoinAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		params  *chaincfg.Params
		wantErr bool
	}{
		{name: "mainnet p2pkh", address: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", params: &chaincfg.MainNetParams},
		{name: "mainnet bech32", address: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", params: &chaincfg.MainNetParams},
		{name: "testnet address on mainnet", address: "mipcBbFg9gMiCh81Kj8tqqdgoZub1ZJRfn", params: &chaincfg.MainNetParams, wantErr: true},
		{name: "garbage", address: "not-an-address", params: &chaincfg.MainNetParams, wantErr: true},
		{name: "empty", address: "", params: &chaincfg.MainNetParams, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBitcoinAddress(tt.address, tt.params)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	value, err := ValidateAmount("1000000000000000000000")
	require.NoError(t, err)
	expected, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, 0, value.Cmp(expected))

	_, err = ValidateAmount("0")
	require.NoError(t, err)

	for _, bad := range []string{"", "-1", "1.5", "1e18", "0x10"} {
		_, err := ValidateAmount(bad)
		assert.Error(t, err, "amount %q should be rejected", bad)
	}
}

func TestDecodeHex(t *testing.T) {
	cases := []string{"0x040102aabbcc", "040102AABBCC", "  040102aabbcc  "}
	for _, input := range cases {
		decoded, err := DecodeHex(input)
		require.NoError(t, err, input)
		assert.Equal(t, []byte{0x04, 0x01, 0x02, 0xaa, 0xbb, 0xcc}, decoded)
	}

	_, err := DecodeHex("")
	assert.Error(t, err)
	_, err = DecodeHex("0x123")
	assert.Error(t, err)
	_, err = DecodeHex("0xzz")
	assert.Error(t, err)
}

func TestValidateWalletName(t *testing.T) {
	require.NoError(t, ValidateWalletName("Treasury"))
	assert.Error(t, ValidateWalletName("   "))
	assert.Error(t, ValidateWalletName(strings.Repeat("a", MaxWalletNameLength+1)))
}

func TestValidateTransactionData(t *testing.T) {
	tests := []struct {
		name        string
		data        types.TransactionData
		maxDataSize int
		wantErr     bool
		errMsg      string
	}{
		{
			name: "transfer",
			data: types.TransactionData{To: "0x742d35cc6634c0532925a3b844bc454e4438f44e", Amount: "100", Asset: "ETH"},
		},
		{
			name: "config change with extra only",
			data: types.TransactionData{Extra: map[string]any{"action": "rotate_signer"}},
		},
		{
			name:    "empty",
			data:    types.TransactionData{},
			wantErr: true,
			errMsg:  "cannot be empty",
		},
		{
			name:    "fractional amount",
			data:    types.TransactionData{Amount: "1.5"},
			wantErr: true,
			errMsg:  "invalid amount",
		},
		{
			name:        "calldata too large",
			data:        types.TransactionData{Data: "0x" + strings.Repeat("ab", 10)},
			maxDataSize: 4,
			wantErr:     true,
			errMsg:      "too large",
		},
		{
			name:    "bad raw transaction",
			data:    types.TransactionData{RawTransaction: "0xnothex"},
			wantErr: true,
			errMsg:  "invalid raw_transaction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransactionData(tt.data, tt.maxDataSize)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
