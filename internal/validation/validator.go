package validation

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/better-wallet/multisig/pkg/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
)

// EthereumAddressPattern is the regex pattern for Ethereum addresses
var EthereumAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// MaxWalletNameLength bounds human-readable wallet names
const MaxWalletNameLength = 128

// ValidateEthereumAddress validates an Ethereum address format
func ValidateEthereumAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !EthereumAddressPattern.MatchString(address) {
		return fmt.Errorf("invalid Ethereum address format: must be 0x followed by 40 hex characters")
	}

	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid Ethereum address")
	}

	// Prevent sending to zero address (common mistake)
	if strings.ToLower(address) == "0x0000000000000000000000000000000000000000" {
		return fmt.Errorf("cannot send to zero address")
	}

	return nil
}

// ValidateBitcoinAddress validates a Bitcoin address for the given network
func ValidateBitcoinAddress(address string, params *chaincfg.Params) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	decoded, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return fmt.Errorf("invalid Bitcoin address: %w", err)
	}

	if !decoded.IsForNet(params) {
		return fmt.Errorf("address %s is not valid on %s", address, params.Name)
	}

	return nil
}

// ValidateAmount validates a non-negative base-10 integer amount in the asset's smallest unit
func ValidateAmount(amount string) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, fmt.Errorf("amount must be a base-10 integer, got %q", amount)
	}

	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return value, nil
}

// DecodeHex decodes a hex string with an optional 0x prefix
func DecodeHex(s string) ([]byte, error) {
	s = types.NormalizeHex(s)
	if s == "" {
		return nil, fmt.Errorf("hex value cannot be empty")
	}
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("hex value has odd length")
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// ValidateWalletName validates a human-readable wallet name
func ValidateWalletName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxWalletNameLength {
		return fmt.Errorf("name cannot exceed %d characters", MaxWalletNameLength)
	}
	return nil
}

// ValidateTransactionData validates the chain-independent fields of an approval payload.
// The destination address is chain specific and checked by the chain's address validator.
func ValidateTransactionData(data types.TransactionData, maxDataSize int) error {
	if data.IsEmpty() {
		return fmt.Errorf("transaction data cannot be empty")
	}

	if data.Amount != "" {
		if _, err := ValidateAmount(data.Amount); err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
	}

	if data.Data != "" {
		calldata, err := DecodeHex(data.Data)
		if err != nil {
			return fmt.Errorf("invalid data: %w", err)
		}
		if maxDataSize > 0 && len(calldata) > maxDataSize {
			return fmt.Errorf("transaction data too large: %d bytes > %d bytes max", len(calldata), maxDataSize)
		}
	}

	if data.RawTransaction != "" {
		if _, err := DecodeHex(data.RawTransaction); err != nil {
			return fmt.Errorf("invalid raw_transaction: %w", err)
		}
	}

	return nil
}
