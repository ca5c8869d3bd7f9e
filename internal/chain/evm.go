package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/better-wallet/multisig/internal/eth"
	"github.com/better-wallet/multisig/internal/validation"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EVMVerifier verifies secp256k1 signatures over EIP-191 personal messages
type EVMVerifier struct{}

// ValidatePublicKey accepts 33-byte compressed or 65-byte uncompressed secp256k1 keys
func (EVMVerifier) ValidatePublicKey(publicKeyHex string) error {
	_, err := parseEVMPublicKey(publicKeyHex)
	return err
}

// Verify checks a 64-byte [R || S] or 65-byte [R || S || V] signature.
// The signed digest is keccak256("\x19Ethereum Signed Message:\n" + len(payload) + payload).
func (EVMVerifier) Verify(payload []byte, publicKeyHex string, signature []byte) (bool, error) {
	pub, err := parseEVMPublicKey(publicKeyHex)
	if err != nil {
		return false, err
	}

	switch len(signature) {
	case crypto.SignatureLength:
		signature = signature[:crypto.SignatureLength-1]
	case crypto.SignatureLength - 1:
	default:
		return false, nil
	}

	return crypto.VerifySignature(crypto.FromECDSAPub(pub), accounts.TextHash(payload), signature), nil
}

// EVMAddressCodec derives checksummed 0x addresses from secp256k1 keys
type EVMAddressCodec struct{}

// DeriveAddress returns the EIP-55 address of a public key
func (EVMAddressCodec) DeriveAddress(publicKeyHex string) (string, error) {
	pub, err := parseEVMPublicKey(publicKeyHex)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// ValidateAddress validates a 0x address
func (EVMAddressCodec) ValidateAddress(address string) error {
	return validation.ValidateEthereumAddress(address)
}

func parseEVMPublicKey(publicKeyHex string) (*ecdsa.PublicKey, error) {
	b, err := validation.DecodeHex(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}

	switch len(b) {
	case 33:
		pub, err := crypto.DecompressPubkey(b)
		if err != nil {
			return nil, fmt.Errorf("invalid compressed secp256k1 public key: %w", err)
		}
		return pub, nil
	case 65:
		pub, err := crypto.UnmarshalPubkey(b)
		if err != nil {
			return nil, fmt.Errorf("invalid uncompressed secp256k1 public key: %w", err)
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("invalid secp256k1 public key length: expected 33 or 65 bytes, got %d", len(b))
	}
}

// EVMBroadcaster submits signed EVM transactions through an RPC node
type EVMBroadcaster struct {
	client *eth.Client
}

// NewEVMBroadcaster creates a broadcaster backed by client
func NewEVMBroadcaster(client *eth.Client) *EVMBroadcaster {
	return &EVMBroadcaster{client: client}
}

// Broadcast decodes a legacy or typed signed transaction and submits it
func (b *EVMBroadcaster) Broadcast(ctx context.Context, rawTx []byte) (*BroadcastResult, error) {
	tx, err := decodeEVMTransaction(rawTx)
	if err != nil {
		return nil, err
	}

	hash, err := b.client.SendRawTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	return &BroadcastResult{Hash: hash, RawTransaction: hexutil.Encode(rawTx)}, nil
}

// EVMDryRunBroadcaster decodes and hashes transactions without submitting them.
// It is used when no RPC endpoint is configured for the chain.
type EVMDryRunBroadcaster struct{}

// Broadcast returns the hash the transaction would have on chain
func (EVMDryRunBroadcaster) Broadcast(_ context.Context, rawTx []byte) (*BroadcastResult, error) {
	tx, err := decodeEVMTransaction(rawTx)
	if err != nil {
		return nil, err
	}
	return &BroadcastResult{Hash: tx.Hash().Hex(), RawTransaction: hexutil.Encode(rawTx)}, nil
}

func decodeEVMTransaction(rawTx []byte) (*types.Transaction, error) {
	if len(rawTx) == 0 {
		return nil, fmt.Errorf("raw transaction is empty")
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return nil, fmt.Errorf("failed to decode raw transaction: %w", err)
	}
	return tx, nil
}
