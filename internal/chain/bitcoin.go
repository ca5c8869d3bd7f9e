package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"

	"github.com/better-wallet/multisig/internal/validation"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

// pubKeyBytesLenUncompressed is the length of a 0x04-prefixed uncompressed
// secp256k1 key. btcec/v2 only exports the compressed length.
const pubKeyBytesLenUncompressed = 65

// BitcoinVerifier verifies secp256k1 ECDSA signatures over double-SHA256 digests
type BitcoinVerifier struct{}

// ValidatePublicKey accepts compressed or uncompressed secp256k1 keys
func (BitcoinVerifier) ValidatePublicKey(publicKeyHex string) error {
	_, err := parseBitcoinPublicKey(publicKeyHex)
	return err
}

// Verify checks a DER-encoded or 64-byte compact [R || S] signature
func (BitcoinVerifier) Verify(payload []byte, publicKeyHex string, signature []byte) (bool, error) {
	pub, err := parseBitcoinPublicKey(publicKeyHex)
	if err != nil {
		return false, err
	}

	sig, ok := parseBitcoinSignature(signature)
	if !ok {
		return false, nil
	}

	return sig.Verify(chainhash.DoubleHashB(payload), pub), nil
}

func parseBitcoinSignature(signature []byte) (*ecdsa.Signature, bool) {
	if len(signature) == 64 {
		var r, s btcec.ModNScalar
		if overflow := r.SetByteSlice(signature[:32]); overflow {
			return nil, false
		}
		if overflow := s.SetByteSlice(signature[32:]); overflow {
			return nil, false
		}
		return ecdsa.NewSignature(&r, &s), true
	}

	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return nil, false
	}
	return sig, true
}

func parseBitcoinPublicKey(publicKeyHex string) (*btcec.PublicKey, error) {
	b, err := validation.DecodeHex(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	if len(b) != btcec.PubKeyBytesLenCompressed && len(b) != pubKeyBytesLenUncompressed {
		return nil, fmt.Errorf("invalid secp256k1 public key length: expected 33 or 65 bytes, got %d", len(b))
	}

	pub, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 public key: %w", err)
	}
	return pub, nil
}

// BitcoinAddressCodec derives native segwit (P2WPKH) addresses
type BitcoinAddressCodec struct {
	params *chaincfg.Params
}

// NewBitcoinAddressCodec creates a codec for the given network
func NewBitcoinAddressCodec(params *chaincfg.Params) *BitcoinAddressCodec {
	return &BitcoinAddressCodec{params: params}
}

// DeriveAddress returns the bech32 P2WPKH address of a public key
func (c *BitcoinAddressCodec) DeriveAddress(publicKeyHex string) (string, error) {
	pub, err := parseBitcoinPublicKey(publicKeyHex)
	if err != nil {
		return "", err
	}

	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), c.params)
	if err != nil {
		return "", fmt.Errorf("failed to derive address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// ValidateAddress validates an address on the codec's network
func (c *BitcoinAddressCodec) ValidateAddress(address string) error {
	return validation.ValidateBitcoinAddress(address, c.params)
}

// BitcoinRPCConfig holds bitcoind connection settings
type BitcoinRPCConfig struct {
	Host       string
	User       string
	Pass       string
	DisableTLS bool
}

// BitcoinBroadcaster submits signed transactions through bitcoind's JSON-RPC
type BitcoinBroadcaster struct {
	client *rpcclient.Client
}

// NewBitcoinBroadcaster connects to bitcoind in HTTP POST mode
func NewBitcoinBroadcaster(cfg BitcoinRPCConfig) (*BitcoinBroadcaster, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("bitcoin RPC host is required")
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   cfg.DisableTLS,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create bitcoin RPC client: %w", err)
	}

	return &BitcoinBroadcaster{client: client}, nil
}

// Broadcast deserializes and submits the transaction
func (b *BitcoinBroadcaster) Broadcast(_ context.Context, rawTx []byte) (*BroadcastResult, error) {
	msgTx, err := decodeBitcoinTransaction(rawTx)
	if err != nil {
		return nil, err
	}

	hash, err := b.client.SendRawTransaction(msgTx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	return &BroadcastResult{Hash: hash.String(), RawTransaction: hex.EncodeToString(rawTx)}, nil
}

// Close shuts down the RPC client
func (b *BitcoinBroadcaster) Close() {
	b.client.Shutdown()
}

// BitcoinDryRunBroadcaster decodes and hashes transactions without submitting them
type BitcoinDryRunBroadcaster struct{}

// Broadcast returns the txid the transaction would have on chain
func (BitcoinDryRunBroadcaster) Broadcast(_ context.Context, rawTx []byte) (*BroadcastResult, error) {
	msgTx, err := decodeBitcoinTransaction(rawTx)
	if err != nil {
		return nil, err
	}
	return &BroadcastResult{Hash: msgTx.TxHash().String(), RawTransaction: hex.EncodeToString(rawTx)}, nil
}

func decodeBitcoinTransaction(rawTx []byte) (*wire.MsgTx, error) {
	if len(rawTx) == 0 {
		return nil, fmt.Errorf("raw transaction is empty")
	}

	msgTx := wire.NewMsgTx(wire.TxVersion)
	if err := msgTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, fmt.Errorf("failed to decode raw transaction: %w", err)
	}
	return msgTx, nil
}

// BitcoinParams maps a network name to its chain parameters
func BitcoinParams(network string) (*chaincfg.Params, error) {
	switch network {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown bitcoin network: %s", network)
	}
}
