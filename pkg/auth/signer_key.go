package auth

import (
	"fmt"

	"github.com/better-wallet/multisig/pkg/types"
)

// Verifier checks signatures for one chain family
type Verifier interface {
	// ValidatePublicKey reports whether publicKeyHex is a well-formed key for the chain
	ValidatePublicKey(publicKeyHex string) error
	// Verify checks signature over payload under publicKeyHex
	Verify(payload []byte, publicKeyHex string, signature []byte) (bool, error)
}

// SignerKey is the capability every signer variant exposes to the quorum engine
type SignerKey interface {
	Type() types.SignerType
	PublicKey() string
	Verify(signature, payload []byte) (bool, error)
}

// NewSignerKey builds the capability for a registered signer
func NewSignerKey(signer *types.Signer, verifier Verifier) (SignerKey, error) {
	base := baseKey{publicKey: types.NormalizeHex(signer.PublicKey), verifier: verifier}

	switch signer.SignerType {
	case types.SignerTypeInternal:
		if signer.UserID == nil {
			return nil, fmt.Errorf("internal signer %s has no linked user", signer.ID)
		}
		return internalKey{baseKey: base}, nil
	case types.SignerTypeHardwareLedger, types.SignerTypeHardwareTrezor:
		if signer.HardwareWalletID == nil {
			return nil, fmt.Errorf("hardware signer %s has no linked device", signer.ID)
		}
		return hardwareKey{baseKey: base, signerType: signer.SignerType}, nil
	case types.SignerTypeExternal:
		return externalKey{baseKey: base}, nil
	default:
		return nil, fmt.Errorf("unsupported signer type: %s", signer.SignerType)
	}
}

type baseKey struct {
	publicKey string
	verifier  Verifier
}

func (k baseKey) PublicKey() string { return k.publicKey }

func (k baseKey) Verify(signature, payload []byte) (bool, error) {
	if len(signature) == 0 {
		return false, nil
	}
	return k.verifier.Verify(payload, k.publicKey, signature)
}

type internalKey struct{ baseKey }

func (internalKey) Type() types.SignerType { return types.SignerTypeInternal }

type hardwareKey struct {
	baseKey
	signerType types.SignerType
}

func (k hardwareKey) Type() types.SignerType { return k.signerType }

type externalKey struct{ baseKey }

func (externalKey) Type() types.SignerType { return types.SignerTypeExternal }
