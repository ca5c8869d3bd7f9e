// Package chain holds the per-chain collaborators of the approval engine:
// signature verifiers, address codecs, and transaction broadcasters.
package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/better-wallet/multisig/pkg/auth"
	apperrors "github.com/better-wallet/multisig/pkg/errors"
)

// Family groups chains that share key, signature, and transaction formats
type Family string

const (
	FamilyEVM     Family = "evm"
	FamilyBitcoin Family = "bitcoin"
)

// AddressCodec derives and validates on-chain addresses
type AddressCodec interface {
	DeriveAddress(publicKeyHex string) (string, error)
	ValidateAddress(address string) error
}

// BroadcastResult is what a broadcaster reports after submitting a transaction
type BroadcastResult struct {
	Hash           string
	RawTransaction string
}

// Broadcaster submits a fully signed raw transaction to the network
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTx []byte) (*BroadcastResult, error)
}

// Chain bundles the collaborators for one supported chain
type Chain struct {
	Name        string
	Family      Family
	Verifier    auth.Verifier
	Addresses   AddressCodec
	Broadcaster Broadcaster
}

// Registry maps chain names to their collaborators. New chains are added by
// registering them; the approval engine never switches on chain names.
type Registry struct {
	mu     sync.RWMutex
	chains map[string]*Chain
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{chains: make(map[string]*Chain)}
}

// Register adds or replaces a chain
func (r *Registry) Register(c *Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[c.Name] = c
}

// Get returns the collaborators for a chain
func (r *Registry) Get(name string) (*Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.chains[name]
	if !ok {
		return nil, apperrors.ErrChainNotSupported.WithDetail(fmt.Sprintf("chain: %s", name))
	}
	return c, nil
}

// IsSupported reports whether a chain is registered
func (r *Registry) IsSupported(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

// Supported returns the registered chain names, sorted
func (r *Registry) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.chains))
	for name := range r.chains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
