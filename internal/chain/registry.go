package chain

import (
	"context"
	"fmt"

	"github.com/better-wallet/multisig/internal/config"
	"github.com/better-wallet/multisig/internal/eth"
	"github.com/better-wallet/multisig/internal/logger"
	"github.com/better-wallet/multisig/pkg/types"
	"github.com/btcsuite/btcd/chaincfg"
)

// NewDryRunRegistry registers every supported chain with local dry-run broadcasters
func NewDryRunRegistry(btcParams *chaincfg.Params) *Registry {
	r := NewRegistry()
	for _, name := range []string{types.ChainEthereum, types.ChainPolygon, types.ChainBSC} {
		r.Register(evmChain(name, EVMDryRunBroadcaster{}))
	}
	r.Register(bitcoinChain(btcParams, BitcoinDryRunBroadcaster{}))
	return r
}

// NewRegistryFromConfig connects broadcasters for chains with an RPC endpoint and
// falls back to dry-run broadcasters for the rest. The returned func releases RPC clients.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config) (*Registry, func(), error) {
	btcParams, err := BitcoinParams(cfg.BitcoinNetwork)
	if err != nil {
		return nil, nil, err
	}

	r := NewDryRunRegistry(btcParams)
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	evmEndpoints := map[string]string{
		types.ChainEthereum: cfg.EthereumRPCURL,
		types.ChainPolygon:  cfg.PolygonRPCURL,
		types.ChainBSC:      cfg.BSCRPCURL,
	}
	for name, url := range evmEndpoints {
		if url == "" {
			logger.Warn(ctx, "no RPC endpoint configured, broadcasts are dry-run", "chain", name)
			continue
		}
		client, err := eth.NewClient(ctx, url)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to connect %s RPC: %w", name, err)
		}
		closers = append(closers, client.Close)
		r.Register(evmChain(name, NewEVMBroadcaster(client)))
		logger.Info(ctx, "chain RPC connected", "chain", name, "chain_id", client.ChainID().String())
	}

	if cfg.BitcoinRPCHost != "" {
		b, err := NewBitcoinBroadcaster(BitcoinRPCConfig{
			Host:       cfg.BitcoinRPCHost,
			User:       cfg.BitcoinRPCUser,
			Pass:       cfg.BitcoinRPCPass,
			DisableTLS: !cfg.BitcoinRPCTLS,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, b.Close)
		r.Register(bitcoinChain(btcParams, b))
		logger.Info(ctx, "chain RPC connected", "chain", types.ChainBitcoin, "network", btcParams.Name)
	} else {
		logger.Warn(ctx, "no RPC endpoint configured, broadcasts are dry-run", "chain", types.ChainBitcoin)
	}

	return r, closeAll, nil
}

func evmChain(name string, b Broadcaster) *Chain {
	return &Chain{
		Name:        name,
		Family:      FamilyEVM,
		Verifier:    EVMVerifier{},
		Addresses:   EVMAddressCodec{},
		Broadcaster: b,
	}
}

func bitcoinChain(params *chaincfg.Params, b Broadcaster) *Chain {
	return &Chain{
		Name:        types.ChainBitcoin,
		Family:      FamilyBitcoin,
		Verifier:    BitcoinVerifier{},
		Addresses:   NewBitcoinAddressCodec(params),
		Broadcaster: b,
	}
}
