package eth

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an EVM RPC client used to submit approved transactions
type Client struct {
	client  *ethclient.Client
	chainID *big.Int
}

// NewClient creates a new EVM client and auto-detects chain ID
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC URL is required")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	// Auto-detect chain ID from RPC
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &Client{
		client:  client,
		chainID: chainID,
	}, nil
}

// ChainID returns the chain ID reported by the node
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// SendRawTransaction broadcasts a signed transaction to the network
func (c *Client) SendRawTransaction(ctx context.Context, signedTx *types.Transaction) (string, error) {
	if signedTx.ChainId().Sign() != 0 && signedTx.ChainId().Cmp(c.chainID) != 0 {
		return "", fmt.Errorf("transaction chain ID %s does not match node chain ID %s", signedTx.ChainId(), c.chainID)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}

// Close closes the client connection
func (c *Client) Close() {
	c.client.Close()
}
