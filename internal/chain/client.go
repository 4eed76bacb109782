// Package chain wraps the JSON-RPC client, the signing key, and typed
// bindings for the two contracts the engine talks to: the bonding-curve
// venue and the principal-protected settlement contract.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client bundles the RPC connection with the engine's signing identity.
type Client struct {
	eth     *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int
	signer  types.Signer
}

// Dial connects to the RPC endpoint and derives the account address from the
// hex private key.
func Dial(ctx context.Context, rpcURL, privateKeyHex string, chainID int64) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	key, err := ethcrypto.HexToECDSA(privateKeyHex)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}

	id := big.NewInt(chainID)
	return &Client{
		eth:     eth,
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: id,
		signer:  types.LatestSignerForChainID(id),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Address returns the engine's account address.
func (c *Client) Address() common.Address {
	return c.address
}

// Balance returns the account's current balance in wei.
func (c *Client) Balance(ctx context.Context) (*big.Int, error) {
	bal, err := c.eth.BalanceAt(ctx, c.address, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: balance: %w", err)
	}
	return bal, nil
}

// PendingNonce returns the next account sequence number. Serialized access
// is the caller's responsibility; the engine runs a single execution at a
// time.
func (c *Client) PendingNonce(ctx context.Context) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return 0, fmt.Errorf("chain: pending nonce: %w", err)
	}
	return nonce, nil
}

// SuggestGasPrice returns the venue's current base fee recommendation.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain: suggest gas price: %w", err)
	}
	return price, nil
}

// Call performs a read-only contract call.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.eth.CallContract(ctx, ethereum.CallMsg{
		From: c.address,
		To:   &to,
		Data: data,
	}, nil)
}

// SendTransaction signs and submits a legacy transaction, returning the
// submitted transaction.
func (c *Client) SendTransaction(ctx context.Context, to common.Address, value *big.Int, nonce uint64, gasLimit uint64, gasPrice *big.Int, data []byte) (*types.Transaction, error) {
	tx := types.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, c.signer, c.key)
	if err != nil {
		return nil, fmt.Errorf("chain: sign tx: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("chain: send tx: %w", err)
	}
	return signed, nil
}

// WaitMined blocks until the transaction is mined or the timeout elapses.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction, timeout time.Duration) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.eth, tx)
	if err != nil {
		return nil, fmt.Errorf("chain: wait mined %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}
