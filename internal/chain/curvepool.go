package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// curvePoolABI covers the four view functions the engine uses on the
// bonding-curve venue.
const curvePoolABI = `[
	{"inputs":[{"name":"ethAmount","type":"uint256"}],"name":"getBuyLARRY","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"larryAmount","type":"uint256"}],"name":"LARRYtoETH","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getBacking","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"totalSupply","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// Caller is the read-only slice of Client that contract bindings need.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// CurvePool issues deterministic pricing queries against the bonding-curve
// contract. All calls are view calls; the engine never trades on this
// contract directly.
type CurvePool struct {
	caller  Caller
	address common.Address
	abi     abi.ABI
}

// NewCurvePool binds the curve contract at address.
func NewCurvePool(caller Caller, address common.Address) (*CurvePool, error) {
	parsed, err := abi.JSON(strings.NewReader(curvePoolABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse curve abi: %w", err)
	}
	return &CurvePool{caller: caller, address: address, abi: parsed}, nil
}

// GetBuy quotes asset → intermediate on the live contract.
func (p *CurvePool) GetBuy(ctx context.Context, assetIn *big.Int) (*big.Int, error) {
	return p.viewUint(ctx, "getBuyLARRY", assetIn)
}

// ToBase quotes intermediate → asset on the live contract.
func (p *CurvePool) ToBase(ctx context.Context, intermediateIn *big.Int) (*big.Int, error) {
	return p.viewUint(ctx, "LARRYtoETH", intermediateIn)
}

// Backing returns the curve's reserve backing.
func (p *CurvePool) Backing(ctx context.Context) (*big.Int, error) {
	return p.viewUint(ctx, "getBacking")
}

// TotalSupply returns the intermediate token's total supply.
func (p *CurvePool) TotalSupply(ctx context.Context) (*big.Int, error) {
	return p.viewUint(ctx, "totalSupply")
}

// viewUint packs, calls, and unpacks a view function returning one uint256.
func (p *CurvePool) viewUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	data, err := p.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	out, err := p.caller.Call(ctx, p.address, data)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", method, err)
	}
	values, err := p.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	result, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s: unexpected return type %T", method, values[0])
	}
	return result, nil
}
