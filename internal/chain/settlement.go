package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// settlementABI covers the settlement contract surface the engine consumes.
const settlementABI = `[
	{"inputs":[{"name":"swapData","type":"bytes"},{"name":"direction","type":"bool"}],"name":"executePrincipalProtectedArbitrage","outputs":[],"stateMutability":"payable","type":"function"},
	{"inputs":[{"name":"ethAmount","type":"uint256"},{"name":"expectedLarryFromKyber","type":"uint256"},{"name":"direction","type":"bool"}],"name":"simulateArbitrage","outputs":[{"name":"wouldExecute","type":"bool"},{"name":"expectedReturn","type":"uint256"},{"name":"expectedProfit","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"gasReimbursement","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"profitRecipient","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// SimulationResult is the settlement contract's verdict on a proposed trade.
type SimulationResult struct {
	WouldExecute   bool
	ExpectedReturn *big.Int
	ExpectedProfit *big.Int
}

// Settlement binds the principal-protected arbitrage contract. The contract
// itself reverts any execution whose realized return would fall below
// principal plus gas reimbursement; the engine's simulation call is a
// pre-flight check, not the safety mechanism.
type Settlement struct {
	caller  Caller
	address common.Address
	abi     abi.ABI
}

// NewSettlement binds the settlement contract at address.
func NewSettlement(caller Caller, address common.Address) (*Settlement, error) {
	parsed, err := abi.JSON(strings.NewReader(settlementABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse settlement abi: %w", err)
	}
	return &Settlement{caller: caller, address: address, abi: parsed}, nil
}

// Address returns the contract address; it doubles as the swap sender and
// recipient when building the aggregator payload.
func (s *Settlement) Address() common.Address {
	return s.address
}

// Simulate asks the contract whether a trade with the given principal,
// counter-leg amount, and direction would execute, and what it would return.
func (s *Settlement) Simulate(ctx context.Context, amountIn, counterLeg *big.Int, direction bool) (SimulationResult, error) {
	data, err := s.abi.Pack("simulateArbitrage", amountIn, counterLeg, direction)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("chain: pack simulateArbitrage: %w", err)
	}
	out, err := s.caller.Call(ctx, s.address, data)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("chain: call simulateArbitrage: %w", err)
	}
	values, err := s.abi.Unpack("simulateArbitrage", out)
	if err != nil {
		return SimulationResult{}, fmt.Errorf("chain: unpack simulateArbitrage: %w", err)
	}
	result := SimulationResult{}
	if b, ok := values[0].(bool); ok {
		result.WouldExecute = b
	}
	if v, ok := values[1].(*big.Int); ok {
		result.ExpectedReturn = v
	}
	if v, ok := values[2].(*big.Int); ok {
		result.ExpectedProfit = v
	}
	return result, nil
}

// ExecuteCallData packs the payable settlement call carrying the built swap
// payload and the direction flag.
func (s *Settlement) ExecuteCallData(swapPayload []byte, direction bool) ([]byte, error) {
	data, err := s.abi.Pack("executePrincipalProtectedArbitrage", swapPayload, direction)
	if err != nil {
		return nil, fmt.Errorf("chain: pack executePrincipalProtectedArbitrage: %w", err)
	}
	return data, nil
}

// GasReimbursement reads the contract's configured gas reimbursement.
func (s *Settlement) GasReimbursement(ctx context.Context) (*big.Int, error) {
	data, err := s.abi.Pack("gasReimbursement")
	if err != nil {
		return nil, fmt.Errorf("chain: pack gasReimbursement: %w", err)
	}
	out, err := s.caller.Call(ctx, s.address, data)
	if err != nil {
		return nil, fmt.Errorf("chain: call gasReimbursement: %w", err)
	}
	values, err := s.abi.Unpack("gasReimbursement", out)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack gasReimbursement: %w", err)
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: gasReimbursement: unexpected return type %T", values[0])
	}
	return v, nil
}

// ProfitRecipient reads the address that receives realized profits.
func (s *Settlement) ProfitRecipient(ctx context.Context) (common.Address, error) {
	data, err := s.abi.Pack("profitRecipient")
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: pack profitRecipient: %w", err)
	}
	out, err := s.caller.Call(ctx, s.address, data)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: call profitRecipient: %w", err)
	}
	values, err := s.abi.Unpack("profitRecipient", out)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: unpack profitRecipient: %w", err)
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: profitRecipient: unexpected return type %T", values[0])
	}
	return addr, nil
}
