package simulator

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/metrics"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

const multicallABIJSON = `[
	{"name": "multicall", "type": "function", "stateMutability": "payable",
	 "inputs": [{"name": "calls", "type": "tuple[]", "components": [
		{"name": "target", "type": "address"},
		{"name": "gasLimit", "type": "uint256"},
		{"name": "callData", "type": "bytes"}
	 ]}],
	 "outputs": [
		{"name": "blockNumber", "type": "uint256"},
		{"name": "returnData", "type": "tuple[]", "components": [
			{"name": "success", "type": "bool"},
			{"name": "gasUsed", "type": "uint256"},
			{"name": "returnData", "type": "bytes"}
		]}
	 ]},
	{"name": "getEthBalance", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "addr", "type": "address"}],
	 "outputs": [{"name": "balance", "type": "uint256"}]}
]`

const erc20ABIJSON = `[
	{"name": "balanceOf", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "account", "type": "address"}],
	 "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "approve", "type": "function", "stateMutability": "nonpayable",
	 "inputs": [{"name": "spender", "type": "address"}, {"name": "amount", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "bool"}]}
]`

var (
	multicallABI = mustABI(multicallABIJSON)
	erc20ABI     = mustABI(erc20ABIJSON)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

type call struct {
	Target   common.Address `abi:"target"`
	GasLimit *big.Int       `abi:"gasLimit"`
	CallData []byte         `abi:"callData"`
}

type callResult struct {
	Success    bool     `abi:"success"`
	GasUsed    *big.Int `abi:"gasUsed"`
	ReturnData []byte   `abi:"returnData"`
}

// Params describes one gasless transaction to validate before it is handed
// back as broadcast-ready.
type Params struct {
	ChainID      int64
	Calldata     string // forwarder executeCall calldata
	Gas          uint64 // live gas estimate for the forwarder call
	GasFees      *big.Int
	PaymentToken string
	PaymentFees  *big.Int
	// FeeSwap is the nested payment-token-to-native quote; nil when the
	// payment token is native or the fees are zero.
	FeeSwap *model.AggregatorQuote
}

// Simulator dry-runs a gasless transaction through the chain's multicall
// contract and checks that the token and native balance deltas match the
// promised fee economics.
type Simulator struct {
	logger   *zap.Logger
	registry *chains.Registry
}

func New(logger *zap.Logger, registry *chains.Registry) *Simulator {
	return &Simulator{
		logger:   logger,
		registry: registry,
	}
}

// Validate executes the batch and verifies the balance invariants. Chains in
// the exemption set skip the delta checks but still require every call in
// the batch to succeed.
func (s *Simulator) Validate(ctx context.Context, p Params) error {
	multicallAddr, ok := chains.MulticallAddress[p.ChainID]
	if !ok {
		return model.NewRequestError(http.StatusBadRequest, "no multicall contract on chain %d", p.ChainID)
	}
	forwarderAddr, ok := chains.ForwarderAddress[p.ChainID]
	if !ok {
		return model.NewRequestError(http.StatusBadRequest, "no forwarder contract on chain %d", p.ChainID)
	}

	calls, nonNativePayment, err := s.buildBatch(multicallAddr, forwarderAddr, p)
	if err != nil {
		return err
	}

	results, err := s.execute(ctx, p.ChainID, multicallAddr, calls)
	if err != nil {
		return err
	}
	if len(results) != len(calls) {
		return model.NewRequestError(http.StatusBadRequest, "simulation returned %d results for %d calls", len(results), len(calls))
	}
	for i, r := range results {
		if !r.Success {
			return model.NewRequestError(http.StatusBadRequest, "simulation call %d reverted", i)
		}
	}

	if chains.SimulationExempt[p.ChainID] {
		return nil
	}
	return s.checkBalances(results, nonNativePayment, p)
}

// buildBatch appends calls in the fixed order the decoder expects:
// getEthBalance, forwarder call, [balanceOf, approve, fee swap], getEthBalance.
func (s *Simulator) buildBatch(multicallAddr, forwarderAddr string, p Params) ([]call, bool, error) {
	self := common.HexToAddress(multicallAddr)
	balanceCheck, err := multicallABI.Pack("getEthBalance", self)
	if err != nil {
		return nil, false, model.NewRequestError(http.StatusBadRequest, "%s", err.Error())
	}

	calls := []call{
		{Target: self, GasLimit: big.NewInt(1_000_000), CallData: balanceCheck},
		// headroom over the live estimate; a revert here means the swap is
		// not executable as promised
		{Target: common.HexToAddress(forwarderAddr), GasLimit: new(big.Int).SetUint64(2 * p.Gas), CallData: common.FromHex(p.Calldata)},
	}

	nonNativePayment := !chains.IsNative(p.PaymentToken) && p.PaymentFees.Sign() > 0
	if nonNativePayment {
		if p.FeeSwap == nil || p.FeeSwap.Data == "" {
			return nil, false, model.NewRequestError(http.StatusBadRequest, "fee swap calldata missing")
		}
		token := common.HexToAddress(p.PaymentToken)

		balanceOf, err := erc20ABI.Pack("balanceOf", self)
		if err != nil {
			return nil, false, model.NewRequestError(http.StatusBadRequest, "%s", err.Error())
		}
		approve, err := erc20ABI.Pack("approve", common.HexToAddress(p.FeeSwap.AllowanceTarget), p.PaymentFees)
		if err != nil {
			return nil, false, model.NewRequestError(http.StatusBadRequest, "%s", err.Error())
		}

		calls = append(calls,
			call{Target: token, GasLimit: big.NewInt(1_000_000), CallData: balanceOf},
			call{Target: token, GasLimit: big.NewInt(1_000_000), CallData: approve},
			call{Target: common.HexToAddress(p.FeeSwap.To), GasLimit: new(big.Int).SetUint64(4 * p.Gas), CallData: common.FromHex(p.FeeSwap.Data)},
		)
	}

	calls = append(calls, call{Target: self, GasLimit: big.NewInt(1_000_000), CallData: balanceCheck})
	return calls, nonNativePayment, nil
}

func (s *Simulator) execute(ctx context.Context, chainID int64, multicallAddr string, calls []call) ([]callResult, error) {
	data, err := multicallABI.Pack("multicall", calls)
	if err != nil {
		return nil, model.NewRequestError(http.StatusBadRequest, "%s", err.Error())
	}

	client, err := s.registry.Client(chainID)
	if err != nil {
		return nil, model.NewRequestError(http.StatusBadRequest, "%s", err.Error())
	}

	to := common.HexToAddress(multicallAddr)
	start := time.Now()
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	metrics.RPCRequestDuration.WithLabelValues(fmt.Sprint(chainID), "eth_call").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, model.NewRequestError(http.StatusBadRequest, "simulation call failed: %s", err.Error())
	}

	values, err := multicallABI.Methods["multicall"].Outputs.Unpack(raw)
	if err != nil {
		return nil, model.NewRequestError(http.StatusBadRequest, "simulation decode failed: %s", err.Error())
	}
	results := *abi.ConvertType(values[1], new([]callResult)).(*[]callResult)
	return results, nil
}

// checkBalances enforces the two economic invariants: the payment token
// received equals exactly the computed fee, and the native currency gained
// covers at least GasMargin percent of the gas fee.
func (s *Simulator) checkBalances(results []callResult, nonNativePayment bool, p Params) error {
	ethBefore := new(big.Int).SetBytes(results[0].ReturnData)
	ethAfter := new(big.Int).SetBytes(results[len(results)-1].ReturnData)

	if nonNativePayment {
		received := new(big.Int).SetBytes(results[2].ReturnData)
		if received.Cmp(p.PaymentFees) != 0 {
			return model.NewRequestError(http.StatusBadRequest,
				"payment fee mismatch: expected %s, simulated %s", p.PaymentFees, received)
		}
	}

	required := new(big.Int).Mul(p.GasFees, big.NewInt(chains.GasMargin))
	required.Div(required, big.NewInt(100))
	gained := new(big.Int).Sub(ethAfter, ethBefore)
	if gained.Cmp(required) < 0 {
		return model.NewRequestError(http.StatusBadRequest,
			"insufficient native gain: got %s, need %s", gained, required)
	}

	s.logger.Debug("simulator.validated",
		zap.Int64("chain_id", p.ChainID),
		zap.String("native_gain", gained.String()),
		zap.String("payment_fees", p.PaymentFees.String()))
	return nil
}
