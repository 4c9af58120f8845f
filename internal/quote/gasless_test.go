package quote

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/aggregator"
	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/gasprice"
	"github.com/metaswap-labs/swap-aggregator/internal/relayer"
	"github.com/metaswap-labs/swap-aggregator/internal/simulator"
	"github.com/metaswap-labs/swap-aggregator/internal/txbuilder"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// well-known throwaway key, never funded
const testRelayerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testGasless(t *testing.T, clients []aggregator.Client, evm *fakeEVM, chainID int64) *GaslessService {
	t.Helper()
	registry := chains.NewRegistry(zap.NewNop(), nil)
	if evm != nil {
		registry.Put(chainID, evm, evm)
	}
	gas := gasprice.New(zap.NewNop(), registry, nil, 0)
	builder := txbuilder.NewBuilder(zap.NewNop(), registry, gas)
	quoteSvc := NewService(zap.NewNop(), clients, builder)
	signer, err := relayer.NewSigner(testRelayerKey)
	require.NoError(t, err)
	sim := simulator.New(zap.NewNop(), registry)
	return NewGaslessService(zap.NewNop(), quoteSvc, builder, gas, signer, sim)
}

func TestGaslessFreeCampaignZeroesFees(t *testing.T) {
	evm := &fakeEVM{gas: 50000, price: big.NewInt(30_000_000_000)}
	svc := testGasless(t, []aggregator.Client{
		fixedClient(model.AggregatorZeroX, sampleQuote(model.AggregatorZeroX, "500000", 80000), nil),
	}, evm, chains.Polygon)

	req := tradeReq(chains.Polygon, true)
	result, err := svc.GetGaslessQuote(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "0", result.PaymentFees)
	assert.Equal(t, testWETH, result.PaymentTokenAddress)
	assert.Nil(t, result.Tx)
}

func TestGaslessNativePaymentFeesEqualGasFees(t *testing.T) {
	quote := sampleQuote(model.AggregatorZeroX, "500000", 1000)
	quote.BuyTokenAddress = chains.NativeToken
	evm := &fakeEVM{gas: 50000, price: big.NewInt(2)}
	svc := testGasless(t, []aggregator.Client{
		fixedClient(model.AggregatorZeroX, quote, nil),
	}, evm, chains.Arbitrum)

	req := tradeReq(chains.Arbitrum, true)
	req.BuyTokenAddress = chains.NativeToken
	result, err := svc.GetGaslessQuote(context.Background(), req)
	require.NoError(t, err)
	// gasPrice * (estimatedGas + overhead) = 2 * (1000 + 130000)
	assert.Equal(t, "262000", result.PaymentFees)
	assert.Equal(t, chains.NativeToken, result.PaymentTokenAddress)
}

func TestGaslessNonNativePaymentUsesNestedQuote(t *testing.T) {
	baseQuote := sampleQuote(model.AggregatorZeroX, "500000", 1000)
	client := &fakeClient{name: model.AggregatorZeroX, fetch: func(req *model.TradeRequest) (*model.AggregatorQuote, error) {
		if chains.IsNative(req.BuyTokenAddress) {
			// nested fee conversion: exact-output WETH -> native, priced
			// with an anonymous sender and no slippage allowance
			assert.Equal(t, "262000", req.BuyAmount)
			assert.Equal(t, testWETH, req.SellTokenAddress)
			assert.Equal(t, chains.ZeroAddress, req.From)
			assert.True(t, req.Slippage.IsZero())
			fee := sampleQuote(model.AggregatorZeroX, req.BuyAmount, 900)
			fee.SellTokenAddress = testWETH
			fee.SellAmount = "9999"
			fee.TradeType = model.ExactOutput
			return fee, nil
		}
		cp := *baseQuote
		return &cp, nil
	}}

	evm := &fakeEVM{gas: 50000, price: big.NewInt(2)}
	svc := testGasless(t, []aggregator.Client{client}, evm, chains.Arbitrum)

	result, err := svc.GetGaslessQuote(context.Background(), tradeReq(chains.Arbitrum, true))
	require.NoError(t, err)
	assert.Equal(t, "9999", result.PaymentFees)
	assert.Equal(t, testWETH, result.PaymentTokenAddress)
}

func TestGaslessFeeExceedingBuyAmountRejected(t *testing.T) {
	baseQuote := sampleQuote(model.AggregatorZeroX, "500000", 1000)
	client := &fakeClient{name: model.AggregatorZeroX, fetch: func(req *model.TradeRequest) (*model.AggregatorQuote, error) {
		if chains.IsNative(req.BuyTokenAddress) {
			fee := sampleQuote(model.AggregatorZeroX, req.BuyAmount, 900)
			fee.SellAmount = "999999999999" // fee swallows the whole output
			return fee, nil
		}
		cp := *baseQuote
		return &cp, nil
	}}

	evm := &fakeEVM{gas: 50000, price: big.NewInt(2)}
	svc := testGasless(t, []aggregator.Client{client}, evm, chains.Arbitrum)

	_, err := svc.GetGaslessQuote(context.Background(), tradeReq(chains.Arbitrum, false))
	require.Error(t, err)
	reqErr := model.AsRequestError(err)
	assert.Equal(t, 400, reqErr.StatusCode)
	assert.Contains(t, reqErr.Data, "insufficient buy amount")
}

func TestGaslessFullPipelineSignsAndSimulates(t *testing.T) {
	evm := &fakeEVM{
		gas:     50000,
		price:   big.NewInt(30_000_000_000),
		callRet: packMulticallOutput(t, big.NewInt(100), big.NewInt(100), 3),
	}
	svc := testGasless(t, []aggregator.Client{
		fixedClient(model.AggregatorZeroX, sampleQuote(model.AggregatorZeroX, "500000", 80000), nil),
	}, evm, chains.Polygon)
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	result, err := svc.GetGaslessQuote(context.Background(), tradeReq(chains.Polygon, false))
	require.NoError(t, err)
	require.NotNil(t, result.Tx)
	assert.Equal(t, chains.ForwarderAddress[chains.Polygon], result.Tx.To)
	assert.Equal(t, uint64(50000), result.Tx.Gas)
	assert.Equal(t, "0", result.PaymentFees)

	// the broadcast calldata must round-trip back to the signed request
	decoded, sig, err := txbuilder.DecodeForwarderExecute(common.FromHex(result.Tx.Data))
	require.NoError(t, err)
	assert.Len(t, sig, 65)
	assert.Equal(t, "0", decoded.PaymentFees)
	assert.Equal(t, common.HexToAddress(chains.RouterAddress[chains.Polygon]), common.HexToAddress(decoded.Metaswap))
	assert.Equal(t, fixed.Add(10*time.Minute).Unix(), decoded.ValidTo)
	assert.Equal(t, fixed.UnixMilli(), decoded.Nonce)
}

func TestGaslessSimulationPaysFeesToMulticall(t *testing.T) {
	baseQuote := sampleQuote(model.AggregatorZeroX, "500000", 1000)
	client := &fakeClient{name: model.AggregatorZeroX, fetch: func(req *model.TradeRequest) (*model.AggregatorQuote, error) {
		if chains.IsNative(req.BuyTokenAddress) {
			fee := sampleQuote(model.AggregatorZeroX, req.BuyAmount, 900)
			fee.SellTokenAddress = testWETH
			fee.SellAmount = "9999"
			fee.TradeType = model.ExactOutput
			return fee, nil
		}
		cp := *baseQuote
		return &cp, nil
	}}

	// gasFees = 2 * (1000 + 130000) = 262000 native units
	evm := &fakeEVM{
		gas:   50000,
		price: big.NewInt(2),
		callRet: packMulticallResults(t, [][]byte{
			uint256Bytes(big.NewInt(100)),    // native balance before
			{},                               // forwarder call
			uint256Bytes(big.NewInt(9999)),   // payment token received
			{},                               // approve
			{},                               // fee swap
			uint256Bytes(big.NewInt(362100)), // native balance after, gain 262000
		}),
	}
	svc := testGasless(t, []aggregator.Client{client}, evm, chains.Arbitrum)

	result, err := svc.GetGaslessQuote(context.Background(), tradeReq(chains.Arbitrum, false))
	require.NoError(t, err)
	require.NotNil(t, result.Tx)
	assert.Equal(t, "9999", result.PaymentFees)

	relayerAddr := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	multicallAddr := common.HexToAddress(chains.MulticallAddress[chains.Arbitrum])

	// the broadcast calldata pays the relayer and nets the fee out of the
	// buy amount before slippage: ceil((500000-9999)*0.99) = 485101
	fwdReq, _, err := txbuilder.DecodeForwarderExecute(common.FromHex(result.Tx.Data))
	require.NoError(t, err)
	swap, err := txbuilder.DecodeGaslessSwap(common.FromHex(fwdReq.Calldata))
	require.NoError(t, err)
	assert.Equal(t, relayerAddr, swap.Signer)
	assert.Equal(t, "485101", swap.MinAmount.String())
	assert.Equal(t, "1000000", swap.AmountFrom.String())
	assert.Equal(t, "9999", swap.PaymentFees.String())
	assert.Equal(t, common.HexToAddress(testWETH), swap.PaymentToken)

	// the dry-run batch carries a twin whose fee recipient is the multicall,
	// so the balance deltas land where the batch can observe them
	calls := decodeSimBatch(t, evm.lastCall.Data)
	require.Len(t, calls, 6)
	assert.Equal(t, common.HexToAddress(chains.ForwarderAddress[chains.Arbitrum]), calls[1].Target)

	simReq, _, err := txbuilder.DecodeForwarderExecute(calls[1].CallData)
	require.NoError(t, err)
	simSwap, err := txbuilder.DecodeGaslessSwap(common.FromHex(simReq.Calldata))
	require.NoError(t, err)
	assert.Equal(t, multicallAddr, simSwap.Signer)
	assert.Equal(t, "485101", simSwap.MinAmount.String())
	// the forwarder request itself is still signed by the relayer
	assert.Equal(t, relayerAddr, common.HexToAddress(simReq.Signer))
}

type simBatchCall struct {
	Target   common.Address `abi:"target"`
	GasLimit *big.Int       `abi:"gasLimit"`
	CallData []byte         `abi:"callData"`
}

// decodeSimBatch unpacks the calls argument of a captured multicall calldata.
func decodeSimBatch(t *testing.T, data []byte) []simBatchCall {
	t.Helper()
	require.GreaterOrEqual(t, len(data), 4)
	callsT, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "target", Type: "address"},
		{Name: "gasLimit", Type: "uint256"},
		{Name: "callData", Type: "bytes"},
	})
	require.NoError(t, err)
	values, err := abi.Arguments{{Type: callsT}}.Unpack(data[4:])
	require.NoError(t, err)
	return *abi.ConvertType(values[0], new([]simBatchCall)).(*[]simBatchCall)
}

// packMulticallResults builds the raw return blob of a multicall batch with
// one successful result per entry, carrying the given return data.
func packMulticallResults(t *testing.T, returnData [][]byte) []byte {
	t.Helper()
	uintT, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	tupleArrT, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "success", Type: "bool"},
		{Name: "gasUsed", Type: "uint256"},
		{Name: "returnData", Type: "bytes"},
	})
	require.NoError(t, err)

	type result struct {
		Success    bool     `abi:"success"`
		GasUsed    *big.Int `abi:"gasUsed"`
		ReturnData []byte   `abi:"returnData"`
	}
	results := make([]result, len(returnData))
	for i, rd := range returnData {
		results[i] = result{Success: true, GasUsed: big.NewInt(1000), ReturnData: rd}
	}

	args := abi.Arguments{{Type: uintT}, {Type: tupleArrT}}
	out, err := args.Pack(big.NewInt(1), results)
	require.NoError(t, err)
	return out
}

// packMulticallOutput builds the raw return blob of a multicall batch with n
// successful calls whose first and last results are native balances.
func packMulticallOutput(t *testing.T, balBefore, balAfter *big.Int, n int) []byte {
	t.Helper()
	uintT, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	tupleArrT, err := abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "success", Type: "bool"},
		{Name: "gasUsed", Type: "uint256"},
		{Name: "returnData", Type: "bytes"},
	})
	require.NoError(t, err)

	type result struct {
		Success    bool     `abi:"success"`
		GasUsed    *big.Int `abi:"gasUsed"`
		ReturnData []byte   `abi:"returnData"`
	}
	results := make([]result, n)
	for i := range results {
		results[i] = result{Success: true, GasUsed: big.NewInt(1000), ReturnData: []byte{}}
	}
	results[0].ReturnData = uint256Bytes(balBefore)
	results[n-1].ReturnData = uint256Bytes(balAfter)

	args := abi.Arguments{{Type: uintT}, {Type: tupleArrT}}
	out, err := args.Pack(big.NewInt(1), results)
	require.NoError(t, err)
	return out
}

func uint256Bytes(v *big.Int) []byte {
	var buf [32]byte
	v.FillBytes(buf[:])
	return buf[:]
}
