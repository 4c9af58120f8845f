package txbuilder

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// Contract ABIs, reduced to the entry points this service encodes against.

const routerABIJSON = `[{
	"name": "swap", "type": "function", "stateMutability": "payable",
	"inputs": [
		{"name": "tokenFrom", "type": "address"},
		{"name": "amount", "type": "uint256"},
		{"name": "recipient", "type": "address"},
		{"name": "adapter", "type": "tuple", "components": [
			{"name": "adapterId", "type": "string"},
			{"name": "data", "type": "bytes"}
		]}
	],
	"outputs": []
}]`

const forwarderABIJSON = `[{
	"name": "executeCall", "type": "function", "stateMutability": "payable",
	"inputs": [
		{"name": "req", "type": "tuple", "components": [
			{"name": "signer", "type": "address"},
			{"name": "metaswap", "type": "address"},
			{"name": "callData", "type": "bytes"},
			{"name": "paymentToken", "type": "address"},
			{"name": "paymentFees", "type": "uint256"},
			{"name": "tokenGasPrice", "type": "uint256"},
			{"name": "validTo", "type": "uint256"},
			{"name": "nonce", "type": "uint256"}
		]},
		{"name": "signature", "type": "bytes"}
	],
	"outputs": []
}]`

var (
	routerABI    = mustABI(routerABIJSON)
	forwarderABI = mustABI(forwarderABIJSON)

	// swapAdapterArgs is the inner payload of the gassed swap adapter.
	swapAdapterArgs = mustArgs(
		arg("tokenFrom", "address"),
		arg("tokenTo", "address"),
		arg("amountFrom", "uint256"),
		arg("minAmountTo", "uint256"),
		arg("aggregator", "address"),
		arg("data", "bytes"),
	)

	// gaslessAdapterArgs additionally carries the fee settlement fields.
	gaslessAdapterArgs = mustArgs(
		arg("tokenFrom", "address"),
		arg("tokenTo", "address"),
		arg("amountFrom", "uint256"),
		arg("minAmountTo", "uint256"),
		arg("aggregator", "address"),
		arg("paymentFees", "uint256"),
		arg("paymentToken", "address"),
		arg("signer", "address"),
		arg("data", "bytes"),
	)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

func arg(name, typ string) abi.Argument {
	t, err := abi.NewType(typ, "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Argument{Name: name, Type: t}
}

func mustArgs(args ...abi.Argument) abi.Arguments {
	return abi.Arguments(args)
}

// routerAdapter mirrors the router's (adapterId, data) tuple component.
type routerAdapter struct {
	AdapterId string `abi:"adapterId"`
	Data      []byte `abi:"data"`
}

// forwardRequestTuple mirrors the forwarder's request tuple component.
type forwardRequestTuple struct {
	Signer        common.Address `abi:"signer"`
	Metaswap      common.Address `abi:"metaswap"`
	CallData      []byte         `abi:"callData"`
	PaymentToken  common.Address `abi:"paymentToken"`
	PaymentFees   *big.Int       `abi:"paymentFees"`
	TokenGasPrice *big.Int       `abi:"tokenGasPrice"`
	ValidTo       *big.Int       `abi:"validTo"`
	Nonce         *big.Int       `abi:"nonce"`
}

// SwapParams carries everything the router swap encoding needs. AmountFrom
// and MinAmountTo are the slippage-adjusted amounts; Data is the winning
// aggregator's own calldata.
type SwapParams struct {
	AdapterID  string
	TokenFrom  common.Address
	TokenTo    common.Address
	AmountFrom *big.Int
	MinAmount  *big.Int
	Recipient  common.Address
	Aggregator common.Address
	Data       []byte
}

// GaslessParams extends SwapParams with the fee settlement fields carried by
// the gasless adapter.
type GaslessParams struct {
	SwapParams
	PaymentFees  *big.Int
	PaymentToken common.Address
	Signer       common.Address
}

func checkAmounts(amountFrom, minAmount *big.Int) error {
	if amountFrom == nil || amountFrom.Sign() < 0 {
		return model.NewRequestError(http.StatusBadRequest, "insufficient sell amount")
	}
	if minAmount == nil || minAmount.Sign() < 0 {
		return model.NewRequestError(http.StatusBadRequest, "insufficient buy amount")
	}
	return nil
}

// EncodeRouterSwap encodes the router's swap entry point around the gassed
// swap adapter payload.
func EncodeRouterSwap(p SwapParams) (string, error) {
	if err := checkAmounts(p.AmountFrom, p.MinAmount); err != nil {
		return "", err
	}
	inner, err := swapAdapterArgs.Pack(p.TokenFrom, p.TokenTo, p.AmountFrom, p.MinAmount, p.Aggregator, p.Data)
	if err != nil {
		return "", model.NewRequestError(http.StatusInternalServerError, "adapter encoding failed: %s", err.Error())
	}
	return packRouterSwap(p, inner)
}

// EncodeGaslessSwap encodes the router's swap entry point around the gasless
// adapter payload.
func EncodeGaslessSwap(p GaslessParams) (string, error) {
	if err := checkAmounts(p.AmountFrom, p.MinAmount); err != nil {
		return "", err
	}
	if p.PaymentFees == nil || p.PaymentFees.Sign() < 0 {
		return "", model.NewRequestError(http.StatusBadRequest, "insufficient payment fees")
	}
	inner, err := gaslessAdapterArgs.Pack(
		p.TokenFrom, p.TokenTo, p.AmountFrom, p.MinAmount, p.Aggregator,
		p.PaymentFees, p.PaymentToken, p.Signer, p.Data)
	if err != nil {
		return "", model.NewRequestError(http.StatusInternalServerError, "adapter encoding failed: %s", err.Error())
	}
	return packRouterSwap(p.SwapParams, inner)
}

func packRouterSwap(p SwapParams, adapterData []byte) (string, error) {
	data, err := routerABI.Pack("swap",
		p.TokenFrom, p.AmountFrom, p.Recipient,
		routerAdapter{AdapterId: p.AdapterID, Data: adapterData})
	if err != nil {
		return "", model.NewRequestError(http.StatusInternalServerError, "swap encoding failed: %s", err.Error())
	}
	return hexutil.Encode(data), nil
}

// EncodeForwarderExecute encodes the forwarder's executeCall entry point for
// a signed meta-transaction.
func EncodeForwarderExecute(req *model.ForwarderRequest, signature []byte) (string, error) {
	paymentFees, ok := new(big.Int).SetString(req.PaymentFees, 10)
	if !ok || paymentFees.Sign() < 0 {
		return "", model.NewRequestError(http.StatusBadRequest, "insufficient payment fees")
	}
	tokenGasPrice, ok := new(big.Int).SetString(req.TokenGasPrice, 10)
	if !ok {
		return "", model.NewRequestError(http.StatusBadRequest, "invalid token gas price %q", req.TokenGasPrice)
	}

	data, err := forwarderABI.Pack("executeCall", forwardRequestTuple{
		Signer:        common.HexToAddress(req.Signer),
		Metaswap:      common.HexToAddress(req.Metaswap),
		CallData:      common.FromHex(req.Calldata),
		PaymentToken:  common.HexToAddress(req.PaymentToken),
		PaymentFees:   paymentFees,
		TokenGasPrice: tokenGasPrice,
		ValidTo:       big.NewInt(req.ValidTo),
		Nonce:         big.NewInt(req.Nonce),
	}, signature)
	if err != nil {
		return "", model.NewRequestError(http.StatusInternalServerError, "executeCall encoding failed: %s", err.Error())
	}
	return hexutil.Encode(data), nil
}

// GaslessSwapCall is the decoded form of a gasless router swap calldata.
type GaslessSwapCall struct {
	AdapterID    string
	TokenFrom    common.Address
	TokenTo      common.Address
	AmountFrom   *big.Int
	MinAmount    *big.Int
	Aggregator   common.Address
	PaymentFees  *big.Int
	PaymentToken common.Address
	Signer       common.Address
	Data         []byte
}

// DecodeGaslessSwap reverses EncodeGaslessSwap down to the adapter fields.
func DecodeGaslessSwap(data []byte) (*GaslessSwapCall, error) {
	method := routerABI.Methods["swap"]
	if len(data) < 4 {
		return nil, fmt.Errorf("calldata too short")
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	adapter := *abi.ConvertType(values[3], new(routerAdapter)).(*routerAdapter)

	inner, err := gaslessAdapterArgs.Unpack(adapter.Data)
	if err != nil {
		return nil, err
	}
	return &GaslessSwapCall{
		AdapterID:    adapter.AdapterId,
		TokenFrom:    inner[0].(common.Address),
		TokenTo:      inner[1].(common.Address),
		AmountFrom:   inner[2].(*big.Int),
		MinAmount:    inner[3].(*big.Int),
		Aggregator:   inner[4].(common.Address),
		PaymentFees:  inner[5].(*big.Int),
		PaymentToken: inner[6].(common.Address),
		Signer:       inner[7].(common.Address),
		Data:         inner[8].([]byte),
	}, nil
}

// DecodeForwarderExecute reverses EncodeForwarderExecute; the simulator and
// tests use it to recover the request a calldata blob carries.
func DecodeForwarderExecute(data []byte) (*model.ForwarderRequest, []byte, error) {
	method := forwarderABI.Methods["executeCall"]
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("calldata too short")
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, err
	}

	tuple := *abi.ConvertType(values[0], new(forwardRequestTuple)).(*forwardRequestTuple)
	signature := *abi.ConvertType(values[1], new([]byte)).(*[]byte)

	return &model.ForwarderRequest{
		Signer:        tuple.Signer.Hex(),
		Metaswap:      tuple.Metaswap.Hex(),
		Calldata:      hexutil.Encode(tuple.CallData),
		PaymentToken:  tuple.PaymentToken.Hex(),
		PaymentFees:   tuple.PaymentFees.String(),
		TokenGasPrice: tuple.TokenGasPrice.String(),
		ValidTo:       tuple.ValidTo.Int64(),
		Nonce:         tuple.Nonce.Int64(),
	}, signature, nil
}
