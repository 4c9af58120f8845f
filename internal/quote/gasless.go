package quote

import (
	"context"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/gasprice"
	"github.com/metaswap-labs/swap-aggregator/internal/metrics"
	"github.com/metaswap-labs/swap-aggregator/internal/relayer"
	"github.com/metaswap-labs/swap-aggregator/internal/simulator"
	"github.com/metaswap-labs/swap-aggregator/internal/txbuilder"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// validityWindow bounds how long a signed forwarder request stays
// executable.
const validityWindow = 10 * time.Minute

// GaslessService wraps the best-quote pipeline with relayer-fee economics:
// part of the buy token is set aside to pay the relayer, the swap executes
// through the gasless forwarder, and the relayer co-signs the request.
type GaslessService struct {
	logger  *zap.Logger
	quotes  *Service
	builder *txbuilder.Builder
	gas     *gasprice.Source
	signer  *relayer.Signer
	sim     *simulator.Simulator
	now     func() time.Time
}

func NewGaslessService(logger *zap.Logger, quotes *Service, builder *txbuilder.Builder, gas *gasprice.Source, signer *relayer.Signer, sim *simulator.Simulator) *GaslessService {
	return &GaslessService{
		logger:  logger,
		quotes:  quotes,
		builder: builder,
		gas:     gas,
		signer:  signer,
		sim:     sim,
		now:     time.Now,
	}
}

// GetGaslessQuote runs the gasless pipeline. Every step short-circuits on
// the first failure.
func (g *GaslessService) GetGaslessQuote(ctx context.Context, req *model.TradeRequest) (*model.ResultGaslessQuote, error) {
	base, err := g.quotes.GetBestQuote(ctx, req, true)
	if err != nil {
		return nil, err
	}
	winner := &base.AggregatorQuote

	gasPrice, err := g.resolveGasPrice(ctx, req.ChainID, base.ResultQuote.Tx)
	if err != nil {
		return nil, err
	}

	gasFees := gasFees(req.ChainID, gasPrice, winner.EstimatedGas)
	paymentToken := winner.BuyTokenAddress
	paymentFees, feeSwap, err := g.paymentFees(ctx, req, paymentToken, gasFees)
	if err != nil {
		return nil, err
	}

	result := &model.ResultGaslessQuote{
		EstimatedGas:        winner.EstimatedGas,
		PaymentTokenAddress: paymentToken,
		PaymentFees:         paymentFees.String(),
		BuyTokenAddress:     base.ResultQuote.BuyTokenAddress,
		BuyAmount:           base.ResultQuote.BuyAmount,
		SellTokenAddress:    base.ResultQuote.SellTokenAddress,
		SellAmount:          base.ResultQuote.SellAmount,
		AllowanceTarget:     base.ResultQuote.AllowanceTarget,
	}
	if req.SkipValidation {
		return result, nil
	}

	tx, simTx, simData, err := g.buildSignedTransaction(ctx, req, winner, gasPrice, paymentToken, paymentFees)
	if err != nil {
		return nil, err
	}

	var feeSwapQuote *model.AggregatorQuote
	if feeSwap != nil {
		feeSwapQuote = &feeSwap.AggregatorQuote
	}
	if err := g.sim.Validate(ctx, simulator.Params{
		ChainID:      req.ChainID,
		Calldata:     simData,
		Gas:          simTx.Gas,
		GasFees:      gasFees,
		PaymentToken: paymentToken,
		PaymentFees:  paymentFees,
		FeeSwap:      feeSwapQuote,
	}); err != nil {
		metrics.QuoteFailuresTotal.WithLabelValues("simulate").Inc()
		return nil, err
	}

	result.EstimatedGas = tx.Gas
	result.Tx = tx
	return result, nil
}

// resolveGasPrice reuses a price already embedded in a built transaction;
// otherwise it fetches one.
func (g *GaslessService) resolveGasPrice(ctx context.Context, chainID int64, tx *model.TransactionData) (*big.Int, error) {
	if tx != nil && tx.GasPrice != "" {
		if price, ok := new(big.Int).SetString(tx.GasPrice, 10); ok {
			return price, nil
		}
	}
	return g.gas.GasPrice(ctx, chainID)
}

// gasFees prices the relayer's work: gas price times the swap estimate plus
// the forwarder dispatch overhead. Campaign chains relay for free.
func gasFees(chainID int64, gasPrice *big.Int, estimatedGas uint64) *big.Int {
	if chains.FreeSwapsCampaign[chainID] {
		return big.NewInt(0)
	}
	total := new(big.Int).SetUint64(estimatedGas + chains.GasOverhead)
	return total.Mul(total, gasPrice)
}

// paymentFees converts the native gas fee into the payment token. Native
// payment tokens pay the fee directly; otherwise a nested exact-output quote
// prices how much payment token the fee swap actually consumes.
func (g *GaslessService) paymentFees(ctx context.Context, req *model.TradeRequest, paymentToken string, gasFees *big.Int) (*big.Int, *model.CompositeQuote, error) {
	if gasFees.Sign() == 0 || chains.IsNative(paymentToken) {
		return gasFees, nil, nil
	}

	// the fee swap is priced on its own terms: anonymous sender, no
	// slippage allowance
	feeReq := &model.TradeRequest{
		ChainID:          req.ChainID,
		SellTokenAddress: paymentToken,
		BuyTokenAddress:  chains.NativeToken,
		BuyAmount:        gasFees.String(),
		From:             chains.ZeroAddress,
		SkipValidation:   true,
	}
	feeSwap, err := g.quotes.GetBestQuote(ctx, feeReq, true)
	if err != nil {
		return nil, nil, err
	}

	fees, ok := new(big.Int).SetString(feeSwap.AggregatorQuote.SellAmount, 10)
	if !ok {
		return nil, nil, model.NewRequestError(http.StatusInternalServerError,
			"fee quote returned invalid sell amount %q", feeSwap.AggregatorQuote.SellAmount)
	}
	return fees, feeSwap, nil
}

// buildSignedTransaction encodes the gasless adapter call, wraps it in a
// relayer-signed forwarder request, and assembles two transactions: the one
// the relayer will broadcast and a simulation twin whose fee recipient is
// the multicall contract, so the dry run can observe the payment and native
// deltas at the batch address.
func (g *GaslessService) buildSignedTransaction(ctx context.Context, req *model.TradeRequest, winner *model.AggregatorQuote, gasPrice *big.Int, paymentToken string, paymentFees *big.Int) (tx, simTx *model.TransactionData, simData string, err error) {
	router, ok := chains.RouterAddress[req.ChainID]
	if !ok {
		return nil, nil, "", model.NewRequestError(http.StatusBadRequest, "no router contract on chain %d", req.ChainID)
	}
	forwarder, ok := chains.ForwarderAddress[req.ChainID]
	if !ok {
		return nil, nil, "", model.NewRequestError(http.StatusBadRequest, "no forwarder contract on chain %d", req.ChainID)
	}
	multicall, ok := chains.MulticallAddress[req.ChainID]
	if !ok {
		return nil, nil, "", model.NewRequestError(http.StatusBadRequest, "no multicall contract on chain %d", req.ChainID)
	}

	amountFrom, minAmount, err := gaslessAdapterAmounts(winner, req, paymentToken, paymentFees)
	if err != nil {
		return nil, nil, "", err
	}

	params := txbuilder.SwapParams{
		AdapterID:  chains.AdapterID(req.ChainID),
		TokenFrom:  common.HexToAddress(req.SellTokenAddress),
		TokenTo:    common.HexToAddress(req.BuyTokenAddress),
		AmountFrom: amountFrom,
		MinAmount:  minAmount,
		Recipient:  common.HexToAddress(recipientOrDefault(req)),
		Aggregator: common.HexToAddress(winner.To),
		Data:       common.FromHex(winner.Data),
	}
	now := g.now()
	signerAddr := g.signer.Address()

	execData, err := g.signedExecData(req, router, forwarder, paymentToken, paymentFees, params, signerAddr, now)
	if err != nil {
		return nil, nil, "", err
	}
	tx, err = g.builder.BuildTransaction(ctx, req.ChainID, signerAddr.Hex(), forwarder, execData, "0", gasPrice)
	if err != nil {
		return nil, nil, "", err
	}

	simData, err = g.signedExecData(req, router, forwarder, paymentToken, paymentFees, params, common.HexToAddress(multicall), now)
	if err != nil {
		return nil, nil, "", err
	}
	simTx, err = g.builder.BuildTransaction(ctx, req.ChainID, signerAddr.Hex(), forwarder, simData, "0", gasPrice)
	if err != nil {
		return nil, nil, "", err
	}
	return tx, simTx, simData, nil
}

// signedExecData encodes the adapter call paying its fee to feeRecipient,
// signs the enclosing forwarder request, and returns the executeCall
// calldata.
func (g *GaslessService) signedExecData(req *model.TradeRequest, router, forwarder, paymentToken string, paymentFees *big.Int, params txbuilder.SwapParams, feeRecipient common.Address, now time.Time) (string, error) {
	swapData, err := txbuilder.EncodeGaslessSwap(txbuilder.GaslessParams{
		SwapParams:   params,
		PaymentFees:  paymentFees,
		PaymentToken: common.HexToAddress(paymentToken),
		Signer:       feeRecipient,
	})
	if err != nil {
		return "", err
	}

	fwdReq := &model.ForwarderRequest{
		Signer:        g.signer.Address().Hex(),
		Metaswap:      router,
		Calldata:      swapData,
		PaymentToken:  paymentToken,
		PaymentFees:   paymentFees.String(),
		TokenGasPrice: "0",
		ValidTo:       now.Add(validityWindow).Unix(),
		Nonce:         now.UnixMilli(),
	}
	signature, err := g.signer.SignForwarderRequest(req.ChainID, req.From, forwarder, fwdReq)
	if err != nil {
		return "", err
	}
	return txbuilder.EncodeForwarderExecute(fwdReq, common.FromHex(signature))
}

// gaslessAdapterAmounts mirrors adapterAmounts but nets the relayer fee out
// of the quoted amount on the payment-token side before the slippage
// padding, since the fee is taken from the swap itself.
func gaslessAdapterAmounts(winner *model.AggregatorQuote, req *model.TradeRequest, paymentToken string, paymentFees *big.Int) (*big.Int, *big.Int, error) {
	basicSell, err := parseAmount(winner.SellAmount, "sell")
	if err != nil {
		return nil, nil, err
	}
	if strings.EqualFold(paymentToken, winner.SellTokenAddress) {
		basicSell = new(big.Int).Sub(basicSell, paymentFees)
		if basicSell.Sign() < 0 {
			return nil, nil, model.NewRequestError(http.StatusBadRequest, "insufficient sell amount")
		}
	}

	basicBuy, err := parseAmount(winner.BuyAmount, "buy")
	if err != nil {
		return nil, nil, err
	}
	if strings.EqualFold(paymentToken, winner.BuyTokenAddress) {
		basicBuy = new(big.Int).Sub(basicBuy, paymentFees)
		if basicBuy.Sign() < 0 {
			return nil, nil, model.NewRequestError(http.StatusBadRequest, "insufficient buy amount")
		}
	}

	switch winner.TradeType {
	case model.ExactOutput:
		amountFrom, err := MaxSellAmount(basicSell.String(), req.Slippage)
		if err != nil {
			return nil, nil, err
		}
		return amountFrom, basicBuy, nil
	default:
		minAmount, err := MinBuyAmount(basicBuy.String(), req.Slippage)
		if err != nil {
			return nil, nil, err
		}
		return basicSell, minAmount, nil
	}
}
