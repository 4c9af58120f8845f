package txbuilder

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/internal/gasprice"
	"github.com/metaswap-labs/swap-aggregator/internal/metrics"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// Builder assembles broadcast-ready transactions: live gas estimate against
// the chain's primary RPC with a fallback endpoint, current gas price, and
// the caller's calldata.
type Builder struct {
	logger   *zap.Logger
	registry *chains.Registry
	gas      *gasprice.Source
}

func NewBuilder(logger *zap.Logger, registry *chains.Registry, gas *gasprice.Source) *Builder {
	return &Builder{
		logger:   logger,
		registry: registry,
		gas:      gas,
	}
}

// BuildTransaction estimates gas for the given call and assembles the final
// transaction. gasPrice reuses an already-known price; nil fetches fresh.
// A failed estimate is fatal: an unexecutable swap is never handed back.
func (b *Builder) BuildTransaction(ctx context.Context, chainID int64, from, to, data, value string, gasPrice *big.Int) (*model.TransactionData, error) {
	val, err := ParseWei(value)
	if err != nil {
		return nil, err
	}
	toAddr := common.HexToAddress(to)

	gasLimit, err := b.EstimateGas(ctx, chainID, ethereum.CallMsg{
		From:  common.HexToAddress(from),
		To:    &toAddr,
		Data:  common.FromHex(data),
		Value: val,
	})
	if err != nil {
		return nil, err
	}

	if gasPrice == nil {
		gasPrice, err = b.gas.GasPrice(ctx, chainID)
		if err != nil {
			return nil, err
		}
	}

	return &model.TransactionData{
		From:     from,
		To:       to,
		Data:     data,
		Gas:      gasLimit,
		Value:    val.String(),
		GasPrice: gasPrice.String(),
	}, nil
}

// EstimateGas runs eth_estimateGas against the primary RPC, retrying once on
// the fallback endpoint. Both failing is a 500.
func (b *Builder) EstimateGas(ctx context.Context, chainID int64, msg ethereum.CallMsg) (uint64, error) {
	primary, err := b.registry.Client(chainID)
	if err != nil {
		return 0, model.NewRequestError(http.StatusInternalServerError, "%s", err.Error())
	}

	gas, primaryErr := b.estimate(ctx, chainID, primary, msg)
	if primaryErr == nil {
		return gas, nil
	}
	b.logger.Warn("txbuilder.primary_estimate_failed",
		zap.Int64("chain_id", chainID),
		zap.Error(primaryErr))

	fallback, err := b.registry.FallbackClient(chainID)
	if err != nil {
		return 0, model.NewRequestError(http.StatusInternalServerError, "transaction simulation failed: %s", primaryErr.Error())
	}
	gas, fallbackErr := b.estimate(ctx, chainID, fallback, msg)
	if fallbackErr != nil {
		return 0, model.NewRequestError(http.StatusInternalServerError, "transaction simulation failed: %s", fallbackErr.Error())
	}
	return gas, nil
}

func (b *Builder) estimate(ctx context.Context, chainID int64, client chains.EVMClient, msg ethereum.CallMsg) (uint64, error) {
	start := time.Now()
	gas, err := client.EstimateGas(ctx, msg)
	metrics.RPCRequestDuration.WithLabelValues(fmt.Sprint(chainID), "eth_estimateGas").Observe(time.Since(start).Seconds())
	return gas, err
}

// ParseWei parses a wei amount that may arrive as a decimal string, a 0x hex
// string, or empty (zero).
func ParseWei(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		v, err := hexutil.DecodeBig(value)
		if err != nil {
			return nil, model.NewRequestError(http.StatusBadRequest, "invalid value %q", value)
		}
		return v, nil
	}
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, model.NewRequestError(http.StatusBadRequest, "invalid value %q", value)
	}
	return v, nil
}
