package limitorder

import (
	"context"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/chains"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// positionManagerAddress is the Uniswap V3 NonfungiblePositionManager per
// chain. Limit orders are represented as narrow-range V3 positions.
var positionManagerAddress = map[int64]string{
	chains.Mainnet:  "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
	chains.Polygon:  "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
	chains.Optimism: "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
	chains.Arbitrum: "0xC36442b4a4522E871399CD717aBDD847Ab11FE88",
	chains.Base:     "0x03a520b32C04BF3bEEf7BEb72E919cf822Ed34f1",
}

const managerABIJSON = `[
	{"name": "balanceOf", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "owner", "type": "address"}],
	 "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "tokenOfOwnerByIndex", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "owner", "type": "address"}, {"name": "index", "type": "uint256"}],
	 "outputs": [{"name": "", "type": "uint256"}]},
	{"name": "positions", "type": "function", "stateMutability": "view",
	 "inputs": [{"name": "tokenId", "type": "uint256"}],
	 "outputs": [
		{"name": "nonce", "type": "uint96"},
		{"name": "operator", "type": "address"},
		{"name": "token0", "type": "address"},
		{"name": "token1", "type": "address"},
		{"name": "fee", "type": "uint24"},
		{"name": "tickLower", "type": "int24"},
		{"name": "tickUpper", "type": "int24"},
		{"name": "liquidity", "type": "uint128"},
		{"name": "feeGrowthInside0LastX128", "type": "uint256"},
		{"name": "feeGrowthInside1LastX128", "type": "uint256"},
		{"name": "tokensOwed0", "type": "uint128"},
		{"name": "tokensOwed1", "type": "uint128"}
	 ]}
]`

var managerABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(managerABIJSON))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// Position is one V3 position owned by the queried account.
type Position struct {
	TokenID     string `json:"tokenId"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint32 `json:"fee"`
	TickLower   int32  `json:"tickLower"`
	TickUpper   int32  `json:"tickUpper"`
	Liquidity   string `json:"liquidity"`
	TokensOwed0 string `json:"tokensOwed0"`
	TokensOwed1 string `json:"tokensOwed1"`
}

// Service reads an account's positions off the position manager contract.
// Pure read-through, no caching.
type Service struct {
	logger   *zap.Logger
	registry *chains.Registry
}

func NewService(logger *zap.Logger, registry *chains.Registry) *Service {
	return &Service{
		logger:   logger,
		registry: registry,
	}
}

// History lists every position the account currently holds.
func (s *Service) History(ctx context.Context, chainID int64, account string) ([]Position, error) {
	managerHex, ok := positionManagerAddress[chainID]
	if !ok {
		return nil, model.NewRequestError(http.StatusBadRequest, "no position manager on chain %d", chainID)
	}
	client, err := s.registry.Client(chainID)
	if err != nil {
		return nil, model.NewRequestError(http.StatusInternalServerError, "%s", err.Error())
	}

	manager := common.HexToAddress(managerHex)
	owner := common.HexToAddress(account)

	balance, err := s.callUint(ctx, client, manager, "balanceOf", owner)
	if err != nil {
		return nil, err
	}

	count := balance.Int64()
	positions := make([]Position, 0, count)
	for i := int64(0); i < count; i++ {
		tokenID, err := s.callUint(ctx, client, manager, "tokenOfOwnerByIndex", owner, big.NewInt(i))
		if err != nil {
			return nil, err
		}
		pos, err := s.position(ctx, client, manager, tokenID)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *pos)
	}
	return positions, nil
}

func (s *Service) callUint(ctx context.Context, client chains.EVMClient, to common.Address, method string, args ...any) (*big.Int, error) {
	raw, err := s.call(ctx, client, to, method, args...)
	if err != nil {
		return nil, err
	}
	values, err := managerABI.Methods[method].Outputs.Unpack(raw)
	if err != nil {
		return nil, model.NewRequestError(http.StatusInternalServerError, "%s decode failed: %s", method, err.Error())
	}
	return abi.ConvertType(values[0], new(big.Int)).(*big.Int), nil
}

func (s *Service) position(ctx context.Context, client chains.EVMClient, manager common.Address, tokenID *big.Int) (*Position, error) {
	raw, err := s.call(ctx, client, manager, "positions", tokenID)
	if err != nil {
		return nil, err
	}
	values, err := managerABI.Methods["positions"].Outputs.Unpack(raw)
	if err != nil {
		return nil, model.NewRequestError(http.StatusInternalServerError, "positions decode failed: %s", err.Error())
	}

	token0 := abi.ConvertType(values[2], new(common.Address)).(*common.Address)
	token1 := abi.ConvertType(values[3], new(common.Address)).(*common.Address)
	fee := abi.ConvertType(values[4], new(big.Int)).(*big.Int)
	tickLower := abi.ConvertType(values[5], new(big.Int)).(*big.Int)
	tickUpper := abi.ConvertType(values[6], new(big.Int)).(*big.Int)
	liquidity := abi.ConvertType(values[7], new(big.Int)).(*big.Int)
	owed0 := abi.ConvertType(values[10], new(big.Int)).(*big.Int)
	owed1 := abi.ConvertType(values[11], new(big.Int)).(*big.Int)

	return &Position{
		TokenID:     tokenID.String(),
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		Fee:         uint32(fee.Uint64()),
		TickLower:   int32(tickLower.Int64()),
		TickUpper:   int32(tickUpper.Int64()),
		Liquidity:   liquidity.String(),
		TokensOwed0: owed0.String(),
		TokensOwed1: owed1.String(),
	}, nil
}

func (s *Service) call(ctx context.Context, client chains.EVMClient, to common.Address, method string, args ...any) ([]byte, error) {
	data, err := managerABI.Pack(method, args...)
	if err != nil {
		return nil, model.NewRequestError(http.StatusInternalServerError, "%s encode failed: %s", method, err.Error())
	}
	raw, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, model.NewRequestError(http.StatusInternalServerError, "%s call failed: %s", method, err.Error())
	}
	return raw, nil
}
