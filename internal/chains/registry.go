package chains

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// defaultRPCURL is the primary JSON-RPC endpoint per chain. Overridable via
// RPC_URL_<chainId> (see pkg/config).
var defaultRPCURL = map[int64]string{
	Mainnet:  "https://mainnet.infura.io/v3/9aa3d95b3bc440fa88ea12eaa4456161",
	Polygon:  "https://polygon-rpc.com",
	Optimism: "https://mainnet.optimism.io",
	Arbitrum: "https://arbitrum.blockpi.network/v1/rpc/public",
	Base:     "https://base.llamarpc.com",
}

// defaultFallbackRPCURL is the secondary endpoint used when the primary
// errors during gas estimation.
var defaultFallbackRPCURL = map[int64]string{
	Mainnet:  "https://rpc.ankr.com/eth",
	Polygon:  "https://rpc.ankr.com/polygon",
	Optimism: "https://rpc.ankr.com/optimism",
	Arbitrum: "https://rpc.ankr.com/arbitrum",
	Base:     "https://rpc.ankr.com/base",
}

// EVMClient is the narrow slice of ethclient.Client the pipeline needs.
// Tests substitute fakes; production uses *ethclient.Client.
type EVMClient interface {
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Registry lazily dials and caches one primary and one fallback client per
// chain. Safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	logger    *zap.Logger
	primary   map[int64]EVMClient
	fallback  map[int64]EVMClient
	urls      map[int64]string
	fallbacks map[int64]string
}

// NewRegistry builds a registry. overrides maps chain IDs to RPC URLs that
// replace the built-in primaries (fallbacks are never overridden).
func NewRegistry(logger *zap.Logger, overrides map[int64]string) *Registry {
	urls := make(map[int64]string, len(defaultRPCURL))
	for id, u := range defaultRPCURL {
		urls[id] = u
	}
	for id, u := range overrides {
		if u != "" {
			urls[id] = u
		}
	}
	fallbacks := make(map[int64]string, len(defaultFallbackRPCURL))
	for id, u := range defaultFallbackRPCURL {
		fallbacks[id] = u
	}
	return &Registry{
		logger:    logger,
		primary:   make(map[int64]EVMClient),
		fallback:  make(map[int64]EVMClient),
		urls:      urls,
		fallbacks: fallbacks,
	}
}

// Client returns the primary client for a chain, dialing on first use.
func (r *Registry) Client(chainID int64) (EVMClient, error) {
	return r.client(chainID, r.primary, r.urls)
}

// FallbackClient returns the secondary client for a chain.
func (r *Registry) FallbackClient(chainID int64) (EVMClient, error) {
	return r.client(chainID, r.fallback, r.fallbacks)
}

func (r *Registry) client(chainID int64, cache map[int64]EVMClient, urls map[int64]string) (EVMClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := cache[chainID]; ok {
		return c, nil
	}
	url, ok := urls[chainID]
	if !ok {
		return nil, fmt.Errorf("no RPC endpoint configured for chain %d", chainID)
	}
	c, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc for chain %d: %w", chainID, err)
	}
	r.logger.Debug("chains.rpc_dialed",
		zap.Int64("chain_id", chainID),
		zap.String("url", url))
	cache[chainID] = c
	return c, nil
}

// Put injects a client for a chain; used by tests.
func (r *Registry) Put(chainID int64, primary, fallback EVMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if primary != nil {
		r.primary[chainID] = primary
	}
	if fallback != nil {
		r.fallback[chainID] = fallback
	}
}
