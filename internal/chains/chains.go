package chains

import "strings"

// Per-chain contract address tables and swap constants. These mirror the
// deployed MetaSwap contract set; behavior never lives here.

const (
	Mainnet  int64 = 1
	Optimism int64 = 10
	Polygon  int64 = 137
	Arbitrum int64 = 42161
	Base     int64 = 8453
)

// NativeToken is the sentinel address denoting the chain's native currency
// in trade requests and quotes.
const NativeToken = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// ZeroAddress is the conventional null address, used both as the cleared
// allowance target for native-token sells and as some providers' native
// sentinel.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// DefaultRecipient is used when a trade request names no recipient; the
// router treats address(1) as "send to caller".
const DefaultRecipient = "0x0000000000000000000000000000000000000001"

// GasOverhead is the fixed gas added on top of the swap estimate when
// pricing relayer fees, covering forwarder dispatch and fee settlement.
const GasOverhead = 130000

// GasMargin is the percentage of the computed gas fee the simulator
// requires the relayer to actually recover. Small tolerance band.
const GasMargin = 95

// RouterAddress maps chains to the MetaSwap router contract.
var RouterAddress = map[int64]string{
	Polygon:  "0x6afD834f6e3D5ad5A83E7838ca45F3DBDe3E323d",
	Arbitrum: "0x4ab78b894611f185Cd7378E25C8f80d63cfBAa71",
	Optimism: "0x6FE9F5616Ac30E0A66B5Bc68D05F081471835bf7",
	Mainnet:  "0x8F42F726e9222DbBd8958D006aa88F1d2D8e6D91",
	Base:     "0x8F42F726e9222DbBd8958D006aa88F1d2D8e6D91",
}

// ForwarderAddress maps chains to the gasless forwarder contract.
var ForwarderAddress = map[int64]string{
	Polygon:  "0x316766609569e00c3484fE9e558A35b975064a62",
	Arbitrum: "0x026D63A16a5c1C28e49539780aef7fb47eb89eC4",
	Optimism: "0x65f4C9756A65cCd3AEA91e92AAE7d01C54425940",
	Mainnet:  "0x7506145777371640e4a3642F5E34A9e0495e4591",
	Base:     "0x8F42F726e9222DbBd8958D006aa88F1d2D8e6D91",
}

// MulticallAddress maps chains to the UniswapInterfaceMulticall contract
// used for read-only simulation batches.
var MulticallAddress = map[int64]string{
	Polygon:  "0x7a1C1dc2a1B6d19135aDD10821dF70132A7f4E84",
	Arbitrum: "0xd653508F889157B49f6003bC8E69B766946bA138",
	Optimism: "0x0BF7C25F4CB02d740677002620A9812E20ef91CB",
	Mainnet:  "0x1Bb73CfCCa1f26DCbB84ab3BcC70Ba792F2aD22b",
	Base:     "0x8F42F726e9222DbBd8958D006aa88F1d2D8e6D91",
}

// FlashWalletAddress is the default 1inch destReceiver per chain.
var FlashWalletAddress = map[int64]string{
	Polygon:  "0xDdBE6Efb0d5A2bf9ABA843290D7a69f4db03Bfdd",
	Arbitrum: "0x58759Ec99baF2A5b9cA990f429370A676aA886BF",
	Optimism: "0x9d0827A272b9E1C354Fc7a15d68c37153FaA35aa",
	Mainnet:  "0x672b34f496b267e6002d5248030e944db8375628",
	Base:     "0x8F42F726e9222DbBd8958D006aa88F1d2D8e6D91",
}

// OneInchAggregatorAddress is the 1inch router (allowance target) per chain.
var OneInchAggregatorAddress = map[int64]string{
	Polygon:  "0x1111111254fb6c44bAC0beD2854e76F90643097d",
	Arbitrum: "0x1111111254fb6c44bAC0beD2854e76F90643097d",
	Optimism: "0x1111111254760f7ab3f16433eea9304126dcd199",
	Mainnet:  "0x1111111254fb6c44bAC0beD2854e76F90643097d",
	Base:     "0x8F42F726e9222DbBd8958D006aa88F1d2D8e6D91",
}

// OdosAggregatorAddress is the Odos router (allowance target) per chain.
var OdosAggregatorAddress = map[int64]string{
	Polygon:  "0x4E3288c9ca110bCC82bf38F09A7b425c095d92Bf",
	Arbitrum: "0xa669e7A0d4b3e4Fa48af2dE86BD4CD7126Be4e13",
	Optimism: "0xCa423977156BB05b13A2BA3b76Bc5419E2fE9680",
	Mainnet:  "0xCf5540fFFCdC3d510B18bFcA6d2b9987b0772559",
	Base:     "0x19cEeAd7105607Cd444F5ad10dd51356436095a1",
}

// FreeSwapsCampaign lists chains whose swaps are currently relayed free of
// charge; gas fees are forced to zero there.
var FreeSwapsCampaign = map[int64]bool{
	Polygon: true,
}

// SimulationExempt lists chains excluded from the simulator's balance-delta
// validations. Mainnet's exemption predates this service and is kept as
// configuration rather than a rule.
var SimulationExempt = map[int64]bool{
	Mainnet: true,
}

// AdapterID returns the gasless adapter identifier registered on the router
// for the given chain. The deployments are not named consistently.
func AdapterID(chainID int64) string {
	switch chainID {
	case Polygon:
		return "GaslessSwap"
	case Mainnet:
		return "gaslessSwapAdapter"
	default:
		return "GaslessSwapAdapter"
	}
}

// SwapAdapterID is the router adapter identifier for the gassed swap path.
const SwapAdapterID = "SwapAggregator"

// HasRouter reports whether the chain has a MetaSwap router deployed.
func HasRouter(chainID int64) bool {
	_, ok := RouterAddress[chainID]
	return ok
}

// IsNative reports whether addr is the native-currency sentinel.
func IsNative(addr string) bool {
	return strings.EqualFold(addr, NativeToken)
}
