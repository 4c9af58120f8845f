package api

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func (q TradeQuery) Validate() error {
	if strings.TrimSpace(q.SellTokenAddress) == "" {
		return fmt.Errorf("sellTokenAddress is required")
	}
	if strings.TrimSpace(q.BuyTokenAddress) == "" {
		return fmt.Errorf("buyTokenAddress is required")
	}
	if strings.EqualFold(q.SellTokenAddress, q.BuyTokenAddress) {
		return fmt.Errorf("sellTokenAddress and buyTokenAddress must differ")
	}
	if (q.SellAmount == "") == (q.BuyAmount == "") {
		return fmt.Errorf("exactly one of sellAmount or buyAmount is required")
	}
	if q.SellAmount != "" {
		if err := validateAmount("sellAmount", q.SellAmount); err != nil {
			return err
		}
	}
	if q.BuyAmount != "" {
		if err := validateAmount("buyAmount", q.BuyAmount); err != nil {
			return err
		}
	}
	if !common.IsHexAddress(q.From) {
		return fmt.Errorf("fromAddress must be a valid address")
	}
	if q.Recipient != "" && !common.IsHexAddress(q.Recipient) {
		return fmt.Errorf("recipient must be a valid address")
	}

	slippage, err := decimal.NewFromString(q.Slippage)
	if err != nil {
		return fmt.Errorf("slippage must be a decimal fraction")
	}
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("slippage must be in [0, 1)")
	}
	return nil
}

func validateAmount(field, raw string) error {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("%s must be a positive integer in base units", field)
	}
	return nil
}

func (q HistoryQuery) Validate() error {
	if !common.IsHexAddress(q.Account) {
		return fmt.Errorf("account must be a valid address")
	}
	return nil
}
