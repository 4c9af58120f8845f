package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/internal/events"
	"github.com/metaswap-labs/swap-aggregator/internal/limitorder"
	"github.com/metaswap-labs/swap-aggregator/internal/metrics"
	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// QuoteService is the best-quote pipeline as the handler sees it.
type QuoteService interface {
	GetBestQuote(ctx context.Context, req *model.TradeRequest, skipTxBuild bool) (*model.CompositeQuote, error)
}

// GaslessQuoteService is the gasless pipeline as the handler sees it.
type GaslessQuoteService interface {
	GetGaslessQuote(ctx context.Context, req *model.TradeRequest) (*model.ResultGaslessQuote, error)
}

// PositionService looks up limit-order positions.
type PositionService interface {
	History(ctx context.Context, chainID int64, account string) ([]limitorder.Position, error)
}

// SwapHandler handles the quote and gasless-quote HTTP surface.
// events may be nil; publishing is best effort.
type SwapHandler struct {
	logger  *zap.Logger
	quotes  QuoteService
	gasless GaslessQuoteService
	orders  PositionService
	events  *events.Publisher
}

func NewSwapHandler(logger *zap.Logger, quotes QuoteService, gasless GaslessQuoteService, orders PositionService, pub *events.Publisher) *SwapHandler {
	return &SwapHandler{
		logger:  logger,
		quotes:  quotes,
		gasless: gasless,
		orders:  orders,
		events:  pub,
	}
}

// GetQuoteHandler serves GET /:apiVersion/:chainId/getQuote.
func (h *SwapHandler) GetQuoteHandler(c *fiber.Ctx) error {
	chainID, q, correlationID, err := h.parseTrade(c)
	if err != nil {
		return writeBadRequest(c, err)
	}
	req := toTradeRequest(q, chainID)

	composite, err := h.quotes.GetBestQuote(c.Context(), req, false)
	if err != nil {
		reqErr := model.AsRequestError(err)
		h.logger.Error("api.get_quote.failed",
			zap.String("correlation_id", correlationID),
			zap.Int64("chain_id", chainID),
			zap.Int("status", reqErr.StatusCode),
			zap.String("reason", reqErr.Data))
		return writeRequestError(c, reqErr)
	}

	metrics.QuotesServedTotal.WithLabelValues(string(composite.AggregatorQuote.AggregatorName), "swap").Inc()
	h.events.PublishQuoteServed(c.Context(), correlationID, chainID, "swap", &composite.AggregatorQuote)

	return c.Status(fiber.StatusOK).JSON(composite.ResultQuote)
}

// GetGaslessQuoteHandler serves GET /:apiVersion/:chainId/getGaslessQuote.
func (h *SwapHandler) GetGaslessQuoteHandler(c *fiber.Ctx) error {
	chainID, q, correlationID, err := h.parseTrade(c)
	if err != nil {
		return writeBadRequest(c, err)
	}
	req := toTradeRequest(q, chainID)

	result, err := h.gasless.GetGaslessQuote(c.Context(), req)
	if err != nil {
		reqErr := model.AsRequestError(err)
		h.logger.Error("api.get_gasless_quote.failed",
			zap.String("correlation_id", correlationID),
			zap.Int64("chain_id", chainID),
			zap.Int("status", reqErr.StatusCode),
			zap.String("reason", reqErr.Data))
		return writeRequestError(c, reqErr)
	}

	metrics.QuotesServedTotal.WithLabelValues("best", "gasless").Inc()

	return c.Status(fiber.StatusOK).JSON(result)
}

// LimitOrderHistoryHandler serves GET /:apiVersion/:chainId/limitOrder/history.
func (h *SwapHandler) LimitOrderHistoryHandler(c *fiber.Ctx) error {
	chainID, err := parseChainID(c)
	if err != nil {
		return writeBadRequest(c, err)
	}
	var q HistoryQuery
	if err := c.QueryParser(&q); err != nil {
		return writeBadRequest(c, err)
	}
	if err := q.Validate(); err != nil {
		return writeBadRequest(c, err)
	}

	positions, err := h.orders.History(c.Context(), chainID, q.Account)
	if err != nil {
		reqErr := model.AsRequestError(err)
		h.logger.Error("api.limit_order_history.failed",
			zap.Int64("chain_id", chainID),
			zap.String("account", q.Account),
			zap.Int("status", reqErr.StatusCode))
		return writeRequestError(c, reqErr)
	}
	return c.Status(fiber.StatusOK).JSON(positions)
}

func (h *SwapHandler) parseTrade(c *fiber.Ctx) (int64, TradeQuery, string, error) {
	correlationID := uuid.NewString()
	chainID, err := parseChainID(c)
	if err != nil {
		return 0, TradeQuery{}, correlationID, err
	}

	var q TradeQuery
	if err := c.QueryParser(&q); err != nil {
		return 0, TradeQuery{}, correlationID, err
	}
	if err := q.Validate(); err != nil {
		return 0, TradeQuery{}, correlationID, err
	}

	h.logger.Info("api.trade_request",
		zap.String("correlation_id", correlationID),
		zap.String("api_version", c.Params("apiVersion")),
		zap.Int64("chain_id", chainID),
		zap.String("sell_token", q.SellTokenAddress),
		zap.String("buy_token", q.BuyTokenAddress),
		zap.Bool("skip_validation", q.SkipValidation))
	return chainID, q, correlationID, nil
}

func parseChainID(c *fiber.Ctx) (int64, error) {
	chainID, err := strconv.ParseInt(c.Params("chainId"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "chainId must be an integer")
	}
	return chainID, nil
}

func writeBadRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(model.RequestError{
		StatusCode: fiber.StatusBadRequest,
		Data:       err.Error(),
	})
}

func writeRequestError(c *fiber.Ctx, reqErr *model.RequestError) error {
	return c.Status(reqErr.StatusCode).JSON(reqErr)
}
