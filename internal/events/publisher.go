package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/metaswap-labs/swap-aggregator/pkg/model"
)

// QuoteServedEvent is the payload published after a quote is handed to a
// caller. Downstream consumers use it for analytics and relayer accounting.
type QuoteServedEvent struct {
	ID            uuid.UUID `json:"id"`
	CorrelationID string    `json:"correlationId"`
	ChainID       int64     `json:"chainId"`
	Aggregator    string    `json:"aggregator"`
	Flow          string    `json:"flow"` // "swap" or "gasless"
	SellToken     string    `json:"sellToken"`
	BuyToken      string    `json:"buyToken"`
	SellAmount    string    `json:"sellAmount"`
	BuyAmount     string    `json:"buyAmount"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher emits quote events over NATS JetStream. A nil Publisher is valid
// and drops everything; the pipeline never depends on the broker being up.
type Publisher struct {
	logger  *zap.Logger
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
}

func New(logger *zap.Logger, nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		logger:  logger,
		nc:      nc,
		js:      js,
		service: service,
	}, nil
}

// PublishQuoteServed emits an evt.swap.quote.v1.<AGGREGATOR> event. Publish
// failures are logged, never propagated; eventing is best effort.
func (p *Publisher) PublishQuoteServed(ctx context.Context, correlationID string, chainID int64, flow string, q *model.AggregatorQuote) {
	if p == nil {
		return
	}

	evt := QuoteServedEvent{
		ID:            uuid.New(),
		CorrelationID: correlationID,
		ChainID:       chainID,
		Aggregator:    string(q.AggregatorName),
		Flow:          flow,
		SellToken:     q.SellTokenAddress,
		BuyToken:      q.BuyTokenAddress,
		SellAmount:    q.SellAmount,
		BuyAmount:     q.BuyAmount,
		Timestamp:     time.Now().UTC(),
	}
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Error("events.marshal_failed", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("evt.swap.quote.v1.%s", subjectToken(q.AggregatorName))
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"correlation_id": []string{correlationID},
			"service":        []string{p.service},
			"content_type":   []string{"application/json"},
		},
	}
	if _, err := p.js.PublishMsg(msg); err != nil {
		p.logger.Warn("events.publish_failed",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}

	p.logger.Debug("events.publish_success",
		zap.String("subject", subject),
		zap.String("aggregator", string(q.AggregatorName)))
}

// subjectToken normalizes an aggregator name into a NATS subject token.
func subjectToken(name model.AggregatorName) string {
	return strings.ToUpper(strings.ReplaceAll(string(name), ".", "_"))
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if p.nc.IsConnected() {
		p.nc.Close()
	}
}
