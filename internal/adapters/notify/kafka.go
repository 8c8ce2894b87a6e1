package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/segmentio/kafka-go"
)

// Event types published to Kafka.
const (
	EventSignal    = "signal"
	EventTrade     = "trade"
	EventDecisions = "decisions"
)

// Event is the JSON envelope of every published message.
type Event struct {
	Type   string          `json:"type"`
	Symbol string          `json:"symbol"`
	RunID  string          `json:"runId,omitempty"`
	Time   time.Time       `json:"time"`
	Data   json.RawMessage `json:"data"`
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes signals, trades and decisions keyed by symbol.
// It implements ports.Notifier and ports.TradeSink.
type Kafka struct {
	w      MessageWriter
	symbol string
	now    func() time.Time
}

// NewKafka creates a synchronous publisher to topic.
func NewKafka(brokers []string, topic, symbol string) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("notify.NewKafka: brokers are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 100 * time.Millisecond,
	}
	return NewKafkaWriter(w, symbol), nil
}

// NewKafkaWriter wraps an existing writer.
func NewKafkaWriter(w MessageWriter, symbol string) *Kafka {
	return &Kafka{w: w, symbol: strings.ToUpper(symbol), now: time.Now}
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.w.Close()
}

// NotifySignal publishes an entry signal.
func (k *Kafka) NotifySignal(ctx context.Context, at domain.Candle, s domain.TradeSignal) error {
	payload := struct {
		BarTime time.Time          `json:"barTime"`
		Signal  domain.TradeSignal `json:"signal"`
	}{at.OpenTime, s}
	if err := k.publish(ctx, EventSignal, "", payload); err != nil {
		return fmt.Errorf("notify.Kafka.NotifySignal: %w", err)
	}
	return nil
}

// NotifyTrade publishes a closed trade.
func (k *Kafka) NotifyTrade(ctx context.Context, t domain.TradeRecord) error {
	if err := k.publish(ctx, EventTrade, "", t); err != nil {
		return fmt.Errorf("notify.Kafka.NotifyTrade: %w", err)
	}
	return nil
}

// SaveTrade publishes a closed trade under runID.
func (k *Kafka) SaveTrade(ctx context.Context, runID string, t domain.TradeRecord) error {
	if err := k.publish(ctx, EventTrade, runID, t); err != nil {
		return fmt.Errorf("notify.Kafka.SaveTrade: %w", err)
	}
	return nil
}

// SaveDecisions publishes a batch of decisions as one message.
func (k *Kafka) SaveDecisions(ctx context.Context, runID string, decisions []domain.DecisionRecord) error {
	if len(decisions) == 0 {
		return nil
	}
	if err := k.publish(ctx, EventDecisions, runID, decisions); err != nil {
		return fmt.Errorf("notify.Kafka.SaveDecisions: %w", err)
	}
	return nil
}

func (k *Kafka) publish(ctx context.Context, typ, runID string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	now := k.now().UTC()
	value, err := json.Marshal(Event{Type: typ, Symbol: k.symbol, RunID: runID, Time: now, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(k.symbol),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(typ)},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}
