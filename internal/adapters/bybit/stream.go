package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	defaultWSURL       = "wss://stream-testnet.bybit.com/v5/public/spot"
	wsPingInterval     = 20 * time.Second
	wsReconnectDelay   = 5 * time.Second
	wsHandshakeTimeout = 10 * time.Second
	wsWriteTimeout     = 10 * time.Second
)

type wsCommand struct {
	ReqID string   `json:"req_id,omitempty"`
	Op    string   `json:"op"`
	Args  []string `json:"args,omitempty"`
}

type wsKlineMessage struct {
	Topic string        `json:"topic"`
	Type  string        `json:"type"`
	Data  []wsKlineData `json:"data"`
}

type wsKlineData struct {
	Start   json.Number `json:"start"`
	Open    string      `json:"open"`
	High    string      `json:"high"`
	Low     string      `json:"low"`
	Close   string      `json:"close"`
	Volume  string      `json:"volume"`
	Confirm bool        `json:"confirm"`
}

// KlineStream subscribes to the public kline topic and delivers confirmed candles.
type KlineStream struct {
	url            string
	topic          string
	dialer         *websocket.Dialer
	pingInterval   time.Duration
	reconnectDelay time.Duration
}

// NewKlineStream creates a stream for symbol at interval. An empty url uses the spot testnet.
func NewKlineStream(url, symbol, interval string) *KlineStream {
	if url == "" {
		url = defaultWSURL
	}
	return &KlineStream{
		url:            url,
		topic:          Topic(symbol, interval),
		dialer:         &websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout},
		pingInterval:   wsPingInterval,
		reconnectDelay: wsReconnectDelay,
	}
}

// Topic is the kline subscription topic, e.g. kline.15.BTCUSDT.
func Topic(symbol, interval string) string {
	return fmt.Sprintf("kline.%s.%s", interval, strings.ToUpper(symbol))
}

// Run connects, subscribes and calls onCandle for every confirmed kline until ctx is done.
// Connection failures are logged and retried after the reconnect delay.
func (s *KlineStream) Run(ctx context.Context, onCandle func(domain.Candle)) error {
	for {
		err := s.session(ctx, onCandle)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("bybit ws: session ended, reconnecting", "err", err, "delay", s.reconnectDelay)
		select {
		case <-time.After(s.reconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *KlineStream) session(ctx context.Context, onCandle func(domain.Candle)) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(cmd wsCommand) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(cmd)
	}

	if err := write(wsCommand{Op: "subscribe", Args: []string{s.topic}}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	slog.Info("bybit ws: subscribed", "topic", s.topic)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := write(wsCommand{ReqID: uuid.NewString(), Op: "ping"}); err != nil {
					slog.Debug("bybit ws: ping failed", "err", err)
					return
				}
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		for _, c := range ParseKlineMessage(raw) {
			onCandle(c)
		}
	}
}

// ParseKlineMessage extracts confirmed candles from a kline push. Other messages yield nothing.
func ParseKlineMessage(raw []byte) []domain.Candle {
	var msg wsKlineMessage
	if err := json.Unmarshal(raw, &msg); err != nil || !strings.HasPrefix(msg.Topic, "kline.") {
		return nil
	}
	var out []domain.Candle
	for _, d := range msg.Data {
		if !d.Confirm {
			continue
		}
		if c, ok := d.candle(); ok {
			out = append(out, c)
		}
	}
	return out
}

func (d wsKlineData) candle() (domain.Candle, bool) {
	ms, err := strconv.ParseInt(d.Start.String(), 10, 64)
	if err != nil {
		return domain.Candle{}, false
	}
	var prices [4]decimal.Decimal
	for i, s := range []string{d.Open, d.High, d.Low, d.Close} {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return domain.Candle{}, false
		}
		prices[i] = v
	}
	volume, err := decimal.NewFromString(d.Volume)
	if err != nil {
		volume = domain.Zero
	}
	return domain.Candle{
		OpenTime: time.UnixMilli(ms).UTC(),
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
		Volume:   volume,
	}, true
}
