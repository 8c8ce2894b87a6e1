package bybit_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/wavebot/internal/adapters/bybit"
	"github.com/alejandrodnm/wavebot/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(srv *httptest.Server) *bybit.Client {
	return bybit.NewClient(bybit.Config{
		BaseURL:   srv.URL,
		APIKey:    "testKey",
		APISecret: "mysecret",
		Category:  "spot",
		Symbol:    "btcusdt",
	})
}

func writeResult(w http.ResponseWriter, result string) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":`+result+`,"time":1700000000000}`)
}

// --- Signer ---

func TestSign_KnownVector(t *testing.T) {
	sig := bybit.Sign("mysecret", 1670000000000, "testKey", 5000, "category=spot&symbol=BTCUSDT")
	assert.Equal(t, "7208dfe67fb07a50e08a50b0353ac6cfb404bca5375ab7ea594b80243f465070", sig)
}

// --- Klines ---

func TestKlines_ParsesAndSortsAscending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/kline", r.URL.Path)
		assert.Equal(t, "category=spot&symbol=BTCUSDT&interval=15&limit=2", r.URL.RawQuery)
		writeResult(w, `{"list":[
			["1700000900000","101","102","100","101.5","12"],
			["1700000000000","100","101","99","100.5","10"],
			["bad","1","1","1","1","1"],
			["1700001800000","1"]
		]}`)
	}))
	defer srv.Close()

	candles, err := newClient(srv).Klines(context.Background(), "15", 0, 0, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.Equal(t, int64(1700000000000), candles[0].OpenMs())
	assert.True(t, candles[1].Close.Equal(domain.Dec("101.5")))
}

func TestKlines_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"retCode":10001,"retMsg":"params error"}`)
	}))
	defer srv.Close()

	_, err := newClient(srv).Klines(context.Background(), "15", 0, 0, 0)
	var apiErr *bybit.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 10001, apiErr.RetCode)
}

func TestKlines_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			io.WriteString(w, `{"retCode":10006,"retMsg":"too many visits"}`)
			return
		}
		writeResult(w, `{"list":[["1700000000000","1","1","1","1","1"]]}`)
	}))
	defer srv.Close()

	candles, err := newClient(srv).Klines(context.Background(), "15", 0, 0, 0)
	require.NoError(t, err)
	assert.Len(t, candles, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestKlines_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeResult(w, `{"list":[]}`)
	}))
	defer srv.Close()

	_, err := newClient(srv).Klines(context.Background(), "15", 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestKlinesPaged_WalksBackwards(t *testing.T) {
	const step = int64(15 * 60 * 1000)
	base := int64(1700000100000) / step * step

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		end := r.URL.Query().Get("end")
		start := r.URL.Query().Get("start")
		assert.NotEmpty(t, start)
		endMs, err := strconv.ParseInt(end, 10, 64)
		assert.NoError(t, err)
		row := func(ms int64) string {
			return fmt.Sprintf(`["%d","1","1","1","1","1"]`, ms)
		}
		writeResult(w, `{"list":[`+row(endMs)+`,`+row(endMs-step)+`]}`)
	}))
	defer srv.Close()

	start := time.UnixMilli(base)
	end := time.UnixMilli(base + 3*step)
	candles, err := newClient(srv).KlinesPaged(context.Background(), "15", start, end)
	require.NoError(t, err)
	require.Len(t, candles, 4)
	assert.Equal(t, base, candles[0].OpenMs())
	assert.Equal(t, base+3*step, candles[3].OpenMs())
}

// --- Instruments ---

func TestInstruments_MapsFiltersAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v5/market/instruments-info", r.URL.Path)
		writeResult(w, `{"list":[{"symbol":"BTCUSDT",
			"lotSizeFilter":{"minOrderQty":"0.000048","maxOrderQty":"71.73","basePrecision":"0.000001","minOrderAmt":"1"},
			"priceFilter":{"tickSize":"0.01"}}]}`)
	}))
	defer srv.Close()

	in := bybit.NewInstruments(newClient(srv))
	f, err := in.Filters(context.Background())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.True(t, f.QtyStep.Equal(domain.Dec("0.000001")))
	assert.True(t, f.MinNotional.Equal(domain.Dec("1")))
	assert.True(t, f.TickSize.Equal(domain.Dec("0.01")))
	assert.Nil(t, f.MinPrice)

	_, err = in.Filters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestInstruments_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, `{"list":[]}`)
	}))
	defer srv.Close()

	f, err := newClient(srv).InstrumentFilters(context.Background())
	require.NoError(t, err)
	assert.Nil(t, f)
}

// --- Orders ---

func TestPlaceMarketOrder_SignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v5/market/time" {
			writeResult(w, `{"timeSecond":"1700000000"}`)
			return
		}
		assert.Equal(t, "/v5/order/create", r.URL.Path)
		body, _ := io.ReadAll(r.Body)

		ts := r.Header.Get("X-BAPI-TIMESTAMP")
		assert.Equal(t, "testKey", r.Header.Get("X-BAPI-API-KEY"))
		assert.Equal(t, "5000", r.Header.Get("X-BAPI-RECV-WINDOW"))
		tsMs, err := strconv.ParseInt(ts, 10, 64)
		assert.NoError(t, err)
		want := bybit.Sign("mysecret", tsMs, "testKey", 5000, string(body))
		assert.Equal(t, want, r.Header.Get("X-BAPI-SIGN"))

		var req map[string]string
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "Buy", req["side"])
		assert.Equal(t, "Market", req["orderType"])
		assert.Equal(t, "0.5", req["qty"])
		assert.Equal(t, "BTCUSDT", req["symbol"])
		assert.Equal(t, "baseCoin", req["marketUnit"])
		assert.NotEmpty(t, req["orderLinkId"])
		writeResult(w, `{"orderId":"abc","orderLinkId":"x"}`)
	}))
	defer srv.Close()

	id, err := newClient(srv).PlaceMarketOrder(context.Background(), domain.SideLong, domain.Dec("0.50"))
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
}

func TestPlaceMarketOrder_RequiresCredentials(t *testing.T) {
	c := bybit.NewClient(bybit.Config{BaseURL: "http://127.0.0.1:1", Symbol: "BTCUSDT"})
	_, err := c.PlaceMarketOrder(context.Background(), domain.SideShort, domain.One)
	assert.Error(t, err)
}

// --- Stream ---

func TestParseKlineMessage_OnlyConfirmed(t *testing.T) {
	raw := []byte(`{"topic":"kline.15.BTCUSDT","type":"snapshot","data":[
		{"start":1700000000000,"open":"1","high":"2","low":"0.5","close":"1.5","volume":"10","confirm":false},
		{"start":1700000900000,"open":"1.5","high":"2","low":"1","close":"1.8","volume":"11","confirm":true}
	]}`)
	candles := bybit.ParseKlineMessage(raw)
	require.Len(t, candles, 1)
	assert.Equal(t, int64(1700000900000), candles[0].OpenMs())

	assert.Empty(t, bybit.ParseKlineMessage([]byte(`{"op":"pong","success":true}`)))
}

func TestKlineStream_SubscribesAndDelivers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub struct {
			Op   string   `json:"op"`
			Args []string `json:"args"`
		}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, "subscribe", sub.Op)
		assert.Equal(t, []string{"kline.15.BTCUSDT"}, sub.Args)

		conn.WriteMessage(websocket.TextMessage, []byte(`{"topic":"kline.15.BTCUSDT","data":[
			{"start":1700000000000,"open":"1","high":"2","low":"0.5","close":"1.5","volume":"10","confirm":true}]}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan domain.Candle, 1)
	stream := bybit.NewKlineStream("ws"+strings.TrimPrefix(srv.URL, "http"), "btcusdt", "15")
	go stream.Run(ctx, func(c domain.Candle) {
		select {
		case got <- c:
		default:
		}
	})

	select {
	case c := <-got:
		assert.True(t, c.Close.Equal(domain.Dec("1.5")))
	case <-ctx.Done():
		t.Fatal("no candle received")
	}
}
