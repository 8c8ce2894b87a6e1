package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
)

// Sign returns the lowercase hex HMAC-SHA256 of timestamp+apiKey+recvWindow+payload.
// payload is the query string for GET and the JSON body for POST.
func Sign(secret string, timestamp int64, apiKey string, recvWindow int, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10) + apiKey + strconv.Itoa(recvWindow) + payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) signRequest(req *http.Request, timestamp int64, payload string) {
	req.Header.Set("X-BAPI-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(c.cfg.RecvWindowMs))
	req.Header.Set("X-BAPI-SIGN", Sign(c.cfg.APISecret, timestamp, c.cfg.APIKey, c.cfg.RecvWindowMs, payload))
}
