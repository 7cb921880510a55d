package random

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// OracleClient pede palavras aleatórias ao serviço de VRF. O fulfillment
// chega depois, fora de banda, no endpoint de callback do engine.
type OracleClient struct {
	BaseURL     string
	CallbackURL string
	HTTP        *http.Client
}

func NewOracleClient(base, callback string) *OracleClient {
	return &OracleClient{
		BaseURL:     base,
		CallbackURL: callback,
		HTTP:        &http.Client{Timeout: 2 * time.Second},
	}
}

type requestWordsReq struct {
	Handle      uint64 `json:"handle"`
	Count       int    `json:"count"`
	CallbackURL string `json:"callback_url"`
}

// RequestRandomWords registra o pedido no oráculo, keyed pelo handle local.
func (c *OracleClient) RequestRandomWords(ctx context.Context, handle uint64, count int) error {
	body, _ := json.Marshal(requestWordsReq{Handle: handle, Count: count, CallbackURL: c.CallbackURL})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/randomness/request", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("oracle request http %d", res.StatusCode)
	}
	return nil
}
