package treasury

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	tdto "github.com/radieske/casino-engine-poc/internal/engine/treasury/dto"
)

// ErrInsufficientLiquidity indica que o pool livre não cobre o pior caso de
// pagamento da aposta; a colocação é rejeitada (controle de admissão).
var ErrInsufficientLiquidity = errors.New("treasury cannot cover worst-case payout")

// Client é o contrato de saída do engine com a tesouraria: reservar na
// colocação, liberar na transição terminal. Nunca libera um valor diferente
// do reservado para aquela ref.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Reserve(ctx context.Context, assetID string, amountUnits int64, externalRef string) (string, error) {
	body, _ := json.Marshal(tdto.ReserveRequest{AssetID: assetID, AmountUnits: amountUnits, ExternalRef: externalRef})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/treasury/reserve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusConflict {
		return "", ErrInsufficientLiquidity
	}
	if res.StatusCode >= 300 {
		return "", fmt.Errorf("treasury reserve http %d", res.StatusCode)
	}
	var out tdto.ReserveResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ReservationID, nil
}

// Release desfaz a reserva identificada pela ref. A tesouraria conhece o
// valor exato; o engine não repassa valor pra não haver chance de divergir.
func (c *Client) Release(ctx context.Context, assetID, externalRef string) error {
	body, _ := json.Marshal(tdto.ReleaseRequest{AssetID: assetID, ExternalRef: externalRef})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/treasury/release", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("treasury release http %d", res.StatusCode)
	}
	return nil
}

func (c *Client) FreeFunds(ctx context.Context, assetID string) (int64, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/treasury/free?assetId="+assetID, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return 0, fmt.Errorf("treasury free-funds http %d", res.StatusCode)
	}
	var out tdto.FreeFundsResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.FreeUnits, nil
}
