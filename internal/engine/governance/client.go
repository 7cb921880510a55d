package governance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotApproved indica que a governança não aprovou (ou não conhece) a
// mudança pedida.
var ErrNotApproved = errors.New("change not approved by governance")

// RulesChange é o alvo de uma mudança aprovada: só os campos presentes
// (ponteiros não-nulos) são aplicados sobre a versão corrente das regras.
type RulesChange struct {
	MinWagerUnits          *int64          `json:"min_wager_units,omitempty"`
	MaxWagerUnits          *int64          `json:"max_wager_units,omitempty"`
	DefaultEdgePct         *int64          `json:"default_edge_pct,omitempty"`
	EdgePctByModulo        map[int64]int64 `json:"edge_pct_by_modulo,omitempty"`
	WealthTaxThreshold     *int64          `json:"wealth_tax_threshold_units,omitempty"`
	WealthTaxPct           *int64          `json:"wealth_tax_pct,omitempty"`
	MaxProfitUnits         *int64          `json:"max_profit_units,omitempty"`
	PayoutGranularityUnits *int64          `json:"payout_granularity_units,omitempty"`
}

// Client consulta o gate de governança. O motor trata a aprovação como um
// portão opaco; a lógica de votação mora inteira do outro lado.
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

type changeResponse struct {
	Approved bool         `json:"approved"`
	Target   *RulesChange `json:"target"`
}

// ApprovedChange retorna o alvo da mudança se (e só se) aprovada.
func (c *Client) ApprovedChange(ctx context.Context, requestID string) (*RulesChange, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/governance/changes/"+requestID, nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrNotApproved
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("governance lookup http %d", res.StatusCode)
	}
	var out changeResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Approved || out.Target == nil {
		return nil, ErrNotApproved
	}
	return out.Target, nil
}

// ConfirmChange avisa a governança que a mudança foi aplicada.
func (c *Client) ConfirmChange(ctx context.Context, requestID string) error {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/governance/changes/"+requestID+"/confirm", nil)
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("governance confirm http %d", res.StatusCode)
	}
	return nil
}
