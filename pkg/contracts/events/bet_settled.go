package events

// Evento emitido pelo engine-service quando a aleatoriedade chega e a
// aposta é liquidada (reveal ou callback do oráculo).
type BetSettled struct {
	BetID            uint64  `json:"bet_id"`
	Owner            string  `json:"owner"`
	Outcomes         []int64 `json:"outcomes"`
	PayoutsUnits     []int64 `json:"payouts_units"`
	TotalPayoutUnits int64   `json:"total_payout_units"`
	RoundsPlayed     int     `json:"rounds_played"`
	// Beacon da casa em hex (só commit-reveal): com ele e os segredos
	// revelados qualquer consumidor reconfere os outcomes.
	Beacon   string `json:"beacon,omitempty"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}
