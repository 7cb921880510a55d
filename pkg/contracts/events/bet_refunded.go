package events

// Evento emitido quando uma aposta pendente expira e a aposta é devolvida.
type BetRefunded struct {
	BetID       uint64 `json:"bet_id"`
	Owner       string `json:"owner"`
	AmountUnits int64  `json:"amount_units"` // valor liberado da reserva (aposta devolvida integral)
	TsUnixMs    int64  `json:"ts_unix_ms"`
}
