package events

// Variantes de aleatoriedade de uma aposta.
const (
	VariantCommitReveal = "COMMIT_REVEAL"
	VariantOracle       = "ORACLE"
)

type BetPlaced struct {
	BetID            uint64 `json:"bet_id"`
	Owner            string `json:"owner"`
	Variant          string `json:"variant"` // COMMIT_REVEAL | ORACLE
	WagerUnits       int64  `json:"wager_units"`
	Modulo           int64  `json:"modulo"`
	Mask             uint64 `json:"mask"`
	Edge             int64  `json:"edge"`
	IsLarger         bool   `json:"is_larger"`
	WinningCount     int64  `json:"winning_count"`
	Rounds           int    `json:"rounds"`
	WinPerRoundUnits int64  `json:"win_per_round_units"`
	ReservedUnits    int64  `json:"reserved_units"` // valor bloqueado na tesouraria (win_per_round * rounds)
	TsUnixMs         int64  `json:"ts_unix_ms"`
}
