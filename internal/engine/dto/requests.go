package dto

type PlaceCommitBetRequest struct {
	BetID         uint64   `json:"betId"` // escolhido pelo caller; precisa ser inédito
	Owner         string   `json:"owner"`
	WagerUnits    int64    `json:"wager_units"`
	Modulo        int64    `json:"modulo"` // 2 | 6 | 36 | 37 | 100
	Mask          uint64   `json:"mask"`
	Edge          int64    `json:"edge"`
	IsLarger      bool     `json:"is_larger"`
	Rounds        int      `json:"rounds"`
	StopGainUnits int64    `json:"stop_gain_units"`
	StopLossUnits int64    `json:"stop_loss_units"`
	Commitments   []string `json:"commitments"` // um sha256 (hex) por rodada
}

type PlaceOracleBetRequest struct {
	Owner         string `json:"owner"`
	WagerUnits    int64  `json:"wager_units"`
	Modulo        int64  `json:"modulo"`
	Mask          uint64 `json:"mask"`
	Edge          int64  `json:"edge"`
	IsLarger      bool   `json:"is_larger"`
	Rounds        int    `json:"rounds"`
	StopGainUnits int64  `json:"stop_gain_units"`
	StopLossUnits int64  `json:"stop_loss_units"`
}

type RevealRequest struct {
	Reveals []string `json:"reveals"` // preimagens em hex, uma por rodada
}

type FulfillRequest struct {
	Handle uint64   `json:"handle"`
	Words  []string `json:"words"` // 256 bits em hex por rodada
}

type RulesChangeRequest struct {
	RequestID string `json:"requestId"` // id da mudança no gate de governança
}
