package dto

type PlaceBetResponse struct {
	BetID            uint64 `json:"betId"`
	Status           string `json:"status"` // PENDING
	WinPerRoundUnits int64  `json:"win_per_round_units"`
	ReservedUnits    int64  `json:"reserved_units"`
}

type BetResponse struct {
	BetID            uint64  `json:"betId"`
	Owner            string  `json:"owner"`
	Variant          string  `json:"variant"`
	Status           string  `json:"status"`
	WagerUnits       int64   `json:"wager_units"`
	Modulo           int64   `json:"modulo"`
	Rounds           int     `json:"rounds"`
	WinPerRoundUnits int64   `json:"win_per_round_units"`
	Outcomes         []int64 `json:"outcomes,omitempty"`
	PayoutsUnits     []int64 `json:"payouts_units,omitempty"`
	TotalPayoutUnits int64   `json:"total_payout_units"`
	RoundsPlayed     int     `json:"rounds_played"`
	Beacon           string  `json:"beacon,omitempty"`
}

type QuoteResponse struct {
	WinPerRoundUnits int64 `json:"win_per_round_units"`
	Cached           bool  `json:"cached"`
}

type StatusResponse struct {
	PendingBets    int   `json:"pending_bets"`
	FreeFundsUnits int64 `json:"free_funds_units"`
	RulesVersion   int   `json:"rules_version"`
}
