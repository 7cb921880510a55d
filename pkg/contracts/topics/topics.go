package topics

const (
	// Apostas
	BetPlaced   = "bet_placed"
	BetSettled  = "bet_settled"
	BetRefunded = "bet_refunded"

	// DLQs
	BetPlacedDLQ = "bet_placed_dlq"
)
