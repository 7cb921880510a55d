package dto

type PoolResponse struct {
	AssetID       string `json:"asset_id"`
	BalanceUnits  int64  `json:"balance_units"`
	ReservedUnits int64  `json:"reserved_units"`
	FreeUnits     int64  `json:"free_units"`
}

type DepositRequest struct {
	AssetID     string `json:"asset_id"`
	AmountUnits int64  `json:"amount_units"`
	ExternalRef string `json:"external_ref,omitempty"`
}

type ReserveRequest struct {
	AssetID     string `json:"asset_id"`
	AmountUnits int64  `json:"amount_units"`
	ExternalRef string `json:"external_ref"`
}

type ReservationResponse struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"` // RESERVED
}

type ReleaseRequest struct {
	AssetID     string `json:"asset_id"`
	ExternalRef string `json:"external_ref"`
}

type ReleaseResponse struct {
	Status      string `json:"status"` // RELEASED
	AmountUnits int64  `json:"amount_units"`
}

type FreeFundsResponse struct {
	AssetID   string `json:"asset_id"`
	FreeUnits int64  `json:"free_units"`
}
