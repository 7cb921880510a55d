package dto

type ReserveRequest struct {
	AssetID     string `json:"asset_id"`
	AmountUnits int64  `json:"amount_units"`
	ExternalRef string `json:"external_ref"` // "bet:{id}"
}

type ReserveResponse struct {
	ReservationID string `json:"reservation_id"`
	Status        string `json:"status"` // RESERVED
}

type ReleaseRequest struct {
	AssetID     string `json:"asset_id"`
	ExternalRef string `json:"external_ref"`
}

type FreeFundsResponse struct {
	AssetID   string `json:"asset_id"`
	FreeUnits int64  `json:"free_units"`
}
