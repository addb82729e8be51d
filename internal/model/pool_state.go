package model

// PoolState is the display form of a reserve snapshot. Amounts are decimal
// strings in smallest units; formatted fields are for humans only.
type PoolState struct {
	Pool            string `json:"pool"`
	AssetA          string `json:"asset_a"`
	AssetB          string `json:"asset_b"`
	ReserveA        string `json:"reserve_a"`
	ReserveB        string `json:"reserve_b"`
	ReserveADisplay string `json:"reserve_a_display"`
	ReserveBDisplay string `json:"reserve_b_display"`
	TotalSupply     string `json:"total_supply,omitempty"`
	Seq             uint64 `json:"seq"`
	CapturedAt      string `json:"captured_at"`
}
