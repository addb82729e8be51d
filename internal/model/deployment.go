package model

// Deployment describes the pool contract and its two assets on one network.
// JSON tags follow the deployments.json written by the deploy script.
type Deployment struct {
	AssetA  string `json:"tokenA"`
	AssetB  string `json:"tokenB"`
	Pool    string `json:"dex"`
	Network string `json:"network"`
	ChainID uint64 `json:"chainId"`
}
