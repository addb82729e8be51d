package deployment

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"miniswap/internal/ledger"
	"miniswap/internal/model"
)

// LoadFile reads a deployments.json as written by the deploy script.
func LoadFile(path string) (model.Deployment, error) {
	var d model.Deployment
	data, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read deployment file: %w", err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("decode deployment file %s: %w", path, err)
	}
	if err := Validate(d); err != nil {
		return d, fmt.Errorf("deployment file %s: %w", path, err)
	}
	return d, nil
}

// Validate checks that all three addresses are well formed and distinct.
func Validate(d model.Deployment) error {
	fields := []struct {
		name  string
		value string
	}{
		{"tokenA", d.AssetA},
		{"tokenB", d.AssetB},
		{"dex", d.Pool},
	}
	seen := make(map[common.Address]string, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(f.value)
		if v == "" {
			return fmt.Errorf("%s address is required", f.name)
		}
		if !common.IsHexAddress(v) {
			return fmt.Errorf("invalid %s address: %s", f.name, v)
		}
		addr := common.HexToAddress(v)
		if addr == (common.Address{}) {
			return fmt.Errorf("%s address is zero", f.name)
		}
		if prev, dup := seen[addr]; dup {
			return fmt.Errorf("%s and %s share address %s", prev, f.name, addr.Hex())
		}
		seen[addr] = f.name
	}
	return nil
}

// ToPair converts a validated deployment into the pool identity used for
// all reads and writes.
func ToPair(d model.Deployment) (ledger.Pair, error) {
	if err := Validate(d); err != nil {
		return ledger.Pair{}, err
	}
	pair := ledger.Pair{
		Pool:   common.HexToAddress(d.Pool),
		AssetA: common.HexToAddress(d.AssetA),
		AssetB: common.HexToAddress(d.AssetB),
	}
	return pair, pair.Validate()
}
