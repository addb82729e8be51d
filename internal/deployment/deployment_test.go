package deployment

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"miniswap/internal/model"
)

const sample = `{
  "tokenA": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
  "tokenB": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
  "dex": "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
  "network": "localhost",
  "chainId": 31337
}`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployments.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	d, err := LoadFile(writeFile(t, sample))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.Network != "localhost" || d.ChainID != 31337 {
		t.Fatalf("unexpected deployment %+v", d)
	}

	pair, err := ToPair(d)
	if err != nil {
		t.Fatalf("to pair: %v", err)
	}
	if pair.Pool != common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0") {
		t.Fatalf("unexpected pool %s", pair.Pool.Hex())
	}
}

func TestLoadFileMissingChainID(t *testing.T) {
	body := strings.Replace(sample, `,
  "chainId": 31337`, "", 1)
	d, err := LoadFile(writeFile(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.ChainID != 0 {
		t.Fatalf("expected unset chain id, got %d", d.ChainID)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := LoadFile(writeFile(t, "{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestValidate(t *testing.T) {
	base := model.Deployment{
		AssetA: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		AssetB: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		Pool:   "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
	}
	if err := Validate(base); err != nil {
		t.Fatalf("valid deployment rejected: %v", err)
	}

	cases := map[string]func(d *model.Deployment){
		"missing pool": func(d *model.Deployment) { d.Pool = "" },
		"bad hex":      func(d *model.Deployment) { d.AssetA = "0x1234" },
		"zero":         func(d *model.Deployment) { d.AssetB = "0x0000000000000000000000000000000000000000" },
		"same assets":  func(d *model.Deployment) { d.AssetB = d.AssetA },
		"pool is asset": func(d *model.Deployment) {
			d.Pool = strings.ToLower(d.AssetA)
		},
	}
	for name, mutate := range cases {
		d := base
		mutate(&d)
		if err := Validate(d); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
