package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDeploymentDecodesDeployScriptOutput(t *testing.T) {
	raw := `{
  "tokenA": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
  "tokenB": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
  "dex": "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0",
  "network": "localhost",
  "chainId": 31337
}`
	var d Deployment
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if d.Pool != "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0" || d.ChainID != 31337 || d.Network != "localhost" {
		t.Fatalf("unexpected deployment: %+v", d)
	}
}

func TestActionEventOmitsEmptyError(t *testing.T) {
	b, err := json.Marshal(ActionEvent{ActionID: 1, Intent: "swap", State: "succeeded", TxHash: "0xabc"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(b), "error_kind") {
		t.Fatalf("unexpected error field in %s", b)
	}
}
