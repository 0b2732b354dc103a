// Package artifact loads the MessageBoard deployment artifact: the deployed
// address, the contract ABI and, optionally, the chain it was deployed to.
package artifact

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LocalDevAddress is where the first contract deployed by the default
// Hardhat account lands on a fresh local node.
const LocalDevAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

//go:embed MessageBoard.json
var embedded []byte

// Artifact is the JSON written by the deployment scripts.
type Artifact struct {
	Address string          `json:"address"`
	ABI     json.RawMessage `json:"abi"`
	ChainID string          `json:"chainId,omitempty"`

	// Source is the file the artifact came from, "embedded" for the default.
	Source string `json:"-"`
}

// Default returns the artifact compiled into the binary.
func Default() (Artifact, error) {
	a, err := Parse(embedded)
	if err != nil {
		return Artifact{}, err
	}
	a.Source = "embedded"
	return a, nil
}

// Load reads an artifact file. An empty path returns the default.
func Load(path string) (Artifact, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("read artifact: %w", err)
	}
	a, err := Parse(data)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s: %w", path, err)
	}
	a.Source = path
	return a, nil
}

// Parse decodes artifact JSON. chainId may be a JSON string or number.
func Parse(data []byte) (Artifact, error) {
	var raw struct {
		Address string          `json:"address"`
		ABI     json.RawMessage `json:"abi"`
		ChainID json.RawMessage `json:"chainId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Artifact{}, fmt.Errorf("parse artifact: %w", err)
	}
	if len(bytes.TrimSpace(raw.ABI)) == 0 {
		return Artifact{}, fmt.Errorf("parse artifact: missing abi")
	}
	a := Artifact{
		Address: strings.TrimSpace(raw.Address),
		ABI:     raw.ABI,
	}
	if len(raw.ChainID) > 0 && string(raw.ChainID) != "null" {
		var s string
		if err := json.Unmarshal(raw.ChainID, &s); err != nil {
			var n json.Number
			if err := json.Unmarshal(raw.ChainID, &n); err != nil {
				return Artifact{}, fmt.Errorf("parse artifact: chainId: %w", err)
			}
			s = n.String()
		}
		a.ChainID = strings.TrimSpace(s)
	}
	return a, nil
}

// ParsedABI decodes the ABI.
func (a Artifact) ParsedABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}
