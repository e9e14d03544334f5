package integration

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-opera-raffle/raffle/contracts/raffleabi"
)

// Files written into the frontend constants directory.
const (
	FrontendAddressesFile = "contractAddresses.json"
	FrontendABIFile       = "abi.json"
)

// ContractAddresses maps a decimal chain id to every raffle deployed there.
type ContractAddresses map[string][]string

// Add appends addr to the deployments of chainID unless it is already known.
// It reports whether anything changed.
func (c ContractAddresses) Add(chainID uint64, addr common.Address) bool {
	key := strconv.FormatUint(chainID, 10)
	for _, known := range c[key] {
		if common.HexToAddress(known) == addr {
			return false
		}
	}
	c[key] = append(c[key], addr.Hex())
	return true
}

// ReadContractAddresses loads an address file. A missing file is empty.
func ReadContractAddresses(path string) (ContractAddresses, error) {
	addrs := make(ContractAddresses)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return addrs, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &addrs); err != nil {
		return nil, err
	}
	return addrs, nil
}

// UpdateFrontend records the raffle deployed on chainID in the address file of
// dir and rewrites the ABI file next to it.
func UpdateFrontend(dir string, chainID uint64, raffle common.Address) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, FrontendAddressesFile)
	addrs, err := ReadContractAddresses(path)
	if err != nil {
		return err
	}
	addrs.Add(chainID, raffle)
	data, err := json.Marshal(addrs)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	abiJSON, err := compactABI()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, FrontendABIFile), abiJSON, 0o644)
}

// compactABI returns the raffle ABI with its entries ordered by name.
func compactABI() ([]byte, error) {
	var entries []map[string]interface{}
	if err := json.Unmarshal([]byte(raffleabi.ContractABI), &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ni, _ := entries[i]["name"].(string)
		nj, _ := entries[j]["name"].(string)
		return ni < nj
	})
	return json.Marshal(entries)
}
