package pricing

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/clearroute/paygate/types"
)

var validate = validator.New()

// pricingFile is the on-disk shape of the pricing source: a mapping of
// operation identifier to a list of payment options.
//
//	operations:
//	  get_weather_forecast:
//	    - chain_id: 8453
//	      token_address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
//	      token_amount: 1000
type pricingFile struct {
	Operations map[string][]types.PaymentOption `yaml:"operations"`
}

// Load reads and validates the pricing source at path.
//
// A missing file is not an error: it yields an empty table, and whether an
// empty table is acceptable is decided by the mode validation at startup,
// not here. Any structural or field-level problem is a fatal ConfigError.
// Loading has no side effects beyond reading the file, so the same source
// always yields the same table for the life of the process.
func Load(path string) (*Table, error) {
	if path == "" {
		return EmptyTable(), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return EmptyTable(), nil
		}
		return nil, types.NewConfigError("stat pricing file", err)
	}
	if info.IsDir() {
		return nil, types.NewConfigError(fmt.Sprintf("pricing path %s is a directory", path), nil)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, types.NewConfigError("read pricing file", err)
	}

	return Parse(data)
}

// Parse builds a Table from raw YAML pricing data. Split from Load so tests
// and embedded configuration can bypass the filesystem.
func Parse(data []byte) (*Table, error) {
	var file pricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, types.NewConfigError("parse pricing file", err)
	}

	for operation, options := range file.Operations {
		if operation == "" {
			return nil, types.NewConfigError("empty operation identifier", nil)
		}
		if len(options) == 0 {
			return nil, types.NewConfigError(
				fmt.Sprintf("operation %q declares no payment options", operation), nil)
		}
		for i, option := range options {
			if err := validateOption(option); err != nil {
				return nil, types.NewConfigError(
					fmt.Sprintf("operation %q option %d", operation, i), err)
			}
		}
	}

	return NewTable(file.Operations), nil
}

// validateOption applies struct-tag validation plus the checks the tags
// cannot express: a resolvable chain id and a well-formed token address.
func validateOption(option types.PaymentOption) error {
	if err := validate.Struct(option); err != nil {
		return err
	}
	if _, ok := types.NetworkForChainID(option.ChainID); !ok {
		return fmt.Errorf("unknown chain id %d (supported: %v)",
			option.ChainID, types.SupportedChainIDs())
	}
	if !common.IsHexAddress(option.TokenAddress) {
		return fmt.Errorf("invalid token address %q", option.TokenAddress)
	}
	return nil
}

// ValidatePayee checks the operator's receiving address. Called once from
// the gate constructor; a bad payee is a startup bug, not a request error.
func ValidatePayee(address string) error {
	if !common.IsHexAddress(address) {
		return types.NewConfigError(fmt.Sprintf("invalid payee address %q", address), nil)
	}
	return nil
}
