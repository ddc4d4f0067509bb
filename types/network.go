package types

import "fmt"

// Network names resolvable from pricing chain ids.
const (
	NetworkEthereum      = "ethereum"
	NetworkSepolia       = "sepolia"
	NetworkPolygon       = "polygon"
	NetworkPolygonAmoy   = "polygon-amoy"
	NetworkBase          = "base"
	NetworkBaseSepolia   = "base-sepolia"
	NetworkAvalanche     = "avalanche"
	NetworkAvalancheFuji = "avalanche-fuji"
)

// networkByChainID is the fixed chainID→network mapping. Requirements derive
// their network field exclusively from this table, so the resolution is
// deterministic for the life of the process.
var networkByChainID = map[int64]string{
	1:        NetworkEthereum,
	11155111: NetworkSepolia,
	137:      NetworkPolygon,
	80002:    NetworkPolygonAmoy,
	8453:     NetworkBase,
	84532:    NetworkBaseSepolia,
	43114:    NetworkAvalanche,
	43113:    NetworkAvalancheFuji,
}

// NetworkForChainID resolves a chain id to its network name.
func NetworkForChainID(chainID int64) (string, bool) {
	network, ok := networkByChainID[chainID]
	return network, ok
}

// SupportedChainIDs returns the chain ids the gate can resolve, in no
// particular order. Useful for config error messages.
func SupportedChainIDs() []int64 {
	ids := make([]int64, 0, len(networkByChainID))
	for id := range networkByChainID {
		ids = append(ids, id)
	}
	return ids
}

// Requirements derives the wire-level PaymentRequirements for an option.
// It fails only for chain ids absent from the fixed mapping, which the
// pricing loader rejects at startup; request-time callers operating on a
// loaded table never see the error.
func (o PaymentOption) Requirements(payee string) (PaymentRequirements, error) {
	network, ok := NetworkForChainID(o.ChainID)
	if !ok {
		return PaymentRequirements{}, fmt.Errorf("unknown chain id %d", o.ChainID)
	}
	return PaymentRequirements{
		Network:      network,
		ChainID:      o.ChainID,
		TokenAddress: o.TokenAddress,
		TokenAmount:  o.TokenAmount,
		PayeeAddress: payee,
	}, nil
}
