package config

import "fmt"

const (
	ethereumMainnetChainID = 1
	polygonMainnetChainID  = 137
	arbitrumMainnetChainID = 42161
	baseMainnetChainID     = 8453

	ethereumSepoliaChainID = 11155111
	polygonAmoyChainID     = 80002
	arbitrumSepoliaChainID = 421614
	baseSepoliaChainID     = 84532

	ethereumName = "ETHEREUM"
	polygonName  = "POLYGON"
	arbitrumName = "ARBITRUM"
	baseName     = "BASE"

	mainnetDefaultChains = "42161,8453,137,1"
	testnetDefaultChains = "421614,84532,80002,11155111"
)

var routerAddressByChain = map[uint64]string{
	ethereumMainnetChainID: "0xA7c59f010700930003b33aB25a7a0679C860f29c",
	polygonMainnetChainID:  "0x8438Ad1C834623CfF278AB6829a248E37C2D7E3f",
	arbitrumMainnetChainID: "0xBcd4042DE499D14e55001CcbB24a551F3b954096",
	baseMainnetChainID:     "0x71bE63f3384f5fb98995898A86B02Fb2426c5788",

	ethereumSepoliaChainID: "0xFABB0ac9d68B0B445fB7357272Ff202C5651694a",
	polygonAmoyChainID:     "0x1CBd3b2770909D4e10f157cABC84C7264073C9Ec",
	arbitrumSepoliaChainID: "0xdF3e18d64BC6A983f673Ab319CCaE4f1a57C7097",
	baseSepoliaChainID:     "0xcd3B766CCDd6AE721141F452C550Ca635964ce71",
}

var settlementAddressByChain = map[uint64]string{
	ethereumMainnetChainID: "0x2546BcD3c84621e976D8185a91A922aE77ECEc30",
	polygonMainnetChainID:  "0xbDA5747bFD65F08deb54cb465eB87D40e51B197E",
	arbitrumMainnetChainID: "0xdD2FD4581271e230360230F9337D5c0430Bf44C0",
	baseMainnetChainID:     "0x8626f6940E2eb28930eFb4CeF49B2d1F2C9C1199",

	ethereumSepoliaChainID: "0x09635F643e140090A9A8Dcd712eD6285858ceBef",
	polygonAmoyChainID:     "0xc5a5C42992dECbae36851359345FE25997F5C42d",
	arbitrumSepoliaChainID: "0x67d269191c92Caf3cD7723F116c85e6E9bf55933",
	baseSepoliaChainID:     "0xE6E340D132b5f46d1e472DebcD681B2aBc16e57E",
}

// chainNameFromID returns the chain name based on the chain ID
func chainNameFromID(chainID uint64) (string, error) {
	switch chainID {
	case arbitrumMainnetChainID, arbitrumSepoliaChainID:
		return arbitrumName, nil
	case baseMainnetChainID, baseSepoliaChainID:
		return baseName, nil
	case polygonMainnetChainID, polygonAmoyChainID:
		return polygonName, nil
	case ethereumMainnetChainID, ethereumSepoliaChainID:
		return ethereumName, nil
	}
	return "", fmt.Errorf("unsupported chain ID: %d", chainID)
}

// ChainName returns the human name for a chain ID, or its decimal form when
// the chain is not in the registry.
func ChainName(chainID uint64) string {
	name, err := chainNameFromID(chainID)
	if err != nil {
		return fmt.Sprintf("%d", chainID)
	}
	return name
}
