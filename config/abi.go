package config

// WatcherEventsABI covers every event the chain watcher decodes: the router
// events (IntentValidated, SwapExecuted, BridgeInitiated, IntentFailed) and
// the settlement verifier events (SettlementConfirmed, SettlementFailed).
//
// IntentValidated is self-describing: it carries the refId assigned at intake
// alongside the numeric intentId assigned by on-chain validation. Every later
// event carries only the numeric intentId.
const WatcherEventsABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "intentId", "type": "uint256"},
			{"indexed": true, "internalType": "bytes32", "name": "refId", "type": "bytes32"},
			{"indexed": false, "internalType": "address", "name": "token", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "destinationChain", "type": "uint256"}
		],
		"name": "IntentValidated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "intentId", "type": "uint256"},
			{"indexed": false, "internalType": "address", "name": "tokenIn", "type": "address"},
			{"indexed": false, "internalType": "address", "name": "tokenOut", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"}
		],
		"name": "SwapExecuted",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "intentId", "type": "uint256"},
			{"indexed": true, "internalType": "bytes32", "name": "messageId", "type": "bytes32"},
			{"indexed": false, "internalType": "address", "name": "token", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
			{"indexed": false, "internalType": "uint256", "name": "destinationChain", "type": "uint256"}
		],
		"name": "BridgeInitiated",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "intentId", "type": "uint256"},
			{"indexed": false, "internalType": "string", "name": "reason", "type": "string"}
		],
		"name": "IntentFailed",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "intentId", "type": "uint256"},
			{"indexed": true, "internalType": "bytes32", "name": "messageId", "type": "bytes32"},
			{"indexed": false, "internalType": "uint256", "name": "timestamp", "type": "uint256"}
		],
		"name": "SettlementConfirmed",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "uint256", "name": "intentId", "type": "uint256"},
			{"indexed": true, "internalType": "bytes32", "name": "messageId", "type": "bytes32"},
			{"indexed": false, "internalType": "string", "name": "reason", "type": "string"}
		],
		"name": "SettlementFailed",
		"type": "event"
	}
]`
