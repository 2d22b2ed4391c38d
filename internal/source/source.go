// Package source names the backends an operation can be answered by and the
// errors they surface.
package source

// ID identifies one backend family.
type ID string

const (
	// Primary is the directly-connected node client.
	Primary ID = "primary"
	// Gateway is the public HTTP gateway (TronGrid wallet API).
	Gateway ID = "gateway"
	// Explorer is the block-explorer REST API (TronScan). Read-only.
	Explorer ID = "explorer"
	// Heuristic tags estimates produced without any backend.
	Heuristic ID = "heuristic"
)

// Order is the fixed attempt order used by the router.
var Order = []ID{Primary, Gateway, Explorer}

func (id ID) String() string { return string(id) }

// Operation is the name of one tool-callable capability.
type Operation string

const (
	OpGetBalance           Operation = "getBalance"
	OpGetAccountResources  Operation = "getAccountResources"
	OpGetTokenBalance      Operation = "getTokenBalance"
	OpGetBlock             Operation = "getBlock"
	OpGetTransaction       Operation = "getTransaction"
	OpGetChainParameters   Operation = "getChainParameters"
	OpContractCall         Operation = "contractCall"
	OpEstimateEnergy       Operation = "estimateEnergy"
	OpSendTrx              Operation = "sendTrx"
	OpTriggerContract      Operation = "triggerContract"
	OpBroadcastTransaction Operation = "broadcastTransaction"
)

func (op Operation) String() string { return string(op) }

// IsWrite reports whether the operation changes chain state. Write operations
// must never be offered to the explorer.
func (op Operation) IsWrite() bool {
	switch op {
	case OpSendTrx, OpTriggerContract, OpBroadcastTransaction:
		return true
	}
	return false
}
