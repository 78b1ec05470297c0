package entities

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RPCRequest is the body accepted by the relay endpoint.
type RPCRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// RPCResponse mirrors the JSON-RPC 2.0 envelope returned to callers of the relay.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error reported by the upstream node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// RPCTransaction is the subset of eth_getTransactionByHash the feed consumes.
type RPCTransaction struct {
	Hash     string          `json:"hash"`
	From     string          `json:"from"`
	To       *string         `json:"to"`
	Value    *hexutil.Big    `json:"value"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Input    hexutil.Bytes   `json:"input"`
	Block    *hexutil.Uint64 `json:"blockNumber"`
}

// RPCReceipt is the subset of eth_getTransactionReceipt the feed consumes.
type RPCReceipt struct {
	TransactionHash   string          `json:"transactionHash"`
	GasUsed           *hexutil.Big    `json:"gasUsed"`
	EffectiveGasPrice *hexutil.Big    `json:"effectiveGasPrice"`
	Status            *hexutil.Uint64 `json:"status"`
}

// RPCBlock is eth_getBlockByNumber called with includeFullTransactions=false.
type RPCBlock struct {
	Number       *hexutil.Uint64 `json:"number"`
	Hash         string          `json:"hash"`
	Transactions []string        `json:"transactions"`
}
