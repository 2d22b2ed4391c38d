package gateway

import "encoding/json"

// Wire shapes of the TronGrid wallet API with visible=true. Only the fields
// the normalizer reads are declared.

type Account struct {
	Address    string `json:"address"`
	Balance    int64  `json:"balance"`
	CreateTime int64  `json:"create_time"`
}

type AccountResource struct {
	FreeNetUsed       int64 `json:"freeNetUsed"`
	FreeNetLimit      int64 `json:"freeNetLimit"`
	NetUsed           int64 `json:"NetUsed"`
	NetLimit          int64 `json:"NetLimit"`
	EnergyUsed        int64 `json:"EnergyUsed"`
	EnergyLimit       int64 `json:"EnergyLimit"`
	TotalNetLimit     int64 `json:"TotalNetLimit"`
	TotalNetWeight    int64 `json:"TotalNetWeight"`
	TotalEnergyLimit  int64 `json:"TotalEnergyLimit"`
	TotalEnergyWeight int64 `json:"TotalEnergyWeight"`
}

type BlockRawData struct {
	Number         int64  `json:"number"`
	TxTrieRoot     string `json:"txTrieRoot"`
	WitnessAddress string `json:"witness_address"`
	ParentHash     string `json:"parentHash"`
	Timestamp      int64  `json:"timestamp"`
}

type BlockHeader struct {
	RawData BlockRawData `json:"raw_data"`
}

type Block struct {
	BlockID      string          `json:"blockID"`
	BlockHeader  BlockHeader     `json:"block_header"`
	Transactions []BlockTxSketch `json:"transactions"`
}

type BlockTxSketch struct {
	TxID string `json:"txID"`
}

type Receipt struct {
	EnergyUsage      int64  `json:"energy_usage"`
	EnergyFee        int64  `json:"energy_fee"`
	EnergyUsageTotal int64  `json:"energy_usage_total"`
	NetUsage         int64  `json:"net_usage"`
	NetFee           int64  `json:"net_fee"`
	Result           string `json:"result"`
}

type TransactionInfo struct {
	ID              string   `json:"id"`
	Fee             int64    `json:"fee"`
	BlockNumber     int64    `json:"blockNumber"`
	BlockTimeStamp  int64    `json:"blockTimeStamp"`
	ContractResult  []string `json:"contractResult"`
	ContractAddress string   `json:"contract_address"`
	Receipt         Receipt  `json:"receipt"`
	Result          string   `json:"result"`
	ResMessage      string   `json:"resMessage"`
}

type ChainParameter struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

type ChainParameters struct {
	ChainParameter []ChainParameter `json:"chainParameter"`
}

// Return is the result object embedded in trigger responses.
type Return struct {
	Result  bool   `json:"result"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TriggerResult struct {
	Result         Return       `json:"result"`
	EnergyUsed     int64        `json:"energy_used"`
	ConstantResult []string     `json:"constant_result"`
	Transaction    *Transaction `json:"transaction"`
}

// Transaction is an unsigned transaction as built by the gateway. Only
// raw_data_hex is signed; RawData is kept for logging.
type Transaction struct {
	Visible    bool            `json:"visible"`
	TxID       string          `json:"txID"`
	RawData    json.RawMessage `json:"raw_data"`
	RawDataHex string          `json:"raw_data_hex"`
}

type BroadcastResponse struct {
	Result  bool   `json:"result"`
	TxID    string `json:"txid"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConstantCall is a read-only or to-be-signed contract invocation.
type ConstantCall struct {
	Owner     string
	Contract  string
	Selector  string
	Parameter string
}
