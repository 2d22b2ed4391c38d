package explorer

// TronScan response shapes. Numbers the API sometimes quotes are declared as
// strings.

type Bandwidth struct {
	FreeNetUsed  int64 `json:"freeNetUsed"`
	FreeNetLimit int64 `json:"freeNetLimit"`
	NetUsed      int64 `json:"netUsed"`
	NetLimit     int64 `json:"netLimit"`
	EnergyUsed   int64 `json:"energyUsed"`
	EnergyLimit  int64 `json:"energyLimit"`
}

type Account struct {
	Address   string    `json:"address"`
	Balance   int64     `json:"balance"`
	Bandwidth Bandwidth `json:"bandwidth"`
}

type TokenEntry struct {
	TokenID      string `json:"tokenId"`
	TokenAbbr    string `json:"tokenAbbr"`
	TokenDecimal int    `json:"tokenDecimal"`
	Balance      string `json:"balance"`
}

type TokenList struct {
	Total int          `json:"total"`
	Data  []TokenEntry `json:"data"`
}

type Block struct {
	Number         int64  `json:"number"`
	Hash           string `json:"hash"`
	ParentHash     string `json:"parentHash"`
	Timestamp      int64  `json:"timestamp"`
	WitnessAddress string `json:"witnessAddress"`
	NrOfTrx        int    `json:"nrOfTrx"`
}

type BlockList struct {
	Data []Block `json:"data"`
}

type Cost struct {
	Fee              int64 `json:"fee"`
	EnergyFee        int64 `json:"energy_fee"`
	EnergyUsage      int64 `json:"energy_usage"`
	EnergyUsageTotal int64 `json:"energy_usage_total"`
	NetUsage         int64 `json:"net_usage"`
	NetFee           int64 `json:"net_fee"`
}

type TransactionInfo struct {
	Hash            string `json:"hash"`
	Block           int64  `json:"block"`
	Timestamp       int64  `json:"timestamp"`
	ContractRet     string `json:"contractRet"`
	Confirmed       bool   `json:"confirmed"`
	ContractAddress string `json:"contract_address"`
	Cost            Cost   `json:"cost"`
}

type ChainParameter struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

type ChainParameters struct {
	TronParameters []ChainParameter `json:"tronParameters"`
}
