// Package normalize defines the canonical result of every operation and the
// per-backend functions that produce it. Backends disagree on field names,
// address encodings and which numbers they quote; nothing outside this
// package needs to know.
package normalize

import (
	"github.com/web3-frozen/tron-source-router/internal/source"
)

type BalanceResult struct {
	Address    string    `json:"address"`
	BalanceSun int64     `json:"balanceSun"`
	Balance    float64   `json:"balance"`
	Source     source.ID `json:"source"`
}

type AccountResources struct {
	Address          string    `json:"address"`
	FreeNetUsed      int64     `json:"freeNetUsed"`
	FreeNetLimit     int64     `json:"freeNetLimit"`
	NetUsed          int64     `json:"netUsed"`
	NetLimit         int64     `json:"netLimit"`
	EnergyUsed       int64     `json:"energyUsed"`
	EnergyLimit      int64     `json:"energyLimit"`
	BandwidthLeft    int64     `json:"bandwidthRemaining"`
	EnergyLeft       int64     `json:"energyRemaining"`
	TotalEnergyLimit int64     `json:"totalEnergyLimit,omitempty"`
	TotalNetLimit    int64     `json:"totalNetLimit,omitempty"`
	Source           source.ID `json:"source"`
}

type TokenBalance struct {
	Address  string    `json:"address"`
	Contract string    `json:"contractAddress"`
	Raw      string    `json:"raw"`
	Decimals int       `json:"decimals"`
	Balance  float64   `json:"balance"`
	Source   source.ID `json:"source"`
}

type BlockResult struct {
	Number     int64     `json:"number"`
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parentHash,omitempty"`
	Timestamp  int64     `json:"timestamp"`
	Witness    string    `json:"witness,omitempty"`
	TxCount    int       `json:"txCount"`
	Source     source.ID `json:"source"`
}

type TransactionResult struct {
	TxID             string    `json:"txId"`
	BlockNumber      int64     `json:"blockNumber"`
	BlockTimestamp   int64     `json:"blockTimestamp"`
	Result           string    `json:"result"`
	FeeSun           int64     `json:"feeSun"`
	Fee              float64   `json:"fee"`
	EnergyUsage      int64     `json:"energyUsage"`
	EnergyUsageTotal int64     `json:"energyUsageTotal"`
	EnergyFeeSun     int64     `json:"energyFeeSun"`
	NetUsage         int64     `json:"netUsage"`
	NetFeeSun        int64     `json:"netFeeSun"`
	ContractAddress  string    `json:"contractAddress,omitempty"`
	ContractResult   []string  `json:"contractResult,omitempty"`
	Message          string    `json:"message,omitempty"`
	Source           source.ID `json:"source"`
}

type ChainParameters struct {
	Parameters map[string]int64 `json:"parameters"`
	Source     source.ID        `json:"source"`
}

// EnergyFee returns getEnergyFee in SUN, or 0 when absent.
func (p *ChainParameters) EnergyFee() int64 {
	if p == nil {
		return 0
	}
	return p.Parameters["getEnergyFee"]
}

type ContractCallResult struct {
	Contract       string    `json:"contractAddress"`
	Function       string    `json:"functionName"`
	ConstantResult []string  `json:"constantResult"`
	EnergyUsed     int64     `json:"energyUsed"`
	Source         source.ID `json:"source"`
}

type BroadcastResult struct {
	TxID    string    `json:"txId"`
	Result  bool      `json:"result"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
	Source  source.ID `json:"source"`
}

// Estimation methods.
const (
	MethodLiveQuery         = "live-query"
	MethodHeuristicFallback = "heuristic-fallback"
)

// Estimation accuracy labels.
const (
	AccuracyHigh   = "high"
	AccuracyMedium = "medium"
	AccuracyLow    = "low"
)

type EnergyEstimate struct {
	Energy          int64     `json:"energy"`
	Method          string    `json:"method"`
	Accuracy        string    `json:"accuracy"`
	RecipientStatus string    `json:"recipientStatus,omitempty"`
	Rule            string    `json:"rule,omitempty"`
	EnergyPriceSun  int64     `json:"energyPriceSun"`
	CostTRX         float64   `json:"costTrx"`
	Note            string    `json:"note,omitempty"`
	Source          source.ID `json:"source"`
}

// AccuracyOf is the label attached to an estimate produced by id.
func AccuracyOf(id source.ID) string {
	switch id {
	case source.Primary:
		return AccuracyHigh
	case source.Gateway, source.Explorer:
		return AccuracyMedium
	}
	return AccuracyLow
}

// MethodOf is the method label attached to an estimate produced by id.
func MethodOf(id source.ID) string {
	if id == source.Heuristic {
		return MethodHeuristicFallback
	}
	return MethodLiveQuery
}
