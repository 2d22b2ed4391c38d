package normalize

import (
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/api"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"

	"github.com/web3-frozen/tron-source-router/internal/backend/explorer"
	"github.com/web3-frozen/tron-source-router/internal/backend/gateway"
	"github.com/web3-frozen/tron-source-router/internal/backend/node"
	"github.com/web3-frozen/tron-source-router/internal/source"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

// DefaultTokenDecimals is assumed when a backend does not report decimals.
const DefaultTokenDecimals = 6

//
// Balance
//

func NewBalance(addr string, sun int64, src source.ID) BalanceResult {
	return BalanceResult{
		Address:    tron.NormalizeBase58(addr),
		BalanceSun: sun,
		Balance:    tron.SunToTRX(sun),
		Source:     src,
	}
}

func BalanceFromNode(addr string, acc *core.Account) BalanceResult {
	return NewBalance(addr, acc.GetBalance(), source.Primary)
}

func BalanceFromGateway(acc *gateway.Account) BalanceResult {
	return NewBalance(acc.Address, acc.Balance, source.Gateway)
}

func BalanceFromExplorer(acc *explorer.Account) BalanceResult {
	return NewBalance(acc.Address, acc.Balance, source.Explorer)
}

//
// Account resources
//

func finishResources(r AccountResources) AccountResources {
	r.BandwidthLeft = max(r.FreeNetLimit-r.FreeNetUsed, 0) + max(r.NetLimit-r.NetUsed, 0)
	r.EnergyLeft = max(r.EnergyLimit-r.EnergyUsed, 0)
	return r
}

func ResourcesFromNode(addr string, m *api.AccountResourceMessage) AccountResources {
	return finishResources(AccountResources{
		Address:          tron.NormalizeBase58(addr),
		FreeNetUsed:      m.GetFreeNetUsed(),
		FreeNetLimit:     m.GetFreeNetLimit(),
		NetUsed:          m.GetNetUsed(),
		NetLimit:         m.GetNetLimit(),
		EnergyUsed:       m.GetEnergyUsed(),
		EnergyLimit:      m.GetEnergyLimit(),
		TotalEnergyLimit: m.GetTotalEnergyLimit(),
		TotalNetLimit:    m.GetTotalNetLimit(),
		Source:           source.Primary,
	})
}

func ResourcesFromGateway(addr string, m *gateway.AccountResource) AccountResources {
	return finishResources(AccountResources{
		Address:          tron.NormalizeBase58(addr),
		FreeNetUsed:      m.FreeNetUsed,
		FreeNetLimit:     m.FreeNetLimit,
		NetUsed:          m.NetUsed,
		NetLimit:         m.NetLimit,
		EnergyUsed:       m.EnergyUsed,
		EnergyLimit:      m.EnergyLimit,
		TotalEnergyLimit: m.TotalEnergyLimit,
		TotalNetLimit:    m.TotalNetLimit,
		Source:           source.Gateway,
	})
}

func ResourcesFromExplorer(acc *explorer.Account) AccountResources {
	b := acc.Bandwidth
	return finishResources(AccountResources{
		Address:      tron.NormalizeBase58(acc.Address),
		FreeNetUsed:  b.FreeNetUsed,
		FreeNetLimit: b.FreeNetLimit,
		NetUsed:      b.NetUsed,
		NetLimit:     b.NetLimit,
		EnergyUsed:   b.EnergyUsed,
		EnergyLimit:  b.EnergyLimit,
		Source:       source.Explorer,
	})
}

//
// Token balance
//

func NewTokenBalance(addr, contract string, raw *big.Int, decimals int, src source.ID) TokenBalance {
	if raw == nil {
		raw = new(big.Int)
	}
	if decimals < 0 {
		decimals = DefaultTokenDecimals
	}
	return TokenBalance{
		Address:  tron.NormalizeBase58(addr),
		Contract: tron.NormalizeBase58(contract),
		Raw:      raw.String(),
		Decimals: decimals,
		Balance:  tron.ScaleAmount(raw, decimals),
		Source:   src,
	}
}

// TokenBalanceFromGateway decodes a balanceOf constant call.
func TokenBalanceFromGateway(addr, contract string, res *gateway.TriggerResult, decimals int) (TokenBalance, error) {
	if len(res.ConstantResult) == 0 {
		return TokenBalance{}, source.NewErrBackendRejected(source.Gateway, 0, "balanceOf returned no result")
	}
	raw, err := tron.DecodeUint256Hex(res.ConstantResult[0])
	if err != nil {
		return TokenBalance{}, source.NewErrBackendRejected(source.Gateway, 0, "balanceOf result: "+err.Error())
	}
	return NewTokenBalance(addr, contract, raw, decimals, source.Gateway), nil
}

func TokenBalanceFromExplorer(addr, contract string, e *explorer.TokenEntry) (TokenBalance, error) {
	raw, ok := new(big.Int).SetString(strings.TrimSpace(e.Balance), 10)
	if !ok {
		return TokenBalance{}, source.NewErrBackendRejected(source.Explorer, 0, "token balance is not an integer: "+e.Balance)
	}
	return NewTokenBalance(addr, contract, raw, e.TokenDecimal, source.Explorer), nil
}

//
// Blocks
//

func BlockFromNode(b *api.BlockExtention) BlockResult {
	raw := b.GetBlockHeader().GetRawData()
	return BlockResult{
		Number:     raw.GetNumber(),
		Hash:       hex.EncodeToString(b.GetBlockid()),
		ParentHash: hex.EncodeToString(raw.GetParentHash()),
		Timestamp:  raw.GetTimestamp(),
		Witness:    addressBytes(raw.GetWitnessAddress()),
		TxCount:    len(b.GetTransactions()),
		Source:     source.Primary,
	}
}

func BlockFromGateway(b *gateway.Block) BlockResult {
	raw := b.BlockHeader.RawData
	return BlockResult{
		Number:     raw.Number,
		Hash:       b.BlockID,
		ParentHash: raw.ParentHash,
		Timestamp:  raw.Timestamp,
		Witness:    tron.NormalizeBase58(raw.WitnessAddress),
		TxCount:    len(b.Transactions),
		Source:     source.Gateway,
	}
}

func BlockFromExplorer(b *explorer.Block) BlockResult {
	return BlockResult{
		Number:     b.Number,
		Hash:       b.Hash,
		ParentHash: b.ParentHash,
		Timestamp:  b.Timestamp,
		Witness:    tron.NormalizeBase58(b.WitnessAddress),
		TxCount:    b.NrOfTrx,
		Source:     source.Explorer,
	}
}

//
// Transactions
//

func TransactionFromNode(info *core.TransactionInfo) TransactionResult {
	rc := info.GetReceipt()
	result := "SUCCESS"
	if info.GetResult() == core.TransactionInfo_FAILED {
		result = "FAILED"
	}
	if r := rc.GetResult(); r != core.Transaction_Result_DEFAULT {
		result = r.String()
	}
	cr := make([]string, 0, len(info.GetContractResult()))
	for _, b := range info.GetContractResult() {
		cr = append(cr, hex.EncodeToString(b))
	}
	return finishTransaction(TransactionResult{
		TxID:             hex.EncodeToString(info.GetId()),
		BlockNumber:      info.GetBlockNumber(),
		BlockTimestamp:   info.GetBlockTimeStamp(),
		Result:           result,
		FeeSun:           info.GetFee(),
		EnergyUsage:      rc.GetEnergyUsage(),
		EnergyUsageTotal: rc.GetEnergyUsageTotal(),
		EnergyFeeSun:     rc.GetEnergyFee(),
		NetUsage:         rc.GetNetUsage(),
		NetFeeSun:        rc.GetNetFee(),
		ContractAddress:  addressBytes(info.GetContractAddress()),
		ContractResult:   cr,
		Message:          string(info.GetResMessage()),
		Source:           source.Primary,
	})
}

func TransactionFromGateway(info *gateway.TransactionInfo) TransactionResult {
	result := "SUCCESS"
	if info.Result == "FAILED" {
		result = "FAILED"
	}
	if info.Receipt.Result != "" && info.Receipt.Result != "DEFAULT" {
		result = info.Receipt.Result
	}
	return finishTransaction(TransactionResult{
		TxID:             info.ID,
		BlockNumber:      info.BlockNumber,
		BlockTimestamp:   info.BlockTimeStamp,
		Result:           result,
		FeeSun:           info.Fee,
		EnergyUsage:      info.Receipt.EnergyUsage,
		EnergyUsageTotal: info.Receipt.EnergyUsageTotal,
		EnergyFeeSun:     info.Receipt.EnergyFee,
		NetUsage:         info.Receipt.NetUsage,
		NetFeeSun:        info.Receipt.NetFee,
		ContractAddress:  tron.NormalizeBase58(info.ContractAddress),
		ContractResult:   nonEmpty(info.ContractResult),
		Message:          gateway.DecodeMessage(info.ResMessage),
		Source:           source.Gateway,
	})
}

func TransactionFromExplorer(info *explorer.TransactionInfo) TransactionResult {
	result := info.ContractRet
	if result == "" {
		result = "SUCCESS"
	}
	return finishTransaction(TransactionResult{
		TxID:             info.Hash,
		BlockNumber:      info.Block,
		BlockTimestamp:   info.Timestamp,
		Result:           result,
		FeeSun:           info.Cost.Fee,
		EnergyUsage:      info.Cost.EnergyUsage,
		EnergyUsageTotal: info.Cost.EnergyUsageTotal,
		EnergyFeeSun:     info.Cost.EnergyFee,
		NetUsage:         info.Cost.NetUsage,
		NetFeeSun:        info.Cost.NetFee,
		ContractAddress:  tron.NormalizeBase58(info.ContractAddress),
		Source:           source.Explorer,
	})
}

func finishTransaction(t TransactionResult) TransactionResult {
	t.Fee = tron.SunToTRX(t.FeeSun)
	if len(t.ContractResult) == 0 {
		t.ContractResult = nil
	}
	return t
}

//
// Chain parameters
//

func ChainParametersFromNode(p *core.ChainParameters) ChainParameters {
	out := make(map[string]int64, len(p.GetChainParameter()))
	for _, kv := range p.GetChainParameter() {
		out[kv.GetKey()] = kv.GetValue()
	}
	return ChainParameters{Parameters: out, Source: source.Primary}
}

func ChainParametersFromGateway(p *gateway.ChainParameters) ChainParameters {
	out := make(map[string]int64, len(p.ChainParameter))
	for _, kv := range p.ChainParameter {
		out[kv.Key] = kv.Value
	}
	return ChainParameters{Parameters: out, Source: source.Gateway}
}

func ChainParametersFromExplorer(p *explorer.ChainParameters) ChainParameters {
	out := make(map[string]int64, len(p.TronParameters))
	for _, kv := range p.TronParameters {
		out[kv.Key] = kv.Value
	}
	return ChainParameters{Parameters: out, Source: source.Explorer}
}

//
// Contract calls
//

func ContractCallFromNode(contract, fn string, ext *api.TransactionExtention) ContractCallResult {
	res := make([]string, 0, len(ext.GetConstantResult()))
	for _, b := range ext.GetConstantResult() {
		res = append(res, hex.EncodeToString(b))
	}
	return ContractCallResult{
		Contract:       tron.NormalizeBase58(contract),
		Function:       fn,
		ConstantResult: res,
		EnergyUsed:     ext.GetEnergyUsed(),
		Source:         source.Primary,
	}
}

func ContractCallFromGateway(contract, fn string, res *gateway.TriggerResult) ContractCallResult {
	out := res.ConstantResult
	if out == nil {
		out = []string{}
	}
	return ContractCallResult{
		Contract:       tron.NormalizeBase58(contract),
		Function:       fn,
		ConstantResult: out,
		EnergyUsed:     res.EnergyUsed,
		Source:         source.Gateway,
	}
}

//
// Broadcasts
//

func BroadcastFromNode(r *node.Receipt) BroadcastResult {
	out := BroadcastResult{TxID: r.TxID, Result: true, Source: source.Primary}
	if r.Return != nil {
		out.Code = r.Return.GetCode().String()
		out.Message = string(r.Return.GetMessage())
	}
	return out
}

func BroadcastFromGateway(r *gateway.BroadcastResponse) BroadcastResult {
	code := r.Code
	if code == "" {
		code = "SUCCESS"
	}
	return BroadcastResult{
		TxID:    r.TxID,
		Result:  r.Result,
		Code:    code,
		Message: gateway.DecodeMessage(r.Message),
		Source:  source.Gateway,
	}
}

func addressBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if len(b) == 21 && b[0] == 0x41 {
		return address.Address(b).String()
	}
	return hex.EncodeToString(b)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
