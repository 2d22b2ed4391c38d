package tools

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/bytedance/sonic"

	"github.com/web3-frozen/tron-source-router/internal/normalize"
	"github.com/web3-frozen/tron-source-router/internal/source"
	"github.com/web3-frozen/tron-source-router/internal/store"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

// Journal records tool invocations. *store.Store implements it.
type Journal interface {
	RecordCall(ctx context.Context, c store.Call) error
}

// Arg documents one tool argument.
type Arg struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Tool is one invocable operation.
type Tool struct {
	Name        source.Operation `json:"name"`
	Description string           `json:"description"`
	Args        []Arg            `json:"args"`
	Write       bool             `json:"write"`

	invoke func(ctx context.Context, s *Service, raw []byte) (any, error)
}

// Registry dispatches tool calls by name.
type Registry struct {
	svc     *Service
	tools   map[source.Operation]Tool
	journal Journal
	logger  *slog.Logger
}

// NewRegistry registers every operation against svc. journal may be nil.
func NewRegistry(svc *Service, journal Journal) *Registry {
	r := &Registry{
		svc:     svc,
		tools:   make(map[source.Operation]Tool),
		journal: journal,
		logger:  svc.logger,
	}
	for _, t := range builtin() {
		t.Write = t.Name.IsWrite()
		r.tools[t.Name] = t
	}
	return r
}

// List returns the registered tools ordered by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup reports whether name is a registered tool.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[source.Operation(name)]
	return t, ok
}

// Invoke decodes raw as the tool's arguments and runs it. The call is
// journaled whatever its outcome.
func (r *Registry) Invoke(ctx context.Context, name string, raw []byte) (any, error) {
	t, ok := r.Lookup(name)
	if !ok {
		return nil, source.NewErrInvalidParameter("tool", "unknown tool "+name)
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	start := time.Now()
	res, err := t.invoke(ctx, r.svc, raw)
	elapsed := time.Since(start)

	call := store.Call{
		Operation:  string(t.Name),
		Source:     string(sourceOf(res)),
		Success:    err == nil,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		call.ErrorCode = source.CodeOf(err)
		call.ErrorMessage = err.Error()
		r.logger.Warn("tool call failed", "tool", name, "code", call.ErrorCode, "error", err)
	} else {
		r.logger.Debug("tool call", "tool", name, "source", call.Source, "duration", elapsed)
	}
	if r.journal != nil {
		// Journal writes must outlive a cancelled request.
		if jerr := r.journal.RecordCall(context.WithoutCancel(ctx), call); jerr != nil {
			r.logger.Error("journal write failed", "tool", name, "error", jerr)
		}
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func decode[T any](raw []byte) (T, error) {
	var v T
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, source.NewErrInvalidParameter("arguments", err.Error())
	}
	return v, nil
}

func sourceOf(v any) source.ID {
	switch r := v.(type) {
	case normalize.BalanceResult:
		return r.Source
	case normalize.AccountResources:
		return r.Source
	case normalize.TokenBalance:
		return r.Source
	case normalize.BlockResult:
		return r.Source
	case normalize.TransactionResult:
		return r.Source
	case normalize.ChainParameters:
		return r.Source
	case normalize.ContractCallResult:
		return r.Source
	case normalize.EnergyEstimate:
		return r.Source
	case normalize.BroadcastResult:
		return r.Source
	}
	return ""
}

type addressArgs struct {
	Address string `json:"address"`
}

type tokenArgs struct {
	Address  string `json:"address"`
	Contract string `json:"contractAddress"`
	Decimals *int   `json:"decimals"`
}

type blockArgs struct {
	Number *int64 `json:"number"`
}

type txArgs struct {
	TxID string `json:"txId"`
}

type callArgs struct {
	Contract string       `json:"contractAddress"`
	Function string       `json:"functionName"`
	Params   []tron.Param `json:"parameters"`
	Owner    string       `json:"ownerAddress"`
}

func (a callArgs) call() CallArgs {
	return CallArgs{Contract: a.Contract, Function: a.Function, Params: a.Params, Owner: a.Owner}
}

type estimateArgs struct {
	callArgs
	Recipient string `json:"recipientAddress"`
	CallValue int64  `json:"callValue"`
}

type sendArgs struct {
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type triggerArgs struct {
	callArgs
	FeeLimit  int64 `json:"feeLimit"`
	CallValue int64 `json:"callValue"`
}

type broadcastArgs struct {
	Transaction string `json:"transaction"`
}

var (
	argAddress  = Arg{Name: "address", Type: "string", Required: true}
	argContract = Arg{Name: "contractAddress", Type: "string", Required: true}
	argFunction = Arg{Name: "functionName", Type: "string", Required: true}
	argParams   = Arg{Name: "parameters", Type: "array"}
	argOwner    = Arg{Name: "ownerAddress", Type: "string"}
)

func builtin() []Tool {
	return []Tool{
		{
			Name:        source.OpGetBalance,
			Description: "TRX balance of an account",
			Args:        []Arg{argAddress},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[addressArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.GetBalance(ctx, a.Address)
			},
		},
		{
			Name:        source.OpGetAccountResources,
			Description: "Bandwidth and energy usage and limits of an account",
			Args:        []Arg{argAddress},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[addressArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.GetAccountResources(ctx, a.Address)
			},
		},
		{
			Name:        source.OpGetTokenBalance,
			Description: "TRC-20 token balance of an account",
			Args:        []Arg{argAddress, argContract, {Name: "decimals", Type: "integer"}},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[tokenArgs](raw)
				if err != nil {
					return nil, err
				}
				decimals := -1
				if a.Decimals != nil {
					if *a.Decimals < 0 || *a.Decimals > 77 {
						return nil, source.NewErrInvalidParameter("decimals", "must be between 0 and 77")
					}
					decimals = *a.Decimals
				}
				return s.GetTokenBalance(ctx, a.Address, a.Contract, decimals)
			},
		},
		{
			Name:        source.OpGetBlock,
			Description: "A block by number, or the latest block",
			Args:        []Arg{{Name: "number", Type: "integer"}},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[blockArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.GetBlock(ctx, a.Number)
			},
		},
		{
			Name:        source.OpGetTransaction,
			Description: "Execution receipt of a transaction",
			Args:        []Arg{{Name: "txId", Type: "string", Required: true}},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[txArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.GetTransaction(ctx, a.TxID)
			},
		},
		{
			Name:        source.OpGetChainParameters,
			Description: "Current chain parameters",
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				return s.GetChainParameters(ctx)
			},
		},
		{
			Name:        source.OpContractCall,
			Description: "Read-only contract call",
			Args:        []Arg{argContract, argFunction, argParams, argOwner},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[callArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.ContractCall(ctx, a.call())
			},
		},
		{
			Name:        source.OpEstimateEnergy,
			Description: "Energy a contract call would consume, with a heuristic fallback",
			Args: []Arg{argContract, argFunction, argParams, argOwner,
				{Name: "recipientAddress", Type: "string"}, {Name: "callValue", Type: "integer"}},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[estimateArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.EstimateEnergy(ctx, EstimateArgs{CallArgs: a.call(), Recipient: a.Recipient, CallValue: a.CallValue})
			},
		},
		{
			Name:        source.OpSendTrx,
			Description: "Transfer TRX from the configured signer",
			Args:        []Arg{{Name: "to", Type: "string", Required: true}, {Name: "amount", Type: "number", Required: true}},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[sendArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.SendTrx(ctx, a.To, a.Amount)
			},
		},
		{
			Name:        source.OpTriggerContract,
			Description: "State-changing contract call signed by the configured signer",
			Args: []Arg{argContract, argFunction, argParams,
				{Name: "feeLimit", Type: "integer"}, {Name: "callValue", Type: "integer"}},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[triggerArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.TriggerContract(ctx, TriggerArgs{CallArgs: a.call(), FeeLimit: a.FeeLimit, CallValue: a.CallValue})
			},
		},
		{
			Name:        source.OpBroadcastTransaction,
			Description: "Broadcast a signed transaction given as protobuf hex",
			Args:        []Arg{{Name: "transaction", Type: "string", Required: true}},
			invoke: func(ctx context.Context, s *Service, raw []byte) (any, error) {
				a, err := decode[broadcastArgs](raw)
				if err != nil {
					return nil, err
				}
				return s.BroadcastTransaction(ctx, a.Transaction)
			},
		},
	}
}
