// Package tools implements every tool-callable operation on top of the
// source router and exposes them through a name-keyed registry.
package tools

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/web3-frozen/tron-source-router/internal/backend/explorer"
	"github.com/web3-frozen/tron-source-router/internal/backend/gateway"
	"github.com/web3-frozen/tron-source-router/internal/backend/node"
	"github.com/web3-frozen/tron-source-router/internal/dedup"
	"github.com/web3-frozen/tron-source-router/internal/estimate"
	"github.com/web3-frozen/tron-source-router/internal/normalize"
	"github.com/web3-frozen/tron-source-router/internal/router"
	"github.com/web3-frozen/tron-source-router/internal/source"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

// DefaultFeeLimitSun caps contract-trigger fees when the caller gives none.
const DefaultFeeLimitSun = 100 * tron.SunPerTRX

// PriceSource supplies the live energy price, falling back when unknown.
type PriceSource interface {
	EnergyPrice(fallback int64) int64
}

// PriceFunc adapts a function to PriceSource.
type PriceFunc func(fallback int64) int64

func (f PriceFunc) EnergyPrice(fallback int64) int64 { return f(fallback) }

// Backends are the adapters a Service may use. Any of them may be nil.
type Backends struct {
	Node     *node.Adapter
	Gateway  *gateway.Client
	Explorer *explorer.Client
}

type Service struct {
	router     *router.Router
	b          Backends
	heuristics *estimate.Heuristics
	signer     *tron.Signer
	prices     PriceSource
	guard      *dedup.Guard
	feeLimit   int64
	logger     *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

func WithSigner(s *tron.Signer) Option { return func(svc *Service) { svc.signer = s } }
func WithPrices(p PriceSource) Option { return func(svc *Service) { svc.prices = p } }
func WithGuard(g *dedup.Guard) Option { return func(svc *Service) { svc.guard = g } }
func WithHeuristics(h *estimate.Heuristics) Option { return func(svc *Service) { svc.heuristics = h } }
func WithLogger(l *slog.Logger) Option { return func(svc *Service) { svc.logger = l } }

// WithDefaultFeeLimit replaces DefaultFeeLimitSun.
func WithDefaultFeeLimit(sun int64) Option {
	return func(svc *Service) {
		if sun > 0 {
			svc.feeLimit = sun
		}
	}
}

func NewService(r *router.Router, b Backends, opts ...Option) *Service {
	s := &Service{
		router:   r,
		b:        b,
		feeLimit: DefaultFeeLimitSun,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.heuristics == nil {
		s.heuristics = estimate.Default()
	}
	return s
}

// Signer returns the configured signing key, if any.
func (s *Service) Signer() *tron.Signer { return s.signer }

// Router returns the underlying router.
func (s *Service) Router() *router.Router { return s.router }

// parseAddr validates v and returns its base58 form.
func parseAddr(v string) (string, error) {
	addr, err := tron.ParseAddress(v)
	if err != nil {
		return "", err
	}
	return tron.Base58(addr), nil
}

//
// Reads
//

func (s *Service) GetBalance(ctx context.Context, address string) (normalize.BalanceResult, error) {
	addr, err := parseAddr(address)
	if err != nil {
		return normalize.BalanceResult{}, err
	}

	var c router.Candidates[normalize.BalanceResult]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (normalize.BalanceResult, error) {
			acc, err := s.b.Node.Account(ctx, addr)
			if err != nil {
				return normalize.BalanceResult{}, err
			}
			return normalize.BalanceFromNode(addr, acc), nil
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (normalize.BalanceResult, error) {
			acc, err := s.b.Gateway.GetAccount(ctx, addr)
			if err != nil {
				return normalize.BalanceResult{}, err
			}
			return normalize.BalanceFromGateway(acc), nil
		}
	}
	if s.b.Explorer != nil {
		c.Explorer = func(ctx context.Context) (normalize.BalanceResult, error) {
			acc, err := s.b.Explorer.GetAccount(ctx, addr)
			if err != nil {
				return normalize.BalanceResult{}, err
			}
			return normalize.BalanceFromExplorer(acc), nil
		}
	}
	res, _, err := router.Execute(ctx, s.router, source.OpGetBalance, c)
	return res, err
}

func (s *Service) GetAccountResources(ctx context.Context, address string) (normalize.AccountResources, error) {
	addr, err := parseAddr(address)
	if err != nil {
		return normalize.AccountResources{}, err
	}

	var c router.Candidates[normalize.AccountResources]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (normalize.AccountResources, error) {
			m, err := s.b.Node.AccountResource(ctx, addr)
			if err != nil {
				return normalize.AccountResources{}, err
			}
			return normalize.ResourcesFromNode(addr, m), nil
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (normalize.AccountResources, error) {
			m, err := s.b.Gateway.GetAccountResource(ctx, addr)
			if err != nil {
				return normalize.AccountResources{}, err
			}
			return normalize.ResourcesFromGateway(addr, m), nil
		}
	}
	if s.b.Explorer != nil {
		c.Explorer = func(ctx context.Context) (normalize.AccountResources, error) {
			acc, err := s.b.Explorer.GetAccount(ctx, addr)
			if err != nil {
				return normalize.AccountResources{}, err
			}
			return normalize.ResourcesFromExplorer(acc), nil
		}
	}
	res, _, err := router.Execute(ctx, s.router, source.OpGetAccountResources, c)
	return res, err
}

// GetTokenBalance reads a TRC-20 balance. decimals < 0 uses the backend's
// figure when it reports one and normalize.DefaultTokenDecimals otherwise.
func (s *Service) GetTokenBalance(ctx context.Context, address, contract string, decimals int) (normalize.TokenBalance, error) {
	addr, err := parseAddr(address)
	if err != nil {
		return normalize.TokenBalance{}, err
	}
	token, err := parseAddr(contract)
	if err != nil {
		return normalize.TokenBalance{}, err
	}

	var c router.Candidates[normalize.TokenBalance]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (normalize.TokenBalance, error) {
			raw, err := s.b.Node.TokenBalance(ctx, addr, token)
			if err != nil {
				return normalize.TokenBalance{}, err
			}
			return normalize.NewTokenBalance(addr, token, raw, decimals, source.Primary), nil
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (normalize.TokenBalance, error) {
			param, err := tron.EncodeParams([]tron.Param{{Type: "address", Value: addr}})
			if err != nil {
				return normalize.TokenBalance{}, err
			}
			res, err := s.b.Gateway.TriggerConstantContract(ctx, gateway.ConstantCall{
				Owner:     addr,
				Contract:  token,
				Selector:  "balanceOf(address)",
				Parameter: param,
			})
			if err != nil {
				return normalize.TokenBalance{}, err
			}
			return normalize.TokenBalanceFromGateway(addr, token, res, decimals)
		}
	}
	if s.b.Explorer != nil {
		c.Explorer = func(ctx context.Context) (normalize.TokenBalance, error) {
			e, err := s.b.Explorer.GetTokenBalance(ctx, addr, token)
			if err != nil {
				return normalize.TokenBalance{}, err
			}
			if decimals >= 0 {
				e.TokenDecimal = decimals
			}
			return normalize.TokenBalanceFromExplorer(addr, token, e)
		}
	}
	res, _, err := router.Execute(ctx, s.router, source.OpGetTokenBalance, c)
	return res, err
}

// GetBlock returns block num, or the latest block when num is nil.
func (s *Service) GetBlock(ctx context.Context, num *int64) (normalize.BlockResult, error) {
	if num != nil && *num < 0 {
		return normalize.BlockResult{}, source.NewErrInvalidParameter("number", "must not be negative")
	}

	var c router.Candidates[normalize.BlockResult]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (normalize.BlockResult, error) {
			if num == nil {
				b, err := s.b.Node.NowBlock(ctx)
				if err != nil {
					return normalize.BlockResult{}, err
				}
				return normalize.BlockFromNode(b), nil
			}
			b, err := s.b.Node.BlockByNum(ctx, *num)
			if err != nil {
				return normalize.BlockResult{}, err
			}
			return normalize.BlockFromNode(b), nil
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (normalize.BlockResult, error) {
			var (
				b   *gateway.Block
				err error
			)
			if num == nil {
				b, err = s.b.Gateway.GetNowBlock(ctx)
			} else {
				b, err = s.b.Gateway.GetBlockByNum(ctx, *num)
			}
			if err != nil {
				return normalize.BlockResult{}, err
			}
			return normalize.BlockFromGateway(b), nil
		}
	}
	if s.b.Explorer != nil {
		c.Explorer = func(ctx context.Context) (normalize.BlockResult, error) {
			b, err := s.b.Explorer.GetBlock(ctx, num)
			if err != nil {
				return normalize.BlockResult{}, err
			}
			return normalize.BlockFromExplorer(b), nil
		}
	}
	res, _, err := router.Execute(ctx, s.router, source.OpGetBlock, c)
	return res, err
}

func (s *Service) GetTransaction(ctx context.Context, txID string) (normalize.TransactionResult, error) {
	if err := tron.ValidateTxID(txID); err != nil {
		return normalize.TransactionResult{}, err
	}
	txID = trimHex(txID)

	var c router.Candidates[normalize.TransactionResult]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (normalize.TransactionResult, error) {
			info, err := s.b.Node.TransactionInfo(ctx, txID)
			if err != nil {
				return normalize.TransactionResult{}, err
			}
			return normalize.TransactionFromNode(info), nil
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (normalize.TransactionResult, error) {
			info, err := s.b.Gateway.GetTransactionInfo(ctx, txID)
			if err != nil {
				return normalize.TransactionResult{}, err
			}
			return normalize.TransactionFromGateway(info), nil
		}
	}
	if s.b.Explorer != nil {
		c.Explorer = func(ctx context.Context) (normalize.TransactionResult, error) {
			info, err := s.b.Explorer.GetTransactionInfo(ctx, txID)
			if err != nil {
				return normalize.TransactionResult{}, err
			}
			return normalize.TransactionFromExplorer(info), nil
		}
	}
	res, _, err := router.Execute(ctx, s.router, source.OpGetTransaction, c)
	return res, err
}

func (s *Service) GetChainParameters(ctx context.Context) (normalize.ChainParameters, error) {
	var c router.Candidates[normalize.ChainParameters]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (normalize.ChainParameters, error) {
			p, err := s.b.Node.ChainParameters(ctx)
			if err != nil {
				return normalize.ChainParameters{}, err
			}
			return normalize.ChainParametersFromNode(p), nil
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (normalize.ChainParameters, error) {
			p, err := s.b.Gateway.GetChainParameters(ctx)
			if err != nil {
				return normalize.ChainParameters{}, err
			}
			return normalize.ChainParametersFromGateway(p), nil
		}
	}
	if s.b.Explorer != nil {
		c.Explorer = func(ctx context.Context) (normalize.ChainParameters, error) {
			p, err := s.b.Explorer.GetChainParameters(ctx)
			if err != nil {
				return normalize.ChainParameters{}, err
			}
			return normalize.ChainParametersFromExplorer(p), nil
		}
	}
	res, _, err := router.Execute(ctx, s.router, source.OpGetChainParameters, c)
	return res, err
}

// LatestBlock and ChainParameters let the chain watcher poll through the
// router.
func (s *Service) LatestBlock(ctx context.Context) (normalize.BlockResult, error) {
	return s.GetBlock(ctx, nil)
}

func (s *Service) ChainParameters(ctx context.Context) (normalize.ChainParameters, error) {
	return s.GetChainParameters(ctx)
}

// CallArgs describes a contract invocation.
type CallArgs struct {
	Contract string
	Function string
	Params   []tron.Param
	Owner    string
}

type preparedCall struct {
	contract string
	owner    string
	selector string
	params   []tron.Param
	encoded  string
}

func (s *Service) prepare(a CallArgs) (preparedCall, error) {
	contract, err := parseAddr(a.Contract)
	if err != nil {
		return preparedCall{}, err
	}
	owner := tron.ZeroAddress
	if a.Owner != "" {
		if owner, err = parseAddr(a.Owner); err != nil {
			return preparedCall{}, err
		}
	} else if s.signer != nil {
		owner = tron.Base58(s.signer.Address())
	}
	selector, err := tron.FunctionSignature(a.Function, a.Params)
	if err != nil {
		return preparedCall{}, err
	}
	encoded, err := tron.EncodeParams(a.Params)
	if err != nil {
		return preparedCall{}, err
	}
	return preparedCall{
		contract: contract,
		owner:    owner,
		selector: selector,
		params:   a.Params,
		encoded:  encoded,
	}, nil
}

// ContractCall runs a read-only contract method. The explorer cannot serve it.
func (s *Service) ContractCall(ctx context.Context, a CallArgs) (normalize.ContractCallResult, error) {
	p, err := s.prepare(a)
	if err != nil {
		return normalize.ContractCallResult{}, err
	}

	var c router.Candidates[normalize.ContractCallResult]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (normalize.ContractCallResult, error) {
			ext, err := s.b.Node.ConstantCall(ctx, p.owner, p.contract, p.selector, p.params)
			if err != nil {
				return normalize.ContractCallResult{}, err
			}
			return normalize.ContractCallFromNode(p.contract, p.selector, ext), nil
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (normalize.ContractCallResult, error) {
			res, err := s.b.Gateway.TriggerConstantContract(ctx, p.gatewayCall())
			if err != nil {
				return normalize.ContractCallResult{}, err
			}
			return normalize.ContractCallFromGateway(p.contract, p.selector, res), nil
		}
	}
	res, _, err := router.Execute(ctx, s.router, source.OpContractCall, c)
	return res, err
}

func (p preparedCall) gatewayCall() gateway.ConstantCall {
	return gateway.ConstantCall{
		Owner:     p.owner,
		Contract:  p.contract,
		Selector:  p.selector,
		Parameter: p.encoded,
	}
}

func trimHex(s string) string {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}

// tokenBalanceRaw is the best-effort live balance used to classify a
// transfer recipient.
func (s *Service) tokenBalanceRaw(ctx context.Context, addr, contract string) (*big.Int, error) {
	tb, err := s.GetTokenBalance(ctx, addr, contract, -1)
	if err != nil {
		return nil, err
	}
	raw, ok := new(big.Int).SetString(tb.Raw, 10)
	if !ok {
		return nil, source.NewErrInvalidParameter("raw", tb.Raw)
	}
	return raw, nil
}
