package tools

import (
	"context"
	"math/big"

	"github.com/web3-frozen/tron-source-router/internal/estimate"
	"github.com/web3-frozen/tron-source-router/internal/normalize"
	"github.com/web3-frozen/tron-source-router/internal/router"
)

// EstimateArgs describes the call whose energy cost is wanted.
type EstimateArgs struct {
	CallArgs
	Recipient string
	CallValue int64
}

const heuristicNote = "live estimation failed on every backend; figure comes from the heuristic table"

// EstimateEnergy returns a live estimate when any backend can produce a
// positive figure and a heuristic one otherwise. Only argument validation
// can make it fail.
func (s *Service) EstimateEnergy(ctx context.Context, a EstimateArgs) (normalize.EnergyEstimate, error) {
	p, err := s.prepare(a.CallArgs)
	if err != nil {
		return normalize.EnergyEstimate{}, err
	}
	recipient := ""
	if a.Recipient != "" {
		if recipient, err = parseAddr(a.Recipient); err != nil {
			return normalize.EnergyEstimate{}, err
		}
	}
	if a.CallValue < 0 {
		a.CallValue = 0
	}

	var c router.Candidates[int64]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (int64, error) {
			return s.b.Node.EstimateEnergy(ctx, p.owner, p.contract, p.selector, p.params, a.CallValue)
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (int64, error) {
			res, err := s.b.Gateway.TriggerConstantContract(ctx, p.gatewayCall())
			if err != nil {
				return 0, err
			}
			return res.EnergyUsed, nil
		}
	}

	var heur estimate.Result
	est := router.ExecuteEstimate(ctx, s.router, c, func() int64 {
		heur = s.heuristics.Estimate(estimate.Input{
			Function:  p.selector,
			Params:    p.params,
			Contract:  p.contract,
			Recipient: recipient,
			Status:    s.recipientStatus(ctx, p, recipient),
		})
		return heur.Energy
	})

	price := s.energyPrice()
	out := normalize.EnergyEstimate{
		Energy:         est.Energy,
		Method:         normalize.MethodOf(est.Source),
		Accuracy:       normalize.AccuracyOf(est.Source),
		EnergyPriceSun: price,
		CostTRX:        estimate.CostTRX(est.Energy, price),
		Source:         est.Source,
	}
	if est.Live() {
		if s.heuristics.BranchesOnRecipient(p.selector, p.contract) {
			out.RecipientStatus = string(s.heuristics.RecipientStatus(recipientOf(recipient, p)))
		}
		return out, nil
	}
	out.Rule = heur.Rule
	out.Note = heuristicNote
	if s.heuristics.BranchesOnRecipient(p.selector, p.contract) {
		out.RecipientStatus = string(heur.RecipientStatus)
	}
	return out, nil
}

func (s *Service) energyPrice() int64 {
	fallback := s.heuristics.EnergyPriceSun()
	if s.prices == nil {
		return fallback
	}
	return s.prices.EnergyPrice(fallback)
}

// recipientStatus classifies a token-transfer destination. The table's
// known-address lists win; otherwise the live token balance decides, and any
// failure leaves the recipient unknown.
func (s *Service) recipientStatus(ctx context.Context, p preparedCall, recipient string) estimate.RecipientStatus {
	if !s.heuristics.BranchesOnRecipient(p.selector, p.contract) {
		return estimate.RecipientUnknown
	}
	recipient = recipientOf(recipient, p)
	if recipient == "" {
		return estimate.RecipientUnknown
	}
	if st := s.heuristics.RecipientStatus(recipient); st != estimate.RecipientUnknown {
		return st
	}
	raw, err := s.tokenBalanceRaw(ctx, recipient, p.contract)
	if err != nil {
		s.logger.Debug("recipient balance lookup failed", "recipient", recipient, "error", err)
		return estimate.RecipientUnknown
	}
	if raw.Cmp(big.NewInt(0)) > 0 {
		return estimate.RecipientHasBalance
	}
	return estimate.RecipientEmpty
}

func recipientOf(recipient string, p preparedCall) string {
	if recipient != "" {
		return recipient
	}
	addr, err := parseAddr(estimate.RecipientParam(p.selector, p.params))
	if err != nil {
		return ""
	}
	return addr
}
