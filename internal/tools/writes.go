package tools

import (
	"context"
	"math"
	"strings"

	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"

	"github.com/web3-frozen/tron-source-router/internal/backend/node"
	"github.com/web3-frozen/tron-source-router/internal/normalize"
	"github.com/web3-frozen/tron-source-router/internal/router"
	"github.com/web3-frozen/tron-source-router/internal/source"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

// dupTxCode is what both node APIs answer for a transaction already in the
// pending pool.
const dupTxCode = "DUP_TRANSACTION_ERROR"

// SendTrx transfers amountTRX from the configured signer to to.
func (s *Service) SendTrx(ctx context.Context, to string, amountTRX float64) (normalize.BroadcastResult, error) {
	if s.signer == nil {
		return normalize.BroadcastResult{}, source.NewErrSignerUnavailable(source.OpSendTrx)
	}
	dest, err := parseAddr(to)
	if err != nil {
		return normalize.BroadcastResult{}, err
	}
	if math.IsNaN(amountTRX) || amountTRX <= 0 {
		return normalize.BroadcastResult{}, source.NewErrInvalidParameter("amount", "must be positive")
	}
	if amountTRX > tron.MaxTRX {
		return normalize.BroadcastResult{}, source.NewErrInvalidParameter("amount", "exceeds the TRX supply")
	}
	sun := tron.TRXToSun(amountTRX)
	if sun <= 0 {
		return normalize.BroadcastResult{}, source.NewErrInvalidParameter("amount", "below 1 SUN")
	}
	from := tron.Base58(s.signer.Address())

	var c router.Candidates[*core.Transaction]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (*core.Transaction, error) {
			return s.b.Node.BuildTransfer(ctx, from, dest, sun)
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (*core.Transaction, error) {
			tx, err := s.b.Gateway.CreateTransaction(ctx, from, dest, sun)
			if err != nil {
				return nil, err
			}
			raw, err := tx.VerifiedRawData()
			if err != nil {
				return nil, err
			}
			return node.TransactionFromRaw(raw)
		}
	}
	return s.buildSignBroadcast(ctx, source.OpSendTrx, c)
}

// TriggerArgs describes a state-changing contract call.
type TriggerArgs struct {
	CallArgs
	FeeLimit  int64
	CallValue int64
}

// TriggerContract signs and broadcasts a contract invocation from the
// configured signer.
func (s *Service) TriggerContract(ctx context.Context, a TriggerArgs) (normalize.BroadcastResult, error) {
	if s.signer == nil {
		return normalize.BroadcastResult{}, source.NewErrSignerUnavailable(source.OpTriggerContract)
	}
	a.Owner = ""
	p, err := s.prepare(a.CallArgs)
	if err != nil {
		return normalize.BroadcastResult{}, err
	}
	if a.FeeLimit < 0 {
		return normalize.BroadcastResult{}, source.NewErrInvalidParameter("feeLimit", "must not be negative")
	}
	if a.CallValue < 0 {
		return normalize.BroadcastResult{}, source.NewErrInvalidParameter("callValue", "must not be negative")
	}
	feeLimit := a.FeeLimit
	if feeLimit == 0 {
		feeLimit = s.feeLimit
	}

	var c router.Candidates[*core.Transaction]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (*core.Transaction, error) {
			return s.b.Node.BuildTrigger(ctx, p.owner, p.contract, p.selector, p.params, feeLimit, a.CallValue)
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (*core.Transaction, error) {
			tx, err := s.b.Gateway.TriggerSmartContract(ctx, p.gatewayCall(), feeLimit, a.CallValue)
			if err != nil {
				return nil, err
			}
			raw, err := tx.VerifiedRawData()
			if err != nil {
				return nil, err
			}
			return node.TransactionFromRaw(raw)
		}
	}
	return s.buildSignBroadcast(ctx, source.OpTriggerContract, c)
}

// buildSignBroadcast obtains one unsigned transaction, signs it locally and
// hands the signed bytes to broadcast. A fallback resends the same
// transaction, never a rebuilt one.
func (s *Service) buildSignBroadcast(ctx context.Context, op source.Operation, build router.Candidates[*core.Transaction]) (normalize.BroadcastResult, error) {
	tx, _, err := router.Execute(ctx, s.router, op, build)
	if err != nil {
		return normalize.BroadcastResult{}, err
	}
	if err := node.SignTransaction(tx, s.signer); err != nil {
		return normalize.BroadcastResult{}, err
	}
	txID, err := node.TransactionID(tx)
	if err != nil {
		return normalize.BroadcastResult{}, err
	}
	txHex, err := node.EncodeTransaction(tx)
	if err != nil {
		return normalize.BroadcastResult{}, err
	}
	return s.broadcast(ctx, op, txID, txHex)
}

// BroadcastTransaction submits an already-signed transaction. When a guard
// is configured a transaction is sent at most once per TTL.
func (s *Service) BroadcastTransaction(ctx context.Context, txHex string) (normalize.BroadcastResult, error) {
	tx, err := node.DecodeTransaction(txHex)
	if err != nil {
		return normalize.BroadcastResult{}, err
	}
	if len(tx.GetSignature()) == 0 {
		return normalize.BroadcastResult{}, source.NewErrInvalidParameter("transaction", "not signed")
	}
	txID, err := node.TransactionID(tx)
	if err != nil {
		return normalize.BroadcastResult{}, source.NewErrInvalidParameter("transaction", err.Error())
	}
	return s.broadcast(ctx, source.OpBroadcastTransaction, txID, trimHex(txHex))
}

// broadcast sends one signed transaction to the primary, then the gateway.
// If the primary attempt failed after the node may already have accepted
// it, a duplicate rejection from the gateway counts as success.
func (s *Service) broadcast(ctx context.Context, op source.Operation, txID, txHex string) (normalize.BroadcastResult, error) {
	if s.guard.AlreadySent(ctx, txID) || !s.guard.Claim(ctx, txID) {
		return normalize.BroadcastResult{}, source.NewErrAlreadyBroadcast(txID)
	}

	primaryTried := false
	var c router.Candidates[normalize.BroadcastResult]
	if s.b.Node != nil {
		c.Primary = func(ctx context.Context) (normalize.BroadcastResult, error) {
			primaryTried = true
			rec, err := s.b.Node.BroadcastHex(ctx, txHex)
			if err != nil {
				return normalize.BroadcastResult{}, err
			}
			return normalize.BroadcastFromNode(rec), nil
		}
	}
	if s.b.Gateway != nil {
		c.Gateway = func(ctx context.Context) (normalize.BroadcastResult, error) {
			resp, err := s.b.Gateway.BroadcastHex(ctx, txHex)
			if err != nil {
				if primaryTried && alreadyPooled(err) {
					s.logger.Warn("transaction already pooled after primary attempt", "operation", op, "txid", txID)
					return normalize.BroadcastResult{TxID: txID, Result: true, Code: dupTxCode, Source: source.Gateway}, nil
				}
				return normalize.BroadcastResult{}, err
			}
			if resp.TxID == "" {
				resp.TxID = txID
			}
			return normalize.BroadcastFromGateway(resp), nil
		}
	}
	res, _, err := router.Execute(ctx, s.router, op, c)
	if err != nil {
		s.guard.Release(ctx, txID)
		return normalize.BroadcastResult{}, err
	}
	s.guard.Record(ctx, txID)
	return res, nil
}

func alreadyPooled(err error) bool {
	return source.HasCode(err, source.CodeBackendRejected) && strings.Contains(err.Error(), dupTxCode)
}
