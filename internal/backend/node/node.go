// Package node wraps the gotron-sdk gRPC client as the primary backend.
package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/fbsobreira/gotron-sdk/pkg/client"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/api"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/web3-frozen/tron-source-router/internal/source"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

// DefaultAddr is the public TronGrid gRPC endpoint.
const DefaultAddr = "grpc.trongrid.io:50051"

// Client is the subset of *client.GrpcClient the adapter uses.
type Client interface {
	GetNowBlock() (*api.BlockExtention, error)
	GetBlockByNum(num int64) (*api.BlockExtention, error)
	GetAccount(addr string) (*core.Account, error)
	GetAccountResource(addr string) (*api.AccountResourceMessage, error)
	GetTransactionInfoByID(id string) (*core.TransactionInfo, error)
	GetChainParameters() (*core.ChainParameters, error)
	TRC20ContractBalance(addr, contractAddress string) (*big.Int, error)
	TriggerConstantContract(from, contractAddress, method, jsonString string) (*api.TransactionExtention, error)
	TriggerContract(from, contractAddress, method, jsonString string, feeLimit, tAmount int64, tTokenID string, tTokenAmount int64) (*api.TransactionExtention, error)
	EstimateEnergy(from, contractAddress, method, jsonString string, tAmount int64, tTokenID string, tTokenAmount int64) (*api.EstimateEnergyMessage, error)
	Transfer(from, toAddress string, amount int64) (*api.TransactionExtention, error)
	Broadcast(tx *core.Transaction) (*api.Return, error)
}

// Dial connects to a node's gRPC wallet service.
func Dial(addr, apiKey string, timeout time.Duration) (*client.GrpcClient, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	c := client.NewGrpcClientWithTimeout(addr, timeout)
	if apiKey != "" {
		if err := c.SetAPIKey(apiKey); err != nil {
			return nil, fmt.Errorf("set node api key: %w", err)
		}
	}
	if err := c.Start(grpc.WithTransportCredentials(insecure.NewCredentials())); err != nil {
		return nil, fmt.Errorf("dial node %s: %w", addr, err)
	}
	return c, nil
}

// Adapter exposes the node client with context support and router-friendly
// errors. Results are the raw protobuf messages.
type Adapter struct {
	c Client
}

func NewAdapter(c Client) *Adapter {
	return &Adapter{c: c}
}

// Receipt is the outcome of a signed write.
type Receipt struct {
	TxID   string
	Return *api.Return
}

func (a *Adapter) NowBlock(ctx context.Context) (*api.BlockExtention, error) {
	return call(ctx, a.c.GetNowBlock)
}

func (a *Adapter) BlockByNum(ctx context.Context, num int64) (*api.BlockExtention, error) {
	return call(ctx, func() (*api.BlockExtention, error) { return a.c.GetBlockByNum(num) })
}

func (a *Adapter) Account(ctx context.Context, addr string) (*core.Account, error) {
	return call(ctx, func() (*core.Account, error) { return a.c.GetAccount(addr) })
}

func (a *Adapter) AccountResource(ctx context.Context, addr string) (*api.AccountResourceMessage, error) {
	return call(ctx, func() (*api.AccountResourceMessage, error) { return a.c.GetAccountResource(addr) })
}

func (a *Adapter) TransactionInfo(ctx context.Context, txID string) (*core.TransactionInfo, error) {
	return call(ctx, func() (*core.TransactionInfo, error) { return a.c.GetTransactionInfoByID(txID) })
}

func (a *Adapter) ChainParameters(ctx context.Context) (*core.ChainParameters, error) {
	return call(ctx, a.c.GetChainParameters)
}

func (a *Adapter) TokenBalance(ctx context.Context, addr, contract string) (*big.Int, error) {
	return call(ctx, func() (*big.Int, error) { return a.c.TRC20ContractBalance(addr, contract) })
}

// ConstantCall runs a contract method without creating a transaction.
func (a *Adapter) ConstantCall(ctx context.Context, owner, contract, fn string, params []tron.Param) (*api.TransactionExtention, error) {
	method, args, err := encodeCall(fn, params)
	if err != nil {
		return nil, err
	}
	ext, err := call(ctx, func() (*api.TransactionExtention, error) {
		return a.c.TriggerConstantContract(owner, contract, method, args)
	})
	if err != nil {
		return nil, err
	}
	if err := checkReturn(ext.GetResult()); err != nil {
		return nil, err
	}
	return ext, nil
}

// EstimateEnergy asks the node for the energy a call would consume.
func (a *Adapter) EstimateEnergy(ctx context.Context, owner, contract, fn string, params []tron.Param, callValue int64) (int64, error) {
	method, args, err := encodeCall(fn, params)
	if err != nil {
		return 0, err
	}
	msg, err := call(ctx, func() (*api.EstimateEnergyMessage, error) {
		return a.c.EstimateEnergy(owner, contract, method, args, callValue, "", 0)
	})
	if err != nil {
		return 0, err
	}
	if err := checkReturn(msg.GetResult()); err != nil {
		return 0, err
	}
	return msg.GetEnergyRequired(), nil
}

// BuildTransfer asks the node for an unsigned TRX transfer from from to to.
func (a *Adapter) BuildTransfer(ctx context.Context, from, to string, amountSun int64) (*core.Transaction, error) {
	ext, err := call(ctx, func() (*api.TransactionExtention, error) { return a.c.Transfer(from, to, amountSun) })
	if err != nil {
		return nil, err
	}
	return unsigned(ext)
}

// BuildTrigger asks the node for an unsigned state-changing contract call.
func (a *Adapter) BuildTrigger(ctx context.Context, from, contract, fn string, params []tron.Param, feeLimit, callValue int64) (*core.Transaction, error) {
	method, args, err := encodeCall(fn, params)
	if err != nil {
		return nil, err
	}
	ext, err := call(ctx, func() (*api.TransactionExtention, error) {
		return a.c.TriggerContract(from, contract, method, args, feeLimit, callValue, "", 0)
	})
	if err != nil {
		return nil, err
	}
	return unsigned(ext)
}

// BroadcastHex submits a signed transaction serialized as protobuf hex.
func (a *Adapter) BroadcastHex(ctx context.Context, txHex string) (*Receipt, error) {
	tx, err := DecodeTransaction(txHex)
	if err != nil {
		return nil, err
	}
	return a.broadcast(ctx, tx)
}

// DecodeTransaction parses a protobuf-serialized transaction given as hex.
func DecodeTransaction(txHex string) (*core.Transaction, error) {
	txHex = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(txHex), "0x"), "0X")
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, source.NewErrInvalidParameter("transaction", "not hex: "+err.Error())
	}
	tx := &core.Transaction{}
	if err := proto.Unmarshal(raw, tx); err != nil {
		return nil, source.NewErrInvalidParameter("transaction", "not a serialized transaction: "+err.Error())
	}
	if tx.GetRawData() == nil {
		return nil, source.NewErrInvalidParameter("transaction", "missing raw data")
	}
	return tx, nil
}

func unsigned(ext *api.TransactionExtention) (*core.Transaction, error) {
	if err := checkReturn(ext.GetResult()); err != nil {
		return nil, err
	}
	tx := ext.GetTransaction()
	if tx == nil || tx.GetRawData() == nil {
		return nil, source.NewErrBackendRejected(source.Primary, 0, "node returned no transaction")
	}
	return tx, nil
}

// TransactionFromRaw wraps serialized raw_data, as the HTTP wallet API
// returns it in raw_data_hex, into an unsigned transaction.
func TransactionFromRaw(raw []byte) (*core.Transaction, error) {
	rd := &core.TransactionRaw{}
	if err := proto.Unmarshal(raw, rd); err != nil {
		return nil, fmt.Errorf("decode raw data: %w", err)
	}
	return &core.Transaction{RawData: rd}, nil
}

// EncodeTransaction serializes tx as protobuf hex, the form BroadcastHex and
// the wallet API's broadcasthex accept.
func EncodeTransaction(tx *core.Transaction) (string, error) {
	raw, err := proto.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("marshal transaction: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func (a *Adapter) broadcast(ctx context.Context, tx *core.Transaction) (*Receipt, error) {
	id, err := TransactionID(tx)
	if err != nil {
		return nil, err
	}
	ret, err := call(ctx, func() (*api.Return, error) { return a.c.Broadcast(tx) })
	if err != nil {
		return nil, err
	}
	if err := checkReturn(ret); err != nil {
		return nil, err
	}
	return &Receipt{TxID: id, Return: ret}, nil
}

// TransactionID is the hex sha256 of the serialized raw data.
func TransactionID(tx *core.Transaction) (string, error) {
	raw, err := proto.Marshal(tx.GetRawData())
	if err != nil {
		return "", fmt.Errorf("marshal raw data: %w", err)
	}
	return hex.EncodeToString(tron.TxIDFromRawData(raw)), nil
}

// SignTransaction appends signer's signature over tx's ID.
func SignTransaction(tx *core.Transaction, signer *tron.Signer) error {
	if signer == nil {
		return tron.ErrNoSigner
	}
	raw, err := proto.Marshal(tx.GetRawData())
	if err != nil {
		return fmt.Errorf("marshal raw data: %w", err)
	}
	sig, err := signer.Sign(tron.TxIDFromRawData(raw))
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signature = append(tx.Signature, sig)
	return nil
}

func encodeCall(fn string, params []tron.Param) (string, string, error) {
	method, err := tron.FunctionSignature(fn, params)
	if err != nil {
		return "", "", err
	}
	args, err := tron.NodeParamsJSON(params)
	if err != nil {
		return "", "", err
	}
	return method, args, nil
}

func checkReturn(r *api.Return) error {
	if r == nil {
		return nil
	}
	if r.GetCode() == api.Return_SUCCESS && (r.GetResult() || len(r.GetMessage()) == 0) {
		return nil
	}
	return source.NewErrBackendRejected(source.Primary, 0, fmt.Sprintf("%s: %s", r.GetCode(), string(r.GetMessage())))
}

// call runs a blocking client method and gives up when ctx ends. The client
// enforces its own timeout, so an abandoned call finishes on its own.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, source.NewErrBackendUnreachable(source.Primary, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			var zero T
			return zero, classify(r.err)
		}
		return r.v, nil
	}
}

// classify maps transport failures to BackendUnreachable and everything the
// node answered to BackendRejected.
func classify(err error) error {
	if errors.Is(err, tron.ErrNoSigner) || source.CodeOf(err) != "" {
		return err
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.Unknown:
			return source.NewErrBackendUnreachable(source.Primary, err)
		}
		return source.NewErrBackendRejected(source.Primary, 0, st.Message())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return source.NewErrBackendUnreachable(source.Primary, err)
	}
	return source.NewErrBackendRejected(source.Primary, 0, err.Error())
}
