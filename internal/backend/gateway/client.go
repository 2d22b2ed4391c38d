// Package gateway talks to the public TronGrid wallet HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"

	"github.com/web3-frozen/tron-source-router/internal/source"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

// DefaultURL is the mainnet TronGrid endpoint.
const DefaultURL = "https://api.trongrid.io"

const apiKeyHeader = "TRON-PRO-API-KEY"

// Client is a thin TronGrid wallet client. It never retries; the router
// decides what to try next.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *Client) GetAccount(ctx context.Context, addr string) (*Account, error) {
	var out Account
	err := c.post(ctx, "/wallet/getaccount", map[string]any{"address": addr, "visible": true}, &out)
	if err != nil {
		return nil, err
	}
	// Unactivated accounts come back as {}.
	if out.Address == "" {
		out.Address = addr
	}
	return &out, nil
}

func (c *Client) GetAccountResource(ctx context.Context, addr string) (*AccountResource, error) {
	var out AccountResource
	if err := c.post(ctx, "/wallet/getaccountresource", map[string]any{"address": addr, "visible": true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetNowBlock(ctx context.Context) (*Block, error) {
	var out Block
	if err := c.post(ctx, "/wallet/getnowblock", map[string]any{"visible": true}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBlockByNum(ctx context.Context, num int64) (*Block, error) {
	var out Block
	if err := c.post(ctx, "/wallet/getblockbynum", map[string]any{"num": num, "visible": true}, &out); err != nil {
		return nil, err
	}
	if out.BlockID == "" {
		return nil, source.NewErrBackendRejected(source.Gateway, 0, fmt.Sprintf("block %d not found", num))
	}
	return &out, nil
}

func (c *Client) GetTransactionInfo(ctx context.Context, txID string) (*TransactionInfo, error) {
	var out TransactionInfo
	if err := c.post(ctx, "/wallet/gettransactioninfobyid", map[string]any{"value": txID}, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, source.NewErrBackendRejected(source.Gateway, 0, "transaction "+txID+" not found")
	}
	return &out, nil
}

func (c *Client) GetChainParameters(ctx context.Context) (*ChainParameters, error) {
	var out ChainParameters
	if err := c.get(ctx, "/wallet/getchainparameters", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerConstantContract runs a contract call without creating a transaction.
// The response's energy_used doubles as an energy estimate.
func (c *Client) TriggerConstantContract(ctx context.Context, call ConstantCall) (*TriggerResult, error) {
	var out TriggerResult
	if err := c.post(ctx, "/wallet/triggerconstantcontract", callBody(call), &out); err != nil {
		return nil, err
	}
	if err := checkReturn(out.Result, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTransaction builds an unsigned TRX transfer.
func (c *Client) CreateTransaction(ctx context.Context, from, to string, amountSun int64) (*Transaction, error) {
	var out Transaction
	body := map[string]any{
		"owner_address": from,
		"to_address":    to,
		"amount":        amountSun,
		"visible":       true,
	}
	if err := c.post(ctx, "/wallet/createtransaction", body, &out); err != nil {
		return nil, err
	}
	if out.TxID == "" {
		return nil, source.NewErrBackendRejected(source.Gateway, 0, "createtransaction returned no transaction")
	}
	return &out, nil
}

// TriggerSmartContract builds an unsigned contract invocation.
func (c *Client) TriggerSmartContract(ctx context.Context, call ConstantCall, feeLimit, callValue int64) (*Transaction, error) {
	body := callBody(call)
	body["fee_limit"] = feeLimit
	body["call_value"] = callValue

	var out TriggerResult
	if err := c.post(ctx, "/wallet/triggersmartcontract", body, &out); err != nil {
		return nil, err
	}
	if err := checkReturn(out.Result, false); err != nil {
		return nil, err
	}
	if out.Transaction == nil || out.Transaction.TxID == "" {
		return nil, source.NewErrBackendRejected(source.Gateway, 0, "triggersmartcontract returned no transaction")
	}
	return out.Transaction, nil
}

// BroadcastHex submits a signed, protobuf-serialized transaction.
func (c *Client) BroadcastHex(ctx context.Context, txHex string) (*BroadcastResponse, error) {
	var out BroadcastResponse
	if err := c.post(ctx, "/wallet/broadcasthex", map[string]any{"transaction": txHex}, &out); err != nil {
		return nil, err
	}
	if err := checkBroadcast(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifiedRawData returns tx's serialized raw_data after checking that the
// advertised txID is its hash.
func (tx *Transaction) VerifiedRawData() ([]byte, error) {
	if _, err := tron.VerifyTxID(tx.TxID, tx.RawDataHex); err != nil {
		return nil, source.NewErrBackendRejected(source.Gateway, 0, err.Error())
	}
	raw, err := hex.DecodeString(tx.RawDataHex)
	if err != nil {
		return nil, source.NewErrBackendRejected(source.Gateway, 0, "raw_data_hex: "+err.Error())
	}
	return raw, nil
}

func callBody(call ConstantCall) map[string]any {
	body := map[string]any{
		"owner_address":     call.Owner,
		"contract_address":  call.Contract,
		"function_selector": call.Selector,
		"visible":           true,
	}
	if call.Parameter != "" {
		body["parameter"] = call.Parameter
	}
	return body
}

// errorEnvelope catches the {"Error": "..."} payload the wallet API returns
// with a 200 status on validation failures.
type errorEnvelope struct {
	Error string `json:"Error"`
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := sonic.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return source.NewErrBackendUnreachable(source.Gateway, fmt.Errorf("%s: %w", path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return source.NewErrBackendUnreachable(source.Gateway, fmt.Errorf("read %s: %w", path, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return source.NewErrBackendRejected(source.Gateway, resp.StatusCode, fmt.Sprintf("%s status %d: %s", path, resp.StatusCode, snippet(data)))
	}

	var env errorEnvelope
	if err := sonic.Unmarshal(data, &env); err == nil && env.Error != "" {
		return source.NewErrBackendRejected(source.Gateway, resp.StatusCode, env.Error)
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return source.NewErrBackendRejected(source.Gateway, resp.StatusCode, fmt.Sprintf("decode %s: %v", path, err))
	}
	return nil
}

// checkReturn fails on an explicit result=false. Constant calls omit the
// result flag on success, so allowEmpty accepts a zero Return.
func checkReturn(r Return, allowEmpty bool) error {
	if r.Result {
		return nil
	}
	if r.Code == "" && r.Message == "" {
		if allowEmpty {
			return nil
		}
		return source.NewErrBackendRejected(source.Gateway, 0, "missing result")
	}
	return source.NewErrBackendRejected(source.Gateway, 0, strings.TrimSpace(r.Code+" "+DecodeMessage(r.Message)))
}

func checkBroadcast(b *BroadcastResponse) error {
	if b.Result {
		return nil
	}
	msg := DecodeMessage(b.Message)
	if b.Code == "" && msg == "" {
		msg = "broadcast not accepted"
	}
	return source.NewErrBackendRejected(source.Gateway, 0, strings.TrimSpace(b.Code+" "+msg))
}

// DecodeMessage turns the hex-encoded messages the wallet API returns into
// text, leaving anything that is not printable hex untouched.
func DecodeMessage(s string) string {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) == 0 || !utf8.Valid(b) {
		return s
	}
	return string(b)
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
