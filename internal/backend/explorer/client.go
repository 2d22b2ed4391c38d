// Package explorer reads chain data from the TronScan REST API. It offers no
// writes and no contract calls, so callers never build an explorer candidate
// for those operations.
package explorer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/web3-frozen/tron-source-router/internal/source"
)

// DefaultURL is the public TronScan API host.
const DefaultURL = "https://apilist.tronscanapi.com"

const apiKeyHeader = "TRON-PRO-API-KEY"

// KeyPicker hands out the API key for the next request. An empty key sends
// the request anonymously.
type KeyPicker interface {
	Next(ctx context.Context) string
}

type Client struct {
	client  *http.Client
	baseURL string
	keys    KeyPicker
}

func New(baseURL string, keys KeyPicker, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		keys:    keys,
	}
}

func (c *Client) GetAccount(ctx context.Context, addr string) (*Account, error) {
	var out Account
	if err := c.get(ctx, "/api/account", url.Values{"address": {addr}}, &out); err != nil {
		return nil, err
	}
	if out.Address == "" {
		out.Address = addr
	}
	return &out, nil
}

// GetTokenBalance returns the holder's entry for one TRC-20 contract, or a
// zero balance when the holder has none.
func (c *Client) GetTokenBalance(ctx context.Context, addr, contract string) (*TokenEntry, error) {
	q := url.Values{
		"address": {addr},
		"token":   {contract},
		"start":   {"0"},
		"limit":   {"20"},
	}
	var out TokenList
	if err := c.get(ctx, "/api/account/tokens", q, &out); err != nil {
		return nil, err
	}
	for i := range out.Data {
		if out.Data[i].TokenID == contract {
			return &out.Data[i], nil
		}
	}
	return &TokenEntry{TokenID: contract, Balance: "0", TokenDecimal: -1}, nil
}

// GetBlock returns block num, or the latest block when num is nil.
func (c *Client) GetBlock(ctx context.Context, num *int64) (*Block, error) {
	q := url.Values{"start": {"0"}, "limit": {"1"}}
	if num != nil {
		q.Set("number", strconv.FormatInt(*num, 10))
	} else {
		q.Set("sort", "-number")
	}
	var out BlockList
	if err := c.get(ctx, "/api/block", q, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, source.NewErrBackendRejected(source.Explorer, 0, "block not found")
	}
	return &out.Data[0], nil
}

func (c *Client) GetTransactionInfo(ctx context.Context, txID string) (*TransactionInfo, error) {
	var out TransactionInfo
	if err := c.get(ctx, "/api/transaction-info", url.Values{"hash": {txID}}, &out); err != nil {
		return nil, err
	}
	if out.Hash == "" {
		return nil, source.NewErrBackendRejected(source.Explorer, 0, "transaction "+txID+" not found")
	}
	return &out, nil
}

func (c *Client) GetChainParameters(ctx context.Context) (*ChainParameters, error) {
	var out ChainParameters
	if err := c.get(ctx, "/api/chainparameters", nil, &out); err != nil {
		return nil, err
	}
	if len(out.TronParameters) == 0 {
		return nil, source.NewErrBackendRejected(source.Explorer, 0, "empty chain parameters")
	}
	return &out, nil
}

type errorEnvelope struct {
	Message string `json:"message"`
	Error   string `json:"Error"`
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.keys != nil {
		if key := c.keys.Next(ctx); key != "" {
			req.Header.Set(apiKeyHeader, key)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return source.NewErrBackendUnreachable(source.Explorer, fmt.Errorf("%s: %w", path, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return source.NewErrBackendUnreachable(source.Explorer, fmt.Errorf("read %s: %w", path, err))
	}
	if resp.StatusCode != http.StatusOK {
		var env errorEnvelope
		msg := strings.TrimSpace(string(data))
		if sonic.Unmarshal(data, &env) == nil {
			if env.Message != "" {
				msg = env.Message
			} else if env.Error != "" {
				msg = env.Error
			}
		}
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return source.NewErrBackendRejected(source.Explorer, resp.StatusCode, fmt.Sprintf("%s status %d: %s", path, resp.StatusCode, msg))
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return source.NewErrBackendRejected(source.Explorer, resp.StatusCode, fmt.Sprintf("decode %s: %v", path, err))
	}
	return nil
}
