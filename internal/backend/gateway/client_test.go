package gateway

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/tron-source-router/internal/source"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

const (
	testURL  = "http://trongrid.localhost"
	holder   = "TSLbRevWFn3hktZmfDrzRbDLfEA6RQjNwK"
	usdt     = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	rawHex   = "0a0231c52208b1c5e2b3a1f4d2e140e8d4c5f5f8325a67080112630a2d747970652e676f6f676c65617069732e636f6d2f70726f746f636f6c2e5472616e73666572436f6e747261637412320a1541c1f4a2"
	rawTxID  = "55d5e9ec23809297038329a3bbd18712bd0f53080b2a2a3608e53069a37d3dfc"
	testKey  = "0000000000000000000000000000000000000000000000000000000000000001"
	notFound = `{}`
)

func newTestClient() *Client {
	return New(testURL, "secret", 2*time.Second)
}

func TestGetAccount(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/wallet/getaccount").
		MatchHeader(apiKeyHeader, "secret").
		Reply(200).
		JSON(map[string]any{"address": holder, "balance": 12345678, "create_time": 1600000000000})

	acc, err := newTestClient().GetAccount(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, holder, acc.Address)
	assert.Equal(t, int64(12345678), acc.Balance)
	assert.True(t, gock.IsDone())
}

func TestGetAccountUnactivated(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).Post("/wallet/getaccount").Reply(200).BodyString(notFound)

	acc, err := newTestClient().GetAccount(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, holder, acc.Address)
	assert.Zero(t, acc.Balance)
}

func TestNonSuccessStatus(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).Post("/wallet/getaccountresource").Reply(429).BodyString("too many requests")

	_, err := newTestClient().GetAccountResource(context.Background(), holder)
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeBackendRejected))
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "too many requests")
}

func TestErrorPayloadWithOKStatus(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/wallet/createtransaction").
		Reply(200).
		JSON(map[string]any{"Error": "class org.tron.core.exception.ContractValidateException : balance is not sufficient"})

	_, err := newTestClient().CreateTransaction(context.Background(), holder, usdt, 1)
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeBackendRejected))
	assert.Contains(t, err.Error(), "balance is not sufficient")
}

func TestUnreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", "", 500*time.Millisecond)
	_, err := c.GetNowBlock(context.Background())
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeBackendUnreachable))
}

func TestGetNowBlock(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/wallet/getnowblock").
		Reply(200).
		JSON(map[string]any{
			"blockID": "0000000003a2b1c0aa",
			"block_header": map[string]any{"raw_data": map[string]any{
				"number":          60993984,
				"parentHash":      "0000000003a2b1bf",
				"timestamp":       1712000000000,
				"witness_address": "41e2b4f8",
			}},
			"transactions": []map[string]any{{"txID": "a"}, {"txID": "b"}},
		})

	b, err := newTestClient().GetNowBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(60993984), b.BlockHeader.RawData.Number)
	assert.Len(t, b.Transactions, 2)
}

func TestGetBlockByNumMissing(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).Post("/wallet/getblockbynum").Reply(200).BodyString(notFound)

	_, err := newTestClient().GetBlockByNum(context.Background(), 1<<40)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGetTransactionInfoMissing(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).Post("/wallet/gettransactioninfobyid").Reply(200).BodyString(notFound)

	_, err := newTestClient().GetTransactionInfo(context.Background(), rawTxID)
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeBackendRejected))
}

func TestGetChainParameters(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Get("/wallet/getchainparameters").
		Reply(200).
		JSON(map[string]any{"chainParameter": []map[string]any{
			{"key": "getEnergyFee", "value": 420},
			{"key": "getTransactionFee", "value": 1000},
		}})

	p, err := newTestClient().GetChainParameters(context.Background())
	require.NoError(t, err)
	require.Len(t, p.ChainParameter, 2)
	assert.Equal(t, "getEnergyFee", p.ChainParameter[0].Key)
	assert.Equal(t, int64(420), p.ChainParameter[0].Value)
}

func TestTriggerConstantContract(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/wallet/triggerconstantcontract").
		Reply(200).
		JSON(map[string]any{
			"result":          map[string]any{"result": true},
			"energy_used":     31895,
			"constant_result": []string{"00000000000000000000000000000000000000000000000000000000000f4240"},
		})

	res, err := newTestClient().TriggerConstantContract(context.Background(), ConstantCall{
		Owner:    holder,
		Contract: usdt,
		Selector: "balanceOf(address)",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(31895), res.EnergyUsed)
	v, err := tron.DecodeUint256Hex(res.ConstantResult[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), v.Int64())
}

func TestTriggerConstantContractRevert(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/wallet/triggerconstantcontract").
		Reply(200).
		JSON(map[string]any{"result": map[string]any{
			"code":    "CONTRACT_VALIDATE_ERROR",
			"message": "62616c616e6365206973206e6f742073756666696369656e74",
		}})

	_, err := newTestClient().TriggerConstantContract(context.Background(), ConstantCall{Contract: usdt, Selector: "transfer(address,uint256)"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONTRACT_VALIDATE_ERROR balance is not sufficient")
}

func TestCreateTransaction(t *testing.T) {
	defer gock.Off()

	signer, err := tron.NewSigner(testKey)
	require.NoError(t, err)
	from := tron.Base58(signer.Address())

	gock.New(testURL).
		Post("/wallet/createtransaction").
		MatchType("json").
		JSON(map[string]any{"owner_address": from, "to_address": holder, "amount": 1500000, "visible": true}).
		Reply(200).
		JSON(map[string]any{
			"visible":      true,
			"txID":         rawTxID,
			"raw_data":     map[string]any{"expiration": 1},
			"raw_data_hex": rawHex,
		})

	tx, err := newTestClient().CreateTransaction(context.Background(), from, holder, 1_500_000)
	require.NoError(t, err)
	raw, err := tx.VerifiedRawData()
	require.NoError(t, err)
	assert.Equal(t, rawHex, hex.EncodeToString(raw))
	assert.True(t, gock.IsDone())
}

func TestVerifiedRawDataRejectsMismatchedID(t *testing.T) {
	tx := &Transaction{TxID: "00" + rawTxID[2:], RawDataHex: rawHex}
	_, err := tx.VerifiedRawData()
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeBackendRejected))
}

func TestBroadcastHex(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/wallet/broadcasthex").
		MatchType("json").
		JSON(map[string]any{"transaction": "0a02"}).
		Reply(200).
		JSON(map[string]any{"result": true, "txid": rawTxID})

	res, err := newTestClient().BroadcastHex(context.Background(), "0a02")
	require.NoError(t, err)
	assert.Equal(t, rawTxID, res.TxID)
	assert.True(t, gock.IsDone())
}

func TestBroadcastRejected(t *testing.T) {
	defer gock.Off()

	gock.New(testURL).
		Post("/wallet/broadcasthex").
		Reply(200).
		JSON(map[string]any{"result": false, "code": "SIGERROR", "message": "76616c6964617465207369676e6174757265206572726f72"})

	_, err := newTestClient().BroadcastHex(context.Background(), "0a02")
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeBackendRejected))
	assert.Contains(t, err.Error(), "SIGERROR validate signature error")
}

func TestDecodeMessage(t *testing.T) {
	assert.Equal(t, "hello", DecodeMessage("68656c6c6f"))
	assert.Equal(t, "plain text", DecodeMessage("plain text"))
	assert.Equal(t, "", DecodeMessage(""))
}
