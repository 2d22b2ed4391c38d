package tools

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/api"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/web3-frozen/tron-source-router/internal/backend/explorer"
	"github.com/web3-frozen/tron-source-router/internal/backend/gateway"
	"github.com/web3-frozen/tron-source-router/internal/backend/node"
	"github.com/web3-frozen/tron-source-router/internal/dedup"
	"github.com/web3-frozen/tron-source-router/internal/normalize"
	"github.com/web3-frozen/tron-source-router/internal/router"
	"github.com/web3-frozen/tron-source-router/internal/source"
	"github.com/web3-frozen/tron-source-router/internal/tron"
)

const (
	holder  = "TSLbRevWFn3hktZmfDrzRbDLfEA6RQjNwK"
	fresh   = "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7"
	usdt    = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	testKey = "0000000000000000000000000000000000000000000000000000000000000001"
)

var errNodeDown = errors.New("connection refused")

// fakeNode implements node.Client. A nil answer fails with errNodeDown.
type fakeNode struct {
	mu    sync.Mutex
	calls int

	account  *core.Account
	estimate *api.EstimateEnergyMessage
	balance  *big.Int

	unsigned       *api.TransactionExtention
	broadcastRet   *api.Return
	broadcastDelay time.Duration
	broadcasted    []*core.Transaction
}

func (f *fakeNode) hit() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeNode) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeNode) GetNowBlock() (*api.BlockExtention, error) {
	f.hit()
	return nil, errNodeDown
}
func (f *fakeNode) GetBlockByNum(num int64) (*api.BlockExtention, error) {
	f.hit()
	return nil, errNodeDown
}
func (f *fakeNode) GetAccount(addr string) (*core.Account, error) {
	f.hit()
	if f.account == nil {
		return nil, errNodeDown
	}
	return f.account, nil
}
func (f *fakeNode) GetAccountResource(addr string) (*api.AccountResourceMessage, error) {
	f.hit()
	return nil, errNodeDown
}
func (f *fakeNode) GetTransactionInfoByID(id string) (*core.TransactionInfo, error) {
	f.hit()
	return nil, errNodeDown
}
func (f *fakeNode) GetChainParameters() (*core.ChainParameters, error) {
	f.hit()
	return nil, errNodeDown
}
func (f *fakeNode) TRC20ContractBalance(addr, contractAddress string) (*big.Int, error) {
	f.hit()
	if f.balance == nil {
		return nil, errNodeDown
	}
	return f.balance, nil
}
func (f *fakeNode) TriggerConstantContract(from, contractAddress, method, jsonString string) (*api.TransactionExtention, error) {
	f.hit()
	return nil, errNodeDown
}
func (f *fakeNode) TriggerContract(from, contractAddress, method, jsonString string, feeLimit, tAmount int64, tTokenID string, tTokenAmount int64) (*api.TransactionExtention, error) {
	f.hit()
	if f.unsigned == nil {
		return nil, errNodeDown
	}
	return f.unsigned, nil
}
func (f *fakeNode) EstimateEnergy(from, contractAddress, method, jsonString string, tAmount int64, tTokenID string, tTokenAmount int64) (*api.EstimateEnergyMessage, error) {
	f.hit()
	if f.estimate == nil {
		return nil, errNodeDown
	}
	return f.estimate, nil
}
func (f *fakeNode) Transfer(from, toAddress string, amount int64) (*api.TransactionExtention, error) {
	f.hit()
	if f.unsigned == nil {
		return nil, errNodeDown
	}
	return f.unsigned, nil
}
func (f *fakeNode) Broadcast(tx *core.Transaction) (*api.Return, error) {
	f.hit()
	if f.broadcastDelay > 0 {
		time.Sleep(f.broadcastDelay)
	}
	if f.broadcastRet == nil {
		return nil, errNodeDown
	}
	f.mu.Lock()
	f.broadcasted = append(f.broadcasted, tx)
	f.mu.Unlock()
	return f.broadcastRet, nil
}

func (f *fakeNode) Broadcasted() []*core.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*core.Transaction(nil), f.broadcasted...)
}

// stubHTTP serves canned bodies by path and counts requests. Unknown paths
// answer 500.
type stubHTTP struct {
	srv *httptest.Server

	mu     sync.Mutex
	routes map[string]string
	hits   map[string]int
	bodies map[string]string
}

func newStubHTTP(t *testing.T, routes map[string]string) *stubHTTP {
	t.Helper()
	s := &stubHTTP{routes: routes, hits: make(map[string]int), bodies: make(map[string]string)}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqBody, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.bodies[r.URL.Path] = string(reqBody)
		body, ok := s.routes[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"Error":"internal error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *stubHTTP) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// Body returns the last request body received on path.
func (s *stubHTTP) Body(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path]
}

func (s *stubHTTP) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

type fixture struct {
	svc      *Service
	node     *fakeNode
	gateway  *stubHTTP
	explorer *stubHTTP
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newFixture wires a service whose primary is reachable when primaryUp.
func newFixture(t *testing.T, primaryUp bool, nodeFake *fakeNode, gw, ex map[string]string, opts ...Option) *fixture {
	t.Helper()
	probe := func(ctx context.Context) error {
		if primaryUp {
			return nil
		}
		return errNodeDown
	}
	avail := router.NewAvailability(probe, router.WithLogger(testLogger()))
	r := router.New(avail, router.WithRouterLogger(testLogger()), router.WithAttemptTimeout(2*time.Second))

	f := &fixture{node: nodeFake, gateway: newStubHTTP(t, gw), explorer: newStubHTTP(t, ex)}
	b := Backends{
		Gateway:  gateway.New(f.gateway.srv.URL, "", 2*time.Second),
		Explorer: explorer.New(f.explorer.srv.URL, nil, 2*time.Second),
	}
	if nodeFake != nil {
		b.Node = node.NewAdapter(nodeFake)
	}
	f.svc = NewService(r, b, append([]Option{WithLogger(testLogger())}, opts...)...)
	return f
}

func TestBalanceFallsBackToGateway(t *testing.T) {
	f := newFixture(t, true, &fakeNode{},
		map[string]string{"/wallet/getaccount": `{"address":"` + holder + `","balance":12345678}`},
		map[string]string{"/api/account": `{"address":"` + holder + `","balance":1}`},
	)

	res, err := f.svc.GetBalance(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, source.Gateway, res.Source)
	assert.Equal(t, int64(12345678), res.BalanceSun)
	assert.InDelta(t, 12.345678, res.Balance, 1e-9)
	assert.Equal(t, res.BalanceSun, tron.TRXToSun(res.Balance))
	assert.Equal(t, 1, f.node.Calls())
	assert.Zero(t, f.explorer.Total(), "explorer must not be called once the gateway answers")

	// The primary is now latched off.
	_, err = f.svc.GetBalance(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, 1, f.node.Calls())
}

func TestBalanceFromPrimary(t *testing.T) {
	f := newFixture(t, true, &fakeNode{account: &core.Account{Balance: 1_000_001}}, nil, nil)

	res, err := f.svc.GetBalance(context.Background(), holder)
	require.NoError(t, err)
	assert.Equal(t, source.Primary, res.Source)
	assert.Equal(t, holder, res.Address)
	assert.InDelta(t, 1.000001, res.Balance, 1e-9)
	assert.Zero(t, f.gateway.Total())
}

func TestInvalidAddressShortCircuits(t *testing.T) {
	f := newFixture(t, true, &fakeNode{}, nil, nil)

	_, err := f.svc.GetBalance(context.Background(), "TNotAnAddress")
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeInvalidAddress))

	_, err = f.svc.GetTokenBalance(context.Background(), holder, "0x1234", -1)
	assert.True(t, source.HasCode(err, source.CodeInvalidAddress))

	assert.Zero(t, f.node.Calls())
	assert.Zero(t, f.gateway.Total())
	assert.Zero(t, f.explorer.Total())
	assert.Equal(t, router.StateUnknown, f.svc.Router().Availability().State())
}

func TestAllSourcesFailedListsEveryBackend(t *testing.T) {
	f := newFixture(t, true, &fakeNode{}, nil, nil)

	_, err := f.svc.GetAccountResources(context.Background(), holder)
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeAllSourcesFailed))
	for _, id := range source.Order {
		assert.Contains(t, err.Error(), string(id))
	}
	assert.Equal(t, http.StatusBadGateway, source.StatusCode(err))
}

func TestTokenBalanceExplorerDecimals(t *testing.T) {
	f := newFixture(t, false, &fakeNode{}, nil, map[string]string{
		"/api/account/tokens": `{"total":1,"data":[{"tokenId":"` + usdt + `","tokenAbbr":"USDT","tokenDecimal":6,"balance":"2500000"}]}`,
	})

	res, err := f.svc.GetTokenBalance(context.Background(), holder, usdt, -1)
	require.NoError(t, err)
	assert.Equal(t, source.Explorer, res.Source)
	assert.Equal(t, "2500000", res.Raw)
	assert.Equal(t, 6, res.Decimals)
	assert.InDelta(t, 2.5, res.Balance, 1e-9)
	assert.Zero(t, f.node.Calls(), "unavailable primary is skipped")
}

func TestGetTransactionRejectsBadID(t *testing.T) {
	f := newFixture(t, true, &fakeNode{}, nil, nil)

	_, err := f.svc.GetTransaction(context.Background(), "abc")
	assert.True(t, source.HasCode(err, source.CodeInvalidParameter))
	assert.Zero(t, f.gateway.Total())
}

func TestContractCallNeverUsesExplorer(t *testing.T) {
	f := newFixture(t, false, nil, nil, map[string]string{"/api/account": `{}`})

	_, err := f.svc.ContractCall(context.Background(), CallArgs{
		Contract: usdt,
		Function: "balanceOf",
		Params:   []tron.Param{{Type: "address", Value: holder}},
	})
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeAllSourcesFailed))
	assert.Zero(t, f.explorer.Total())
}

func TestEstimateLiveFromPrimary(t *testing.T) {
	f := newFixture(t, true, &fakeNode{estimate: &api.EstimateEnergyMessage{
		Result:         &api.Return{Result: true},
		EnergyRequired: 29650,
	}}, nil, nil)

	est, err := f.svc.EstimateEnergy(context.Background(), EstimateArgs{CallArgs: CallArgs{
		Contract: usdt,
		Function: "transfer",
		Params:   []tron.Param{{Type: "address", Value: holder}, {Type: "uint256", Value: "1000000"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(29650), est.Energy)
	assert.Equal(t, normalize.MethodLiveQuery, est.Method)
	assert.Equal(t, normalize.AccuracyHigh, est.Accuracy)
	assert.Equal(t, "has-balance", est.RecipientStatus)
	assert.Empty(t, est.Note)
}

func TestEstimateZeroFallsThroughToGateway(t *testing.T) {
	f := newFixture(t, true, &fakeNode{estimate: &api.EstimateEnergyMessage{Result: &api.Return{Result: true}}},
		map[string]string{"/wallet/triggerconstantcontract": `{"result":{"result":true},"energy_used":14631,"constant_result":["00"]}`},
		nil,
	)

	est, err := f.svc.EstimateEnergy(context.Background(), EstimateArgs{CallArgs: CallArgs{
		Contract: usdt,
		Function: "approve(address,uint256)",
		Params:   []tron.Param{{Type: "address", Value: holder}, {Type: "uint256", Value: "1"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(14631), est.Energy)
	assert.Equal(t, source.Gateway, est.Source)
	assert.Equal(t, normalize.AccuracyMedium, est.Accuracy)
}

func TestEstimateNeverFails(t *testing.T) {
	f := newFixture(t, false, nil, nil, nil)
	args := EstimateArgs{CallArgs: CallArgs{
		Contract: usdt,
		Function: "transfer",
		Params:   []tron.Param{{Type: "address", Value: fresh}, {Type: "uint256", Value: "1000000"}},
	}}

	for i := 0; i < 3; i++ {
		est, err := f.svc.EstimateEnergy(context.Background(), args)
		require.NoError(t, err)
		assert.Equal(t, int64(130285), est.Energy)
		assert.Equal(t, normalize.MethodHeuristicFallback, est.Method)
		assert.Equal(t, normalize.AccuracyLow, est.Accuracy)
		assert.Equal(t, source.Heuristic, est.Source)
		assert.Equal(t, "unknown", est.RecipientStatus)
		assert.Equal(t, int64(420), est.EnergyPriceSun)
		assert.InDelta(t, 54.7197, est.CostTRX, 1e-9)
		assert.NotEmpty(t, est.Note)
	}

	// The same backends fail a non-estimation operation outright.
	_, err := f.svc.GetChainParameters(context.Background())
	assert.True(t, source.HasCode(err, source.CodeAllSourcesFailed))
}

func TestEstimateRecipientBalanceLookedUpLive(t *testing.T) {
	f := newFixture(t, false, nil, nil, map[string]string{
		"/api/account/tokens": `{"total":1,"data":[{"tokenId":"` + usdt + `","tokenDecimal":6,"balance":"1000"}]}`,
	})

	est, err := f.svc.EstimateEnergy(context.Background(), EstimateArgs{
		CallArgs: CallArgs{
			Contract: usdt,
			Function: "transfer",
			Params:   []tron.Param{{Type: "address", Value: fresh}, {Type: "uint256", Value: "1"}},
		},
		Recipient: fresh,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(64285), est.Energy)
	assert.Equal(t, "has-balance", est.RecipientStatus)
	assert.Equal(t, "contract:USDT:transfer:has-balance", est.Rule)
	assert.Equal(t, 1, f.explorer.Hits("/api/account/tokens"))
}

type fixedPrice int64

func (p fixedPrice) EnergyPrice(int64) int64 { return int64(p) }

func TestEstimateUsesLivePrice(t *testing.T) {
	f := newFixture(t, false, nil, nil, nil, WithPrices(fixedPrice(210)))

	est, err := f.svc.EstimateEnergy(context.Background(), EstimateArgs{CallArgs: CallArgs{
		Contract: fresh,
		Function: "swapExactTokensForTokens",
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(180000), est.Energy)
	assert.Equal(t, "pattern:swap", est.Rule)
	assert.Equal(t, int64(210), est.EnergyPriceSun)
	assert.InDelta(t, 37.8, est.CostTRX, 1e-9)
	assert.Empty(t, est.RecipientStatus)
}

func TestWritesRequireSigner(t *testing.T) {
	f := newFixture(t, true, &fakeNode{}, nil, nil)

	_, err := f.svc.SendTrx(context.Background(), holder, 1)
	assert.True(t, source.HasCode(err, source.CodeSignerUnavailable))
	_, err = f.svc.TriggerContract(context.Background(), TriggerArgs{CallArgs: CallArgs{Contract: usdt, Function: "transfer"}})
	assert.True(t, source.HasCode(err, source.CodeSignerUnavailable))
	assert.Zero(t, f.node.Calls())
}

func TestSendTrxValidatesAmount(t *testing.T) {
	signer, err := tron.NewSigner(testKey)
	require.NoError(t, err)
	f := newFixture(t, true, &fakeNode{}, nil, nil, WithSigner(signer))

	_, err = f.svc.SendTrx(context.Background(), holder, 0)
	assert.True(t, source.HasCode(err, source.CodeInvalidParameter))
	_, err = f.svc.SendTrx(context.Background(), "bogus", 1)
	assert.True(t, source.HasCode(err, source.CodeInvalidAddress))
	_, err = f.svc.SendTrx(context.Background(), holder, 1e13)
	require.True(t, source.HasCode(err, source.CodeInvalidParameter))
	assert.Contains(t, err.Error(), "exceeds the TRX supply")
	_, err = f.svc.SendTrx(context.Background(), holder, 0.0000001)
	assert.Contains(t, err.Error(), "below 1 SUN")
	assert.Zero(t, f.gateway.Total())
	assert.Zero(t, f.node.Calls())
}

func unsignedExt() *api.TransactionExtention {
	return &api.TransactionExtention{
		Transaction: &core.Transaction{RawData: &core.TransactionRaw{
			RefBlockBytes: []byte{0x31, 0xc5},
			Expiration:    1712000060000,
			Timestamp:     1712000000000,
		}},
		Result: &api.Return{Result: true, Code: api.Return_SUCCESS},
	}
}

// gatewayTx renders ext's transaction the way createtransaction returns it.
func gatewayTx(t *testing.T, ext *api.TransactionExtention) (body, txID string) {
	t.Helper()
	raw, err := proto.Marshal(ext.GetTransaction().GetRawData())
	require.NoError(t, err)
	txID = hex.EncodeToString(tron.TxIDFromRawData(raw))
	return `{"visible":true,"txID":"` + txID + `","raw_data":{},"raw_data_hex":"` + hex.EncodeToString(raw) + `"}`, txID
}

// broadcastHexID extracts the txID of the transaction posted to broadcasthex.
func broadcastHexID(t *testing.T, body string) string {
	t.Helper()
	var req struct {
		Transaction string `json:"transaction"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	tx, err := node.DecodeTransaction(req.Transaction)
	require.NoError(t, err)
	require.Len(t, tx.GetSignature(), 1)
	id, err := node.TransactionID(tx)
	require.NoError(t, err)
	return id
}

func TestSendTrxResendsSameTransactionAfterPrimaryTimeout(t *testing.T) {
	signer, err := tron.NewSigner(testKey)
	require.NoError(t, err)

	ext := unsignedExt()
	_, wantID := gatewayTx(t, ext)
	nodeFake := &fakeNode{
		unsigned:       ext,
		broadcastRet:   &api.Return{Result: true, Code: api.Return_SUCCESS},
		broadcastDelay: 300 * time.Millisecond,
	}
	gw := newStubHTTP(t, map[string]string{
		"/wallet/broadcasthex": `{"result":false,"code":"DUP_TRANSACTION_ERROR","message":"647570207472616e73616374696f6e"}`,
	})

	avail := router.NewAvailability(func(context.Context) error { return nil }, router.WithLogger(testLogger()))
	r := router.New(avail, router.WithRouterLogger(testLogger()), router.WithAttemptTimeout(100*time.Millisecond))
	svc := NewService(r, Backends{
		Node:    node.NewAdapter(nodeFake),
		Gateway: gateway.New(gw.srv.URL, "", 2*time.Second),
	}, WithSigner(signer), WithLogger(testLogger()))

	res, err := svc.SendTrx(context.Background(), holder, 1.5)
	require.NoError(t, err)
	assert.Equal(t, source.Gateway, res.Source)
	assert.Equal(t, wantID, res.TxID)
	assert.True(t, res.Result)

	assert.Zero(t, gw.Hits("/wallet/createtransaction"), "fallback must not build a second transaction")
	assert.Equal(t, wantID, broadcastHexID(t, gw.Body("/wallet/broadcasthex")))

	require.Eventually(t, func() bool { return len(nodeFake.Broadcasted()) == 1 }, 2*time.Second, 20*time.Millisecond)
	gotID, err := node.TransactionID(nodeFake.Broadcasted()[0])
	require.NoError(t, err)
	assert.Equal(t, wantID, gotID)
}

func TestDuplicateWithoutPrimaryAttemptFails(t *testing.T) {
	txHex, _ := signedTxHex(t)
	f := newFixture(t, false, nil,
		map[string]string{"/wallet/broadcasthex": `{"result":false,"code":"DUP_TRANSACTION_ERROR","message":"dup"}`},
		nil,
	)

	_, err := f.svc.BroadcastTransaction(context.Background(), txHex)
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeAllSourcesFailed))
	assert.Contains(t, err.Error(), "DUP_TRANSACTION_ERROR")
}

func TestSendTrxThroughGatewayRecordsTxID(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	guard := dedup.New(rdb, time.Hour)
	signer, err := tron.NewSigner(testKey)
	require.NoError(t, err)

	created, txID := gatewayTx(t, unsignedExt())
	f := newFixture(t, false, &fakeNode{},
		map[string]string{
			"/wallet/createtransaction": created,
			"/wallet/broadcasthex":      `{"result":true,"txid":"` + txID + `"}`,
		},
		nil,
		WithSigner(signer), WithGuard(guard),
	)

	res, err := f.svc.SendTrx(context.Background(), holder, 2)
	require.NoError(t, err)
	assert.Equal(t, source.Gateway, res.Source)
	assert.Equal(t, txID, res.TxID)
	assert.Contains(t, f.gateway.Body("/wallet/createtransaction"), `"amount":2000000`)
	assert.Equal(t, txID, broadcastHexID(t, f.gateway.Body("/wallet/broadcasthex")))
	assert.True(t, guard.AlreadySent(context.Background(), txID))
	assert.Zero(t, f.node.Calls(), "unavailable primary is skipped")
	assert.Zero(t, f.explorer.Total())
}

func TestTriggerContractThroughPrimary(t *testing.T) {
	signer, err := tron.NewSigner(testKey)
	require.NoError(t, err)

	ext := unsignedExt()
	_, txID := gatewayTx(t, ext)
	nodeFake := &fakeNode{unsigned: ext, broadcastRet: &api.Return{Result: true, Code: api.Return_SUCCESS}}
	f := newFixture(t, true, nodeFake, nil, nil, WithSigner(signer))

	res, err := f.svc.TriggerContract(context.Background(), TriggerArgs{CallArgs: CallArgs{
		Contract: usdt,
		Function: "transfer",
		Params:   []tron.Param{{Type: "address", Value: holder}, {Type: "uint256", Value: "1"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, source.Primary, res.Source)
	assert.Equal(t, txID, res.TxID)

	sent := nodeFake.Broadcasted()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].GetSignature(), 1)
	assert.Zero(t, f.gateway.Total())
}

func signedTxHex(t *testing.T) (string, string) {
	t.Helper()
	tx := &core.Transaction{
		RawData: &core.TransactionRaw{
			RefBlockBytes: []byte{0x31, 0xc5},
			Expiration:    1712000060000,
			Timestamp:     1712000000000,
		},
	}
	signer, err := tron.NewSigner(testKey)
	require.NoError(t, err)
	require.NoError(t, node.SignTransaction(tx, signer))
	id, err := node.TransactionID(tx)
	require.NoError(t, err)
	raw, err := proto.Marshal(tx)
	require.NoError(t, err)
	return hex.EncodeToString(raw), id
}

func TestBroadcastGuardedAgainstReplay(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	txHex, txID := signedTxHex(t)
	f := newFixture(t, false, nil,
		map[string]string{"/wallet/broadcasthex": `{"result":true,"txid":"` + txID + `"}`},
		nil,
		WithGuard(dedup.New(rdb, time.Hour)),
	)

	res, err := f.svc.BroadcastTransaction(context.Background(), txHex)
	require.NoError(t, err)
	assert.Equal(t, source.Gateway, res.Source)
	assert.Equal(t, txID, res.TxID)
	assert.True(t, res.Result)

	_, err = f.svc.BroadcastTransaction(context.Background(), txHex)
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeBackendRejected))
	assert.Equal(t, http.StatusConflict, source.StatusCode(err))
	assert.Equal(t, 1, f.gateway.Hits("/wallet/broadcasthex"))
	assert.Zero(t, f.explorer.Total())
}

func TestBroadcastFailureReleasesClaim(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	guard := dedup.New(rdb, time.Hour)

	txHex, txID := signedTxHex(t)
	f := newFixture(t, false, nil, nil, nil, WithGuard(guard))

	_, err := f.svc.BroadcastTransaction(context.Background(), txHex)
	require.Error(t, err)
	assert.True(t, source.HasCode(err, source.CodeAllSourcesFailed))
	assert.True(t, guard.Claim(context.Background(), txID), "failed broadcast must not hold the claim")
}

func TestBroadcastRejectsUnsigned(t *testing.T) {
	f := newFixture(t, true, &fakeNode{}, nil, nil)
	raw, err := proto.Marshal(&core.Transaction{RawData: &core.TransactionRaw{Timestamp: 1}})
	require.NoError(t, err)

	_, err = f.svc.BroadcastTransaction(context.Background(), hex.EncodeToString(raw))
	assert.True(t, source.HasCode(err, source.CodeInvalidParameter))

	_, err = f.svc.BroadcastTransaction(context.Background(), "not-hex")
	assert.True(t, source.HasCode(err, source.CodeInvalidParameter))
	assert.Zero(t, f.node.Calls())
}
