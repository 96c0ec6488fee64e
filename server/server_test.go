package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/storacha/filecoin-services-sub000/app"
	"github.com/storacha/filecoin-services-sub000/server"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/keeper"
	"github.com/storacha/filecoin-services-sub000/x/warmstorage/types"
)

var (
	verifierAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	paymentsAddr = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	serviceAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f3")
	providerAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

type testEnv struct {
	app     *app.App
	handler http.Handler
	params  types.Params
	payer   common.Address
	create  []byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	params := types.DefaultParams()
	params.MaxProvingPeriod = 100
	params.ChallengeWindowSize = 10
	params.TerminationNoticePeriods = 2
	params.VerifierAddress = verifierAddr
	params.PaymentsAddress = paymentsAddr
	params.ServiceAddress = serviceAddr

	a, err := app.New(log.NewNopLogger(), dbm.NewMemDB(), app.Config{ChainID: "server-test", Params: params})
	require.NoError(t, err)

	key, err := gethCrypto.GenerateKey()
	require.NoError(t, err)
	keys, values := []string{"label"}, []string{"backups"}
	entries, err := types.NewMetadataEntries(keys, values)
	require.NoError(t, err)
	sig, err := types.SignDigest(types.DomainFromParams(params).Digest(types.HashCreateDataSet(types.CreateDataSetIntent{
		ClientDataSetId: 0,
		Payee:           providerAddr,
		Metadata:        entries,
	})), key)
	require.NoError(t, err)
	payer := gethCrypto.PubkeyToAddress(key.PublicKey)
	extra, err := types.DataSetCreatedExtra{Payer: payer, MetadataKeys: keys, MetadataValues: values, Signature: sig}.Encode()
	require.NoError(t, err)
	create, err := a.Router.Pack("dataSetCreated", uint64(1), providerAddr, extra)
	require.NoError(t, err)

	return &testEnv{
		app:     a,
		handler: server.New(a, log.NewNopLogger(), "server-test").Handler(),
		params:  params,
		payer:   payer,
		create:  create,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) call(t *testing.T, caller common.Address, calldata []byte) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, "POST", "/v1/calls", map[string]string{
		"caller":   caller.Hex(),
		"calldata": hexutil.Encode(calldata),
	})
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestStatus(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(t, "GET", "/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	require.Equal(t, "server-test", body["chain_id"])
	require.Equal(t, float64(keeper.LatestVersion()), body["state_version"])
	require.Equal(t, types.ServiceVersion, body["service_version"])
}

func TestCallAndQueryDataSet(t *testing.T) {
	e := newTestEnv(t)

	w := e.call(t, verifierAddr, e.create)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	receipt := decode[app.Receipt](t, w)
	require.Equal(t, "dataSetCreated", receipt.Method)

	w = e.do(t, "GET", "/v1/datasets/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[types.DataSetInfo](t, w)
	require.Equal(t, e.payer, info.Payer)
	require.Equal(t, providerAddr, info.Payee)

	w = e.do(t, "GET", "/v1/datasets/1/parties", nil)
	require.Equal(t, http.StatusOK, w.Code)
	parties := decode[types.DataSetParties](t, w)
	require.Equal(t, e.payer, parties.Payer)

	w = e.do(t, "GET", "/v1/datasets/1/metadata/label", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lookup := decode[types.MetadataLookup](t, w)
	require.True(t, lookup.Exists)
	require.Equal(t, "backups", lookup.Value)

	w = e.do(t, "GET", "/v1/datasets/1/metadata/missing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, decode[types.MetadataLookup](t, w).Exists)

	w = e.do(t, "GET", "/v1/datasets/1/metadata", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"key":"label"`)

	w = e.do(t, "GET", "/v1/datasets/1/pieces/0/metadata", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"entries":[]`)

	w = e.do(t, "GET", "/v1/clients/"+e.payer.Hex()+"/datasets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, decode[[]types.DataSetInfo](t, w), 1)

	w = e.do(t, "GET", "/v1/rails/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, providerAddr, decode[app.Rail](t, w).To)
}

func TestQueryErrors(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "GET", "/v1/datasets/99", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), `"error"`)

	w = e.do(t, "GET", "/v1/datasets/abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "GET", "/v1/clients/not-an-address/datasets", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "GET", "/v1/rails/5", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusOK, e.call(t, verifierAddr, e.create).Code)
	w = e.do(t, "GET", "/v1/datasets/1/proving", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(0), decode[map[string]any](t, w)["deadline"])
	w = e.do(t, "GET", "/v1/datasets/1/periods/0", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Contains(t, w.Body.String(), `"hint"`)
}

func TestCallErrors(t *testing.T) {
	e := newTestEnv(t)

	w := e.call(t, providerAddr, e.create)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = e.call(t, verifierAddr, []byte{0xde, 0xad, 0xbe, 0xef})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "POST", "/v1/calls", map[string]string{"caller": "nope", "calldata": "0x"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "POST", "/v1/calls", map[string]string{"caller": verifierAddr.Hex(), "calldata": "zz"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	require.Equal(t, http.StatusOK, e.call(t, verifierAddr, e.create).Code)
	w = e.call(t, verifierAddr, e.create)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestBlocksAndProving(t *testing.T) {
	e := newTestEnv(t)
	require.Equal(t, http.StatusOK, e.call(t, verifierAddr, e.create).Code)

	w := e.do(t, "POST", "/v1/blocks", map[string]any{"count": 10})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int64(10), decode[map[string]int64](t, w)["height"])

	w = e.do(t, "POST", "/v1/blocks", map[string]any{"count": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)

	npp, err := e.app.Router.Pack("nextProvingPeriod", uint64(1), uint64(105), uint64(64), []byte{})
	require.NoError(t, err)
	w = e.call(t, verifierAddr, npp)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, "GET", "/v1/datasets/1/proving", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	require.Equal(t, float64(10), body["activation_epoch"])
	require.Equal(t, float64(110), body["deadline"])
	require.Equal(t, float64(200), body["next_challenge_window_start"])

	w = e.do(t, "GET", "/v1/datasets/1/periods/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	period := decode[map[string]any](t, w)
	require.Equal(t, float64(110), period["deadline"])
	require.Equal(t, false, period["proven"])

	w = e.do(t, "GET", "/v1/datasets/1/epochs/150/period", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(1), decode[map[string]any](t, w)["period"])

	w = e.do(t, "GET", "/v1/datasets/1/epochs/5/period", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPricingAndConfig(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, "GET", "/v1/pricing?size_bytes=1099511627776", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	require.Equal(t, "5000000000000000000", body["price_per_tib_per_month_no_cdn"])
	require.Equal(t, "57870370370370", body["rate_per_epoch"])

	w = e.do(t, "GET", "/v1/pricing?size_bytes=-4", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, "GET", "/v1/pdp-config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode[types.PDPConfig](t, w)
	require.Equal(t, e.params.MaxProvingPeriod, cfg.MaxProvingPeriod)
	require.Equal(t, e.params.ChallengeWindowSize, cfg.ChallengeWindow)

	w = e.do(t, "GET", "/v1/params", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), strings.ToLower(verifierAddr.Hex()[2:])) ||
		strings.Contains(w.Body.String(), verifierAddr.Hex()))
}
