package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/balance"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/internal/metrics"
	"github.com/layer-3/walletauth/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var usdc = common.HexToAddress("0x00000000000000000000000000000000000000cc")

// stubLedger serves a fixed native balance and one 6-decimal token.
type stubLedger struct {
	calls     atomic.Int32
	failToken bool
}

func (l *stubLedger) NativeBalance(_ context.Context, _ common.Address) (*big.Int, error) {
	l.calls.Add(1)
	v, _ := new(big.Int).SetString("1234567890123456789", 10)
	return v, nil
}

func (l *stubLedger) CallContract(_ context.Context, _ common.Address, input []byte) ([]byte, error) {
	l.calls.Add(1)
	if bytes.Equal(input, eth.PackDecimals()) {
		return math.U256Bytes(big.NewInt(6)), nil
	}
	if l.failToken {
		return nil, core.ErrLedgerRejected
	}
	return math.U256Bytes(big.NewInt(42_000_000)), nil
}

type testServer struct {
	router *gin.Engine
	ledger *stubLedger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	sessions := service.NewSessionIssuer(tokenizer.NewJWTTokenizer(signKey), store.NewMemoryRevocationStore(), time.Hour, nil)
	nonces := service.NewNonceManager(store.NewMemoryNonceStore(), 5*time.Minute, nil)
	domain := eth.ChallengeDomain{Domain: "app.example.com", URI: "https://app.example.com", ChainID: 1}
	auth := service.NewAuthService(nonces, sessions, eth.PersonalSignVerifier{}, domain)

	registry, err := balance.NewRegistry("ETH", []core.Asset{{Symbol: "USDC", Contract: usdc}})
	require.NoError(t, err)

	ledger := &stubLedger{}
	cfg := balance.DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	aggregator := balance.NewAggregator(ledger, registry, balance.WithConfig(cfg))

	m := metrics.New()
	router := SetupRouter(auth, service.NewBalanceService(sessions, aggregator), WithMetricsHandler(m.Handler()))

	return &testServer{router: router, ledger: ledger}
}

func (s *testServer) do(t *testing.T, method, target string, body any, credential string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (s *testServer) login(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	rec := s.do(t, http.MethodGet, "/auth/nonce?address="+url.QueryEscape(address), nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	nonce := decode[NonceResponse](t, rec)

	sig, err := eth.SignPersonal(key, []byte(nonce.Message))
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/auth/verify", VerifyRequest{
		Address:   address,
		Signature: hexutil.Encode(sig),
		Message:   nonce.Message,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cred := decode[CredentialResponse](t, rec)
	assert.Equal(t, "Bearer", cred.TokenType)
	assert.Equal(t, address, cred.Address)
	return cred.Credential
}

func TestRouter_FullFlow(t *testing.T) {
	srv := newTestServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	credential := srv.login(t, key)

	rec := srv.do(t, http.MethodGet, "/balances", nil, credential)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	balances := decode[BalancesResponse](t, rec)
	assert.Equal(t, address, balances.Address)
	assert.Equal(t, BalanceEntry{Raw: "1234567890123456789", Decimals: 18, Display: "1.234567"}, balances.Balances["ETH"])
	assert.Equal(t, BalanceEntry{Raw: "42000000", Decimals: 6, Display: "42"}, balances.Balances["USDC"])
	assert.Empty(t, balances.Errors)

	rec = srv.do(t, http.MethodGet, "/me", nil, credential)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, address, decode[MeResponse](t, rec).Address)

	rec = srv.do(t, http.MethodPost, "/auth/logout", nil, credential)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/balances", nil, credential)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, msgUnauthorized, decode[ErrorResponse](t, rec).Error)
}

func TestRouter_ReplayIsRejectedGenerically(t *testing.T) {
	srv := newTestServer(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	rec := srv.do(t, http.MethodGet, "/auth/nonce?address="+address, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	nonce := decode[NonceResponse](t, rec)

	sig, err := eth.SignPersonal(key, []byte(nonce.Message))
	require.NoError(t, err)
	req := VerifyRequest{Address: address, Signature: hexutil.Encode(sig), Message: nonce.Message}

	rec = srv.do(t, http.MethodPost, "/auth/verify", req, "")
	require.Equal(t, http.StatusOK, rec.Code)

	replay := srv.do(t, http.MethodPost, "/auth/verify", req, "")
	assert.Equal(t, http.StatusUnauthorized, replay.Code)

	// a bad signature yields the same response as a replay
	rec = srv.do(t, http.MethodGet, "/auth/nonce?address="+address, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	bad := srv.do(t, http.MethodPost, "/auth/verify", VerifyRequest{Address: address, Signature: "0x00"}, "")
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
	assert.Equal(t, replay.Body.String(), bad.Body.String())
}

func TestRouter_InvalidRequests(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/auth/nonce?address=0x1234", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgInvalidAddress, decode[ErrorResponse](t, rec).Error)

	rec = srv.do(t, http.MethodGet, "/auth/nonce", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

}

func TestRouter_VerifyOnlyAnswersCredentialOrUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	for name, body := range map[string]any{
		"unparseable address": VerifyRequest{Address: "0x1234", Signature: "0x00"},
		"bad checksum":        VerifyRequest{Address: "0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Signature: "0x00"},
		"missing signature":   map[string]string{"address": "0x00"},
	} {
		rec := srv.do(t, http.MethodPost, "/auth/verify", body, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Equal(t, msgAuthFailed, decode[ErrorResponse](t, rec).Error, name)
	}
}

func TestRouter_UnauthorizedNeverReachesLedger(t *testing.T) {
	srv := newTestServer(t)

	for _, credential := range []string{"", "garbage", "a.b.c"} {
		rec := srv.do(t, http.MethodGet, "/balances", nil, credential)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, credential)
	}

	req := httptest.NewRequest(http.MethodGet, "/balances", nil)
	req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, srv.ledger.calls.Load())
}

func TestRouter_PartialBalances(t *testing.T) {
	srv := newTestServer(t)
	srv.ledger.failToken = true

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	credential := srv.login(t, key)

	rec := srv.do(t, http.MethodGet, "/balances", nil, credential)
	require.Equal(t, http.StatusOK, rec.Code)

	balances := decode[BalancesResponse](t, rec)
	assert.Contains(t, balances.Balances, "ETH")
	assert.NotContains(t, balances.Balances, "USDC")
	assert.Equal(t, msgUpstream, balances.Errors["USDC"])
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{core.ErrInvalidAddress, http.StatusBadRequest},
		{core.ErrChallengeExpiredOrUnknown, http.StatusUnauthorized},
		{core.ErrAuthenticationFailed, http.StatusUnauthorized},
		{core.ErrCredentialExpired, http.StatusUnauthorized},
		{core.ErrCredentialRevoked, http.StatusUnauthorized},
		{core.ErrChallengeRateLimited, http.StatusTooManyRequests},
		{core.ErrAggregationFailed, http.StatusBadGateway},
		{context.Canceled, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		status, _ := statusOf(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
