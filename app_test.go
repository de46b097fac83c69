package walletauth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/config"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/internal/logger"
)

type zeroLedger struct{}

func (zeroLedger) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (zeroLedger) CallContract(context.Context, common.Address, []byte) ([]byte, error) {
	return make([]byte, 32), nil
}

func writeKey(t *testing.T, key *ecdsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "signing.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600))
	return path
}

func TestNew_Memory(t *testing.T) {
	cfg := config.Default()
	app, err := New(context.Background(), &cfg, WithLedger(zeroLedger{}), WithLogger(logger.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Backend = "etcd"

	_, err := New(context.Background(), &cfg, WithLedger(zeroLedger{}))
	assert.ErrorContains(t, err, "store.backend")
}

func TestNew_SigningKeyFile(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Auth.SigningKeyFile = writeKey(t, key)

	first, err := New(context.Background(), &cfg, WithLedger(zeroLedger{}), WithLogger(logger.Discard()))
	require.NoError(t, err)
	second, err := New(context.Background(), &cfg, WithLedger(zeroLedger{}), WithLogger(logger.Discard()))
	require.NoError(t, err)

	// a credential from one instance is accepted by another sharing the key
	wallet, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(wallet.PublicKey)

	ctx := context.Background()
	issued, err := first.Auth.RequestChallenge(ctx, address.Hex())
	require.NoError(t, err)
	sig, err := eth.SignPersonal(wallet, []byte(issued.Message))
	require.NoError(t, err)
	credential, _, err := first.Auth.SubmitProof(ctx, address.Hex(), hexutil.Encode(sig), "")
	require.NoError(t, err)

	session, err := second.Balances.Whoami(ctx, credential)
	require.NoError(t, err)
	assert.Equal(t, address, session.Address)
}

func TestNew_MissingSigningKeyFile(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.SigningKeyFile = filepath.Join(t.TempDir(), "missing.pem")

	_, err := New(context.Background(), &cfg, WithLedger(zeroLedger{}), WithLogger(logger.Discard()))
	assert.Error(t, err)
}

func TestParseSigningKey_WrongCurve(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	_, err = ParseSigningKey(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
	assert.Error(t, err)

	_, err = ParseSigningKey([]byte("not pem"))
	assert.Error(t, err)
}

func TestNew_PublishesLoginEvents(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logins, err := pubSub.Subscribe(ctx, events.LoginTopic)
	require.NoError(t, err)

	cfg := config.Default()
	app, err := New(ctx, &cfg, WithLedger(zeroLedger{}), WithPublisher(pubSub), WithLogger(logger.Discard()))
	require.NoError(t, err)

	wallet, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(wallet.PublicKey)

	issued, err := app.Auth.RequestChallenge(ctx, address.Hex())
	require.NoError(t, err)
	sig, err := eth.SignPersonal(wallet, []byte(issued.Message))
	require.NoError(t, err)
	_, session, err := app.Auth.SubmitProof(ctx, address.Hex(), hexutil.Encode(sig), issued.Message)
	require.NoError(t, err)

	select {
	case msg := <-logins:
		msg.Ack()
		assert.Contains(t, string(msg.Payload), session.ID)
	case <-ctx.Done():
		t.Fatal("login event not published")
	}
}

func TestApp_Run(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	app, err := New(context.Background(), &cfg, WithLedger(zeroLedger{}), WithLogger(logger.Discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.NoError(t, app.Close())
}
