package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/internal/eth"
)

const (
	challengeTTL = 5 * time.Minute
	sessionTTL   = 24 * time.Hour
)

var testDomain = eth.ChallengeDomain{
	Domain:  "app.example.com",
	URI:     "https://app.example.com",
	ChainID: 1,
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// newFakeClock starts at the wall clock so stores with their own timers stay consistent.
func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordedEvent struct {
	topic     string
	address   string
	sessionID string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishLogin(_ context.Context, address, sessionID string) error {
	p.record("login", address, sessionID)
	return nil
}

func (p *recordingPublisher) PublishLogout(_ context.Context, address, sessionID string) error {
	p.record("logout", address, sessionID)
	return nil
}

func (p *recordingPublisher) record(topic, address, sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, address: address, sessionID: sessionID})
}

func (p *recordingPublisher) Events() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := eth.SignPersonal(w.key, []byte(message))
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

type testEnv struct {
	clock    *fakeClock
	nonces   *NonceManager
	sessions *SessionIssuer
	auth     *AuthService
	events   *recordingPublisher
}

func newTestEnv(t *testing.T, opts ...AuthOption) *testEnv {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clock := newFakeClock()
	events := &recordingPublisher{}

	nonces := NewNonceManager(store.NewMemoryNonceStore(), challengeTTL, clock.Now)
	sessions := NewSessionIssuer(
		tokenizer.NewJWTTokenizer(signKey, tokenizer.WithClock(clock.Now)),
		store.NewMemoryRevocationStore(),
		sessionTTL,
		clock.Now,
	)

	opts = append([]AuthOption{WithEventPublisher(events), WithAuthClock(clock.Now)}, opts...)
	auth := NewAuthService(nonces, sessions, eth.PersonalSignVerifier{}, testDomain, opts...)

	return &testEnv{
		clock:    clock,
		nonces:   nonces,
		sessions: sessions,
		auth:     auth,
		events:   events,
	}
}

// login runs the full handshake for w and returns the credential.
func (e *testEnv) login(t *testing.T, w wallet) string {
	t.Helper()
	ctx := context.Background()

	issued, err := e.auth.RequestChallenge(ctx, w.address.Hex())
	require.NoError(t, err)

	credential, _, err := e.auth.SubmitProof(ctx, w.address.Hex(), w.sign(t, issued.Message), issued.Message)
	require.NoError(t, err)
	return credential
}
