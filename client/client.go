// Package client talks to the wallet authentication API on behalf of a wallet.
//
// Connect performs the handshake: it asks the Signer for an account, fetches a
// challenge, has the Signer sign it and exchanges the signature for a session
// credential. The credential is held by the Client and sent with every
// authenticated call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/layer-3/walletauth/ports"
	api "github.com/layer-3/walletauth/transport/http"
)

var (
	// ErrNotConnected is returned by authenticated calls made before Connect.
	ErrNotConnected = errors.New("client is not connected")
	// ErrNoAccounts is returned when the signer exposes no account.
	ErrNoAccounts = errors.New("signer has no accounts")
)

// APIError is a non-2xx response of the API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client is safe for concurrent use
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     ports.Signer

	mu         sync.RWMutex
	credential string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCredential restores a credential obtained earlier.
func WithCredential(credential string) Option {
	return func(c *Client) {
		c.credential = credential
	}
}

// New creates a client for the API at baseURL
func New(baseURL string, signer ports.Signer, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		signer:     signer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Credential returns the current session credential, empty when not connected
func (c *Client) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential
}

// Connect authenticates the first account of the signer
func (c *Client) Connect(ctx context.Context) (*api.CredentialResponse, error) {
	accounts, err := c.signer.RequestAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	account := accounts[0]

	var nonce api.NonceResponse
	query := url.Values{"address": {account.Hex()}}
	if err := c.do(ctx, http.MethodGet, "/auth/nonce?"+query.Encode(), nil, "", &nonce); err != nil {
		return nil, fmt.Errorf("failed to request challenge: %w", err)
	}

	sig, err := c.signer.SignMessage(ctx, account, nonce.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}

	req := api.VerifyRequest{
		Address:   account.Hex(),
		Signature: hexutil.Encode(sig),
		Message:   nonce.Message,
	}
	var resp api.CredentialResponse
	if err := c.do(ctx, http.MethodPost, "/auth/verify", req, "", &resp); err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}

	c.mu.Lock()
	c.credential = resp.Credential
	c.mu.Unlock()

	return &resp, nil
}

// Balances returns the balances of the connected account
func (c *Client) Balances(ctx context.Context) (*api.BalancesResponse, error) {
	credential, err := c.requireCredential()
	if err != nil {
		return nil, err
	}

	var resp api.BalancesResponse
	if err := c.do(ctx, http.MethodGet, "/balances", nil, credential, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Me returns the session of the connected account
func (c *Client) Me(ctx context.Context) (*api.MeResponse, error) {
	credential, err := c.requireCredential()
	if err != nil {
		return nil, err
	}

	var resp api.MeResponse
	if err := c.do(ctx, http.MethodGet, "/me", nil, credential, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the credential and forgets it
func (c *Client) Logout(ctx context.Context) error {
	credential, err := c.requireCredential()
	if err != nil {
		return err
	}

	if err := c.do(ctx, http.MethodPost, "/auth/logout", nil, credential, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.credential = ""
	c.mu.Unlock()
	return nil
}

func (c *Client) requireCredential() (string, error) {
	credential := c.Credential()
	if credential == "" {
		return "", ErrNotConnected
	}
	return credential, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, credential string, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
