// Package chain provides the wallet and smart-contract abstraction used by
// the reward engine. All calls are best-effort: the engine treats any
// rejection as "unverified" rather than fatal.
package chain

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// Wallet describes a connected external wallet.
type Wallet struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
	Network string  `json:"network"`
}

// WithdrawalResult is returned by ProcessWithdrawal.
type WithdrawalResult struct {
	Success bool   `json:"success"`
	TxRef   string `json:"tx_ref"`
}

// Client is the contract consumed by the reward engine. Implementations must
// be safe for concurrent use.
type Client interface {
	Connect(ctx context.Context) (Wallet, error)
	SignMessage(ctx context.Context, message string) (string, error)
	TrackActivity(ctx context.Context, userID, kind string, metadata map[string]any) error
	DistributeRewards(ctx context.Context, userID string, amount float64, reason string) error
	ProcessWithdrawal(ctx context.Context, userID string, amount float64, address string) (WithdrawalResult, error)
}

// Simulator is a deterministic local Client used when no RPC endpoint is
// configured. Signatures are content hashes and withdrawals always settle.
type Simulator struct {
	network string

	mu   sync.Mutex
	rand *rand.Rand
}

var _ Client = (*Simulator)(nil)

// NewSimulator creates a simulator for the named network.
func NewSimulator(network string) *Simulator {
	if network == "" {
		network = "devnet"
	}
	return &Simulator{
		network: network,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Simulator) Connect(context.Context) (Wallet, error) {
	return Wallet{
		Address: "sim_" + s.token(8),
		Balance: 1.0,
		Network: s.network,
	}, nil
}

func (s *Simulator) SignMessage(_ context.Context, message string) (string, error) {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:]), nil
}

func (s *Simulator) TrackActivity(context.Context, string, string, map[string]any) error {
	return nil
}

func (s *Simulator) DistributeRewards(context.Context, string, float64, string) error {
	return nil
}

func (s *Simulator) ProcessWithdrawal(_ context.Context, _ string, _ float64, address string) (WithdrawalResult, error) {
	if address == "" {
		return WithdrawalResult{}, fmt.Errorf("withdrawal address required")
	}
	return WithdrawalResult{
		Success: true,
		TxRef:   fmt.Sprintf("tx_%d_%s", time.Now().UnixNano(), s.token(10)),
	}, nil
}

func (s *Simulator) token(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = alphabet[s.rand.Intn(len(alphabet))]
	}
	return string(buf)
}

// RPCClient talks JSON-RPC to an external contract gateway.
type RPCClient struct {
	rpcURL     string
	network    string
	httpClient *http.Client
}

var _ Client = (*RPCClient)(nil)

// RPCConfig holds RPC client configuration.
type RPCConfig struct {
	RPCURL  string
	Network string
	Timeout time.Duration
}

// NewRPCClient creates a client for the configured endpoint.
func NewRPCClient(cfg RPCConfig) (*RPCClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RPCClient{
		rpcURL:     cfg.RPCURL,
		network:    cfg.Network,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any) (gjson.Result, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("read response: %w", err)
	}

	parsed := gjson.ParseBytes(respBody)
	if rpcErr := parsed.Get("error"); rpcErr.Exists() {
		return gjson.Result{}, fmt.Errorf("rpc error %s: %s", rpcErr.Get("code").String(), rpcErr.Get("message").String())
	}
	return parsed.Get("result"), nil
}

func (c *RPCClient) Connect(ctx context.Context) (Wallet, error) {
	result, err := c.call(ctx, "wallet_connect", []any{c.network})
	if err != nil {
		return Wallet{}, err
	}
	return Wallet{
		Address: result.Get("address").String(),
		Balance: result.Get("balance").Float(),
		Network: c.network,
	}, nil
}

func (c *RPCClient) SignMessage(ctx context.Context, message string) (string, error) {
	result, err := c.call(ctx, "wallet_signMessage", []any{message})
	if err != nil {
		return "", err
	}
	return result.Get("signature").String(), nil
}

func (c *RPCClient) TrackActivity(ctx context.Context, userID, kind string, metadata map[string]any) error {
	_, err := c.call(ctx, "contract_trackActivity", []any{userID, kind, metadata})
	return err
}

func (c *RPCClient) DistributeRewards(ctx context.Context, userID string, amount float64, reason string) error {
	_, err := c.call(ctx, "contract_distributeRewards", []any{userID, amount, reason})
	return err
}

func (c *RPCClient) ProcessWithdrawal(ctx context.Context, userID string, amount float64, address string) (WithdrawalResult, error) {
	result, err := c.call(ctx, "contract_processWithdrawal", []any{userID, amount, address})
	if err != nil {
		return WithdrawalResult{}, err
	}
	return WithdrawalResult{
		Success: result.Get("success").Bool(),
		TxRef:   result.Get("tx_ref").String(),
	}, nil
}
