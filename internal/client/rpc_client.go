package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"seedslot/go-backend/internal/adapters/rpc"
	"seedslot/go-backend/internal/address"
	"seedslot/go-backend/internal/ledger"
	"seedslot/go-backend/pkg/models"
)

const defaultRPCTimeout = 15 * time.Second

// RPCClient talks to a ledgerd JSON-RPC endpoint. Error objects come back as
// *rpc.RemoteError, which unwraps to the matching ledger or program sentinel.
type RPCClient struct {
	endpoint string
	token    string
	http     *http.Client
	nextID   atomic.Uint64
}

// NewRPCClient accepts host:port or a full URL. A bare host:port gets /rpc appended.
func NewRPCClient(addr, token string) *RPCClient {
	endpoint := strings.TrimSpace(addr)
	if endpoint == "" {
		endpoint = rpc.DefaultRPCAddr
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	if !strings.HasSuffix(endpoint, "/rpc") {
		endpoint = strings.TrimSuffix(endpoint, "/") + "/rpc"
	}
	return &RPCClient{
		endpoint: endpoint,
		token:    strings.TrimSpace(token),
		http:     &http.Client{Timeout: defaultRPCTimeout},
	}
}

type remoteErrorData struct {
	Kind string   `json:"kind"`
	TxID string   `json:"tx_id"`
	Logs []string `json:"logs"`
}

type remoteResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int              `json:"code"`
		Message string           `json:"message"`
		Data    *remoteErrorData `json:"data"`
	} `json:"error"`
}

// Call invokes method with named params and decodes the result into out.
func (c *RPCClient) Call(ctx context.Context, method string, params, out any) (retErr error) {
	if params == nil {
		params = struct{}{}
	}
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      c.nextID.Add(1),
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(rpc.TokenHeader, c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && retErr == nil {
			retErr = closeErr
		}
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusTooManyRequests {
		return fmt.Errorf("rpc status %d", resp.StatusCode)
	}
	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return err
	}
	if decoded.Error != nil {
		remote := &rpc.RemoteError{Code: decoded.Error.Code, Message: decoded.Error.Message}
		if d := decoded.Error.Data; d != nil {
			remote.Kind, remote.TxID, remote.Logs = d.Kind, d.TxID, d.Logs
		}
		return remote
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}

func (c *RPCClient) Submit(ctx context.Context, stx ledger.SignedTransaction) (ledger.Receipt, error) {
	var receipt models.Receipt
	err := c.Call(ctx, "submit_transaction", stx, &receipt)
	if err != nil {
		var remote *rpc.RemoteError
		if errors.As(err, &remote) {
			return ledger.Receipt{TxID: remote.TxID, Status: ledger.StatusFailed, Error: remote.Message, Logs: remote.Logs}, err
		}
		return ledger.Receipt{}, err
	}
	return fromReceipt(receipt), nil
}

func (c *RPCClient) Receipt(ctx context.Context, txID string) (models.Receipt, error) {
	var out models.Receipt
	err := c.Call(ctx, "get_receipt", map[string]string{"tx_id": txID}, &out)
	return out, err
}

func (c *RPCClient) Airdrop(ctx context.Context, to address.Address, lamports uint64) (models.Balance, error) {
	var out models.Balance
	err := c.Call(ctx, "airdrop", map[string]any{"address": to, "lamports": lamports}, &out)
	return out, err
}

func (c *RPCClient) Balance(ctx context.Context, addr address.Address) (models.Balance, error) {
	var out models.Balance
	err := c.Call(ctx, "get_balance", map[string]any{"address": addr}, &out)
	return out, err
}

func (c *RPCClient) Account(ctx context.Context, addr address.Address) (models.Account, error) {
	var out models.Account
	err := c.Call(ctx, "get_account", map[string]any{"address": addr}, &out)
	return out, err
}

func (c *RPCClient) DeriveAddress(ctx context.Context, params map[string]any) (models.DerivedAddress, error) {
	var out models.DerivedAddress
	err := c.Call(ctx, "derive_address", params, &out)
	return out, err
}

func (c *RPCClient) FetchJournalEntry(ctx context.Context, owner address.Address, title string) (models.JournalEntry, error) {
	var out models.JournalEntry
	err := c.Call(ctx, "fetch_journal_entry", map[string]any{"owner": owner, "title": title}, &out)
	return out, err
}

// ListJournalEntries lists every entry when owner is zero.
func (c *RPCClient) ListJournalEntries(ctx context.Context, owner address.Address) ([]models.JournalEntry, error) {
	var out []models.JournalEntry
	err := c.Call(ctx, "list_journal_entries", map[string]any{"owner": owner}, &out)
	return out, err
}

func (c *RPCClient) FetchPoll(ctx context.Context, pollID uint64) (models.Poll, error) {
	var out models.Poll
	err := c.Call(ctx, "fetch_poll", map[string]any{"poll_id": pollID}, &out)
	return out, err
}

func (c *RPCClient) ListPolls(ctx context.Context) ([]models.Poll, error) {
	var out []models.Poll
	err := c.Call(ctx, "list_polls", nil, &out)
	return out, err
}

func (c *RPCClient) FetchCandidate(ctx context.Context, pollID uint64, name string) (models.Candidate, error) {
	var out models.Candidate
	err := c.Call(ctx, "fetch_candidate", map[string]any{"poll_id": pollID, "candidate_name": name}, &out)
	return out, err
}

func (c *RPCClient) ListCandidates(ctx context.Context, pollID uint64) ([]models.Candidate, error) {
	var out []models.Candidate
	err := c.Call(ctx, "list_candidates", map[string]any{"poll_id": pollID}, &out)
	return out, err
}

func (c *RPCClient) Health(ctx context.Context) (models.Health, error) {
	var out models.Health
	err := c.Call(ctx, "health_check", nil, &out)
	return out, err
}

func (c *RPCClient) Metrics(ctx context.Context) (models.MetricsSnapshot, error) {
	var out models.MetricsSnapshot
	err := c.Call(ctx, "metrics", nil, &out)
	return out, err
}

func fromReceipt(r models.Receipt) ledger.Receipt {
	return ledger.Receipt{
		TxID:        r.TxID,
		Program:     r.Program,
		Instruction: r.Instruction,
		Status:      r.Status,
		Error:       r.Error,
		Logs:        r.Logs,
		ProcessedAt: r.ProcessedAt,
	}
}
