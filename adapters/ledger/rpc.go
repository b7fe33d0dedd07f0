// Package ledger talks JSON-RPC to the external chain node. Every call runs
// under a hard deadline and every failure mode degrades to the documented
// unknown/default result; no transport error crosses this boundary.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/custodia/ports"
)

const (
	// CallTimeout is the per-call ceiling on every node query.
	CallTimeout = 10 * time.Second

	// DefaultFeeLamports is the conservative per-signature fee used whenever
	// the live estimate cannot be fetched.
	DefaultFeeLamports = 5000
)

// RPCClient implements ports.LedgerGateway against a JSON-RPC 2.0 node
// endpoint.
type RPCClient struct {
	url  string
	http *http.Client
	log  zerolog.Logger
}

// NewRPCClient creates a gateway for the given node URL.
func NewRPCClient(url string, log zerolog.Logger) *RPCClient {
	return &RPCClient{
		url:  url,
		http: &http.Client{Timeout: CallTimeout},
		log:  log,
	}
}

var _ ports.LedgerGateway = (*RPCClient)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// call performs one JSON-RPC round trip and unmarshals the result field into
// out. Non-200 responses and missing result fields are errors like any other
// transport failure; callers translate them into their degraded result.
func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s: unexpected status %d", method, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if envelope.Result == nil {
		return fmt.Errorf("call %s: response missing result", method)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Balance returns the address balance in lamports, or ok=false when the node
// could not answer.
func (c *RPCClient) Balance(ctx context.Context, address string) (uint64, bool) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{address}, &result); err != nil {
		c.log.Warn().Err(err).Str("address", address).Msg("balance lookup failed")
		return 0, false
	}
	return result.Value, true
}

// EstimateFee returns the live per-signature fee when the node reports one,
// and DefaultFeeLamports otherwise. It never returns an unknown.
func (c *RPCClient) EstimateFee(ctx context.Context) uint64 {
	var result struct {
		Value struct {
			FeeCalculator struct {
				LamportsPerSignature uint64 `json:"lamportsPerSignature"`
			} `json:"feeCalculator"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getRecentBlockhash", nil, &result); err != nil {
		c.log.Warn().Err(err).Msg("fee estimate failed, using default")
		return DefaultFeeLamports
	}
	if result.Value.FeeCalculator.LamportsPerSignature == 0 {
		return DefaultFeeLamports
	}
	return result.Value.FeeCalculator.LamportsPerSignature
}

// RecentBlockhash returns the latest blockhash, or ok=false on failure.
func (c *RPCClient) RecentBlockhash(ctx context.Context) (string, bool) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getRecentBlockhash", nil, &result); err != nil {
		c.log.Warn().Err(err).Msg("blockhash lookup failed")
		return "", false
	}
	if result.Value.Blockhash == "" {
		return "", false
	}
	return result.Value.Blockhash, true
}

// TransactionStatus looks up the confirmation state of a signature. The
// zero-value TxStatus (not confirmed, nothing known) is the answer for every
// failure, telling the caller to re-poll later.
func (c *RPCClient) TransactionStatus(ctx context.Context, signature string) ports.TxStatus {
	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Slot               uint64          `json:"slot"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	params := []any{[]string{signature}, map[string]bool{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		c.log.Warn().Err(err).Str("signature", signature).Msg("status lookup failed")
		return ports.TxStatus{}
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return ports.TxStatus{}
	}

	entry := result.Value[0]
	status := ports.TxStatus{
		Confirmed: entry.ConfirmationStatus == "finalized",
	}
	if entry.Slot > 0 {
		slot := entry.Slot
		status.BlockHeight = &slot
	}
	if len(entry.Err) > 0 && string(entry.Err) != "null" {
		status.Err = string(entry.Err)
	}
	return status
}
