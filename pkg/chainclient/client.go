/**
 * @description
 * JSON-RPC client for the L2 node. It exposes exactly the capability set the
 * service needs: token/gas balances, nonce, a local transfer-skeleton builder,
 * zks_estimateFee, and detailed-output raw transaction submission.
 *
 * @notes
 * - All quantities cross this boundary as integers in the asset's smallest
 *   unit (hex-encoded on the wire). Decimal formatting happens at the API
 *   presentation layer, never here.
 * - Every call carries the caller's context; a timeout fails closed with a
 *   retryable error and is never treated as success.
 */

package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"

	"github.com/afan2g/tacto-backend/internal/domain"
)

// transferSelector is the 4-byte id of ERC-20 transfer(address,uint256).
const transferSelector = "0xa9059cbb"

// Client talks JSON-RPC to a single node endpoint.
type Client struct {
	rc      *resty.Client
	chainID uint64
	token   common.Address
	reqID   atomic.Int64
}

// New creates a chain client for the given RPC endpoint, chain id and
// settlement token contract.
func New(rpcURL string, chainID uint64, tokenAddress string) *Client {
	rc := resty.New().
		SetBaseURL(rpcURL).
		SetTimeout(15 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Client{
		rc:      rc,
		chainID: chainID,
		token:   common.HexToAddress(tokenAddress),
	}
}

// ChainID returns the configured chain id.
func (c *Client) ChainID() uint64 { return c.chainID }

// TokenAddress returns the settlement token contract address.
func (c *Client) TokenAddress() string { return c.token.Hex() }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// RPCError preserves the node's rejection reason for callers that need to
// surface it verbatim.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	var rpcResp rpcResponse
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.reqID.Add(1)}).
		SetResult(&rpcResp).
		Post("")
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s: node returned HTTP %d", method, resp.StatusCode())
	}
	if rpcResp.Error != nil {
		return &RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) callHexBig(ctx context.Context, method string, params []any) (*big.Int, error) {
	var raw string
	if err := c.call(ctx, method, params, &raw); err != nil {
		return nil, err
	}
	v, err := hexutil.DecodeBig(raw)
	if err != nil {
		// balanceOf returns a 32-byte word, which hexutil rejects for its
		// leading zeros. Fall back to plain big.Int parsing.
		n, ok := new(big.Int).SetString(strings.TrimPrefix(raw, "0x"), 16)
		if !ok {
			return nil, fmt.Errorf("%s: bad quantity %q", method, raw)
		}
		return n, nil
	}
	return v, nil
}

// TokenBalance returns the settlement-token balance of addr in smallest units
// via an eth_call to balanceOf(address).
func (c *Client) TokenBalance(ctx context.Context, addr string) (*big.Int, error) {
	data := "0x70a08231" + padAddress(addr)
	callObj := map[string]string{"to": c.token.Hex(), "data": data}
	return c.callHexBig(ctx, "eth_call", []any{callObj, "latest"})
}

// GasBalance returns the native-asset balance of addr in wei.
func (c *Client) GasBalance(ctx context.Context, addr string) (*big.Int, error) {
	return c.callHexBig(ctx, "eth_getBalance", []any{common.HexToAddress(addr).Hex(), "latest"})
}

// Nonce returns the account's current transaction count.
func (c *Client) Nonce(ctx context.Context, addr string) (uint64, error) {
	v, err := c.callHexBig(ctx, "eth_getTransactionCount", []any{common.HexToAddress(addr).Hex(), "latest"})
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// TransferSkeleton builds the call description of a token transfer. The token
// movement lives entirely in calldata; top-level value stays zero.
func (c *Client) TransferSkeleton(from, to string, value *big.Int) domain.TransferSkeleton {
	return domain.TransferSkeleton{
		From:  common.HexToAddress(from).Hex(),
		To:    c.token.Hex(),
		Value: "0x0",
		Data:  transferSelector + padAddress(to) + padUint(value),
	}
}

// EstimateFee asks the node for a fee estimate of the given skeleton.
func (c *Client) EstimateFee(ctx context.Context, sk domain.TransferSkeleton) (*domain.FeeEstimate, error) {
	var fee domain.FeeEstimate
	if err := c.call(ctx, "zks_estimateFee", []any{sk}, &fee); err != nil {
		return nil, err
	}
	return &fee, nil
}

// TransactionStatus resolves a submitted hash against the node's receipt.
// Returns domain.TxStatusConfirmed, domain.TxStatusFailed, or "" while the
// transaction is still unmined.
func (c *Client) TransactionStatus(ctx context.Context, hash string) (string, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{hash}, &raw); err != nil {
		return "", err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var receipt struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return "", fmt.Errorf("eth_getTransactionReceipt: decode receipt: %w", err)
	}
	if receipt.Status == "0x1" {
		return domain.TxStatusConfirmed, nil
	}
	return domain.TxStatusFailed, nil
}

// SendRawTransactionWithDetailedOutput submits a signed transaction blob and
// returns the node's detailed submission output.
func (c *Client) SendRawTransactionWithDetailedOutput(ctx context.Context, signedTx string) (*domain.SubmitResult, error) {
	if !strings.HasPrefix(signedTx, "0x") {
		signedTx = "0x" + signedTx
	}
	var out domain.SubmitResult
	if err := c.call(ctx, "zks_sendRawTransactionWithDetailedOutput", []any{signedTx}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// padAddress left-pads an address to a 32-byte ABI word (without 0x).
func padAddress(addr string) string {
	return fmt.Sprintf("%064s", strings.TrimPrefix(strings.ToLower(common.HexToAddress(addr).Hex()), "0x"))
}

// padUint left-pads an unsigned integer to a 32-byte ABI word (without 0x).
func padUint(v *big.Int) string {
	return fmt.Sprintf("%064s", v.Text(16))
}
