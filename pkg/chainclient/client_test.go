package chainclient

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const (
	tokenAddr = "0x4444444444444444444444444444444444444444"
	userAddr  = "0x1111111111111111111111111111111111111111"
	destAddr  = "0x2222222222222222222222222222222222222222"
)

// rpcServer answers every JSON-RPC call from the method -> raw result table
// and records what it was asked.
func rpcServer(t *testing.T, results map[string]string) (*httptest.Server, *[]rpcRequest) {
	t.Helper()
	var seen []rpcRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad rpc request: %v", err)
		}
		seen = append(seen, req)
		w.Header().Set("Content-Type", "application/json")
		result, ok := results[req.Method]
		if !ok {
			w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"method not found"}}`))
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestTransferSkeletonEncodesCalldata(t *testing.T) {
	c := New("http://unused", 300, tokenAddr)

	sk := c.TransferSkeleton(userAddr, destAddr, big.NewInt(10_000_000))

	if sk.Value != "0x0" {
		t.Errorf("value = %q, want 0x0; the token amount lives in calldata", sk.Value)
	}
	if !strings.EqualFold(sk.To, tokenAddr) {
		t.Errorf("to = %q, want the token contract %q", sk.To, tokenAddr)
	}
	wantData := "0xa9059cbb" +
		"0000000000000000000000002222222222222222222222222222222222222222" +
		"0000000000000000000000000000000000000000000000000000000000989680"
	if sk.Data != wantData {
		t.Errorf("calldata mismatch:\n got %s\nwant %s", sk.Data, wantData)
	}
}

func TestTokenBalanceParsesFullWidthWord(t *testing.T) {
	// balanceOf returns a zero-padded 32-byte word.
	srv, seen := rpcServer(t, map[string]string{
		"eth_call": `"0x0000000000000000000000000000000000000000000000000000000002faf080"`,
	})
	c := New(srv.URL, 300, tokenAddr)

	bal, err := c.TokenBalance(context.Background(), userAddr)
	if err != nil {
		t.Fatalf("TokenBalance failed: %v", err)
	}
	if bal.Int64() != 50_000_000 {
		t.Errorf("balance = %s, want 50000000", bal)
	}
	if len(*seen) != 1 || (*seen)[0].Method != "eth_call" {
		t.Fatalf("expected one eth_call, got %+v", *seen)
	}
}

func TestNonce(t *testing.T) {
	srv, _ := rpcServer(t, map[string]string{
		"eth_getTransactionCount": `"0x7"`,
	})
	c := New(srv.URL, 300, tokenAddr)

	nonce, err := c.Nonce(context.Background(), userAddr)
	if err != nil {
		t.Fatalf("Nonce failed: %v", err)
	}
	if nonce != 7 {
		t.Errorf("nonce = %d, want 7", nonce)
	}
}

func TestEstimateFee(t *testing.T) {
	srv, seen := rpcServer(t, map[string]string{
		"zks_estimateFee": `{"gas_limit":"0x5208","gas_per_pubdata_limit":"0xc350","max_fee_per_gas":"0xee6b280","max_priority_fee_per_gas":"0x0"}`,
	})
	c := New(srv.URL, 300, tokenAddr)

	fee, err := c.EstimateFee(context.Background(), c.TransferSkeleton(userAddr, destAddr, big.NewInt(1)))
	if err != nil {
		t.Fatalf("EstimateFee failed: %v", err)
	}
	if fee.GasLimit != "0x5208" || fee.GasPerPubdataLimit != "0xc350" {
		t.Errorf("fee fields not decoded: %+v", fee)
	}
	if (*seen)[0].Method != "zks_estimateFee" {
		t.Errorf("method = %q, want zks_estimateFee", (*seen)[0].Method)
	}
}

func TestSendRawTransactionPrefixesBlob(t *testing.T) {
	srv, seen := rpcServer(t, map[string]string{
		"zks_sendRawTransactionWithDetailedOutput": `{"transactionHash":"0xabc"}`,
	})
	c := New(srv.URL, 300, tokenAddr)

	out, err := c.SendRawTransactionWithDetailedOutput(context.Background(), "71f8...")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if out.TransactionHash != "0xabc" {
		t.Errorf("hash = %q, want 0xabc", out.TransactionHash)
	}
	blob, ok := (*seen)[0].Params[0].(string)
	if !ok || !strings.HasPrefix(blob, "0x") {
		t.Errorf("submitted blob %v must carry the 0x prefix", (*seen)[0].Params[0])
	}
}

func TestTransactionStatus(t *testing.T) {
	cases := []struct {
		name   string
		result string
		want   string
	}{
		{name: "success receipt", result: `{"status":"0x1","transactionHash":"0xabc"}`, want: "confirmed"},
		{name: "failure receipt", result: `{"status":"0x0","transactionHash":"0xabc"}`, want: "failed"},
		{name: "unmined", result: `null`, want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := rpcServer(t, map[string]string{"eth_getTransactionReceipt": tc.result})
			c := New(srv.URL, 300, tokenAddr)

			got, err := c.TransactionStatus(context.Background(), "0xabc")
			if err != nil {
				t.Fatalf("TransactionStatus failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("status = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRPCErrorPreservesNodeReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":3,"message":"insufficient funds for gas"}}`))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, 300, tokenAddr)

	_, err := c.SendRawTransactionWithDetailedOutput(context.Background(), "0x71f8")
	if err == nil {
		t.Fatal("expected the node error to propagate")
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != 3 || !strings.Contains(rpcErr.Message, "insufficient funds") {
		t.Errorf("node reason not preserved: %v", rpcErr)
	}
}
