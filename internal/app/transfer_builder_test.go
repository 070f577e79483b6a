package app

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/afan2g/tacto-backend/internal/domain"
)

func TestBuildTransferRejectsBadInputBeforeAnyNetworkCall(t *testing.T) {
	cases := []struct {
		name   string
		from   string
		to     string
		amount string
	}{
		{name: "bad from address", from: "not-an-address", to: addrB, amount: "10"},
		{name: "bad to address", from: addrA, to: "0x123", amount: "10"},
		{name: "zero amount", from: addrA, to: addrB, amount: "0"},
		{name: "negative amount", from: addrA, to: addrB, amount: "-5"},
		{name: "too many decimals", from: addrA, to: addrB, amount: "1.2345678"},
		{name: "not a number", from: addrA, to: addrB, amount: "ten"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := &chainStub{}
			svc := NewService(&stubRepo{}, chain, &captureSink{}, "USDC", 12)

			_, err := svc.BuildTransfer(context.Background(), tc.from, tc.to, tc.amount)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			if n := chain.networkCalls(); n != 0 {
				t.Errorf("expected zero network calls for invalid input, got %d", n)
			}
		})
	}
}

func TestBuildTransferInsufficientFundsSkipsFeeEstimation(t *testing.T) {
	chain := &chainStub{
		tokenBal: big.NewInt(1_000_000), // 1 USDC
		gasBal:   big.NewInt(1e15),
		nonce:    4,
	}
	svc := NewService(&stubRepo{}, chain, &captureSink{}, "USDC", 12)

	_, err := svc.BuildTransfer(context.Background(), addrA, addrB, "10")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if n := chain.estimateCalls.Load(); n != 0 {
		t.Errorf("expected no fee estimation after balance check failed, got %d calls", n)
	}
}

func TestBuildTransferAssemblesDescriptor(t *testing.T) {
	chain := &chainStub{
		tokenBal: big.NewInt(50_000_000), // 50 USDC
		gasBal:   big.NewInt(1e15),
		nonce:    7,
		fee: &domain.FeeEstimate{
			GasLimit:             "0x5208",
			GasPerPubdataLimit:   "0xc350",
			MaxFeePerGas:         "0xee6b280",
			MaxPriorityFeePerGas: "0x0",
		},
	}
	svc := NewService(&stubRepo{}, chain, &captureSink{}, "USDC", 12)

	desc, err := svc.BuildTransfer(context.Background(), addrA, addrB, "12.5")
	if err != nil {
		t.Fatalf("BuildTransfer failed: %v", err)
	}

	if desc.Type != domain.EIP712TxType {
		t.Errorf("type = %q, want %q", desc.Type, domain.EIP712TxType)
	}
	if desc.Value != "0x0" {
		t.Errorf("value = %q, want 0x0; the token movement belongs in calldata", desc.Value)
	}
	if desc.Nonce != 7 {
		t.Errorf("nonce = %d, want 7", desc.Nonce)
	}
	if desc.ChainID != 300 {
		t.Errorf("chain id = %d, want 300", desc.ChainID)
	}
	if desc.GasLimit != "0x5208" || desc.MaxFeePerGas != "0xee6b280" {
		t.Errorf("fee fields not carried over: gasLimit=%q maxFeePerGas=%q", desc.GasLimit, desc.MaxFeePerGas)
	}
	if desc.CustomData.GasPerPubdata != "0xc350" {
		t.Errorf("gasPerPubdata = %q, want 0xc350", desc.CustomData.GasPerPubdata)
	}
	if desc.CustomData.FactoryDeps == nil || len(desc.CustomData.FactoryDeps) != 0 {
		t.Errorf("factoryDeps must be present and empty, got %#v", desc.CustomData.FactoryDeps)
	}
	// The stub encodes the smallest-unit value into the calldata verbatim:
	// 12.5 tokens is 12,500,000 micro-units, 0xbebc20.
	if desc.Data != "0xa9059cbbbebc20" {
		t.Errorf("calldata = %q, want the micro-unit value 0xbebc20 encoded", desc.Data)
	}
}

func TestBuildTransferIsRepeatable(t *testing.T) {
	chain := &chainStub{
		tokenBal: big.NewInt(50_000_000),
		gasBal:   big.NewInt(1e15),
		nonce:    9,
		fee:      &domain.FeeEstimate{GasLimit: "0x5208"},
	}
	svc := NewService(&stubRepo{}, chain, &captureSink{}, "USDC", 12)

	first, err := svc.BuildTransfer(context.Background(), addrA, addrB, "1")
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	second, err := svc.BuildTransfer(context.Background(), addrA, addrB, "1")
	if err != nil {
		t.Fatalf("second build failed: %v", err)
	}
	if first.Nonce != second.Nonce || first.Data != second.Data {
		t.Error("building twice must yield equivalent descriptors")
	}
}
