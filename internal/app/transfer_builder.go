/**
 * @description
 * Unsigned transfer construction: validates the request, gathers chain state
 * concurrently, runs the advisory balance check, and merges the node's fee
 * estimate into a descriptor ready for client-side signing. Pure read+compute;
 * no side effects.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/afan2g/tacto-backend/internal/domain"
)

// BuildTransfer assembles a complete unsigned transfer of `amount` (decimal
// string) from -> to, ready for the signer. Calling it twice yields two valid,
// independently signable descriptors.
func (s *Service) BuildTransfer(ctx context.Context, from, to, amount string) (*domain.UnsignedTransferDescriptor, error) {
	if !common.IsHexAddress(from) || !common.IsHexAddress(to) {
		return nil, fmt.Errorf("%w: from and to must be valid addresses", ErrInvalidRequest)
	}
	value, err := domain.ParseAmountMicro(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var (
		tokenBal *big.Int
		gasBal   *big.Int
		nonce    uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tokenBal, err = s.chain.TokenBalance(gctx, from)
		return err
	})
	g.Go(func() error {
		var err error
		gasBal, err = s.chain.GasBalance(gctx, from)
		return err
	})
	g.Go(func() error {
		var err error
		nonce, err = s.chain.Nonce(gctx, from)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch chain state: %w", err)
	}

	// Advisory fast-fail before asking the user to sign. The network
	// submission is the authoritative check.
	if tokenBal.Cmp(value) < 0 {
		return nil, ErrInsufficientFunds
	}
	if gasBal.Sign() == 0 {
		log.Printf("level=warn component=transfer_builder msg=\"sender has no gas balance\" from=%s", from)
	}

	skeleton := s.chain.TransferSkeleton(from, to, value)
	fee, err := s.chain.EstimateFee(ctx, skeleton)
	if err != nil {
		return nil, fmt.Errorf("estimate fee: %w", err)
	}

	return &domain.UnsignedTransferDescriptor{
		Type:                 domain.EIP712TxType,
		From:                 skeleton.From,
		To:                   skeleton.To,
		Value:                "0x0",
		Data:                 skeleton.Data,
		Nonce:                nonce,
		GasLimit:             fee.GasLimit,
		MaxFeePerGas:         fee.MaxFeePerGas,
		MaxPriorityFeePerGas: fee.MaxPriorityFeePerGas,
		ChainID:              s.chain.ChainID(),
		CustomData: domain.EIP712Meta{
			GasPerPubdata: fee.GasPerPubdataLimit,
			FactoryDeps:   []string{},
		},
	}, nil
}
