/**
 * @description
 * Shared in-memory stubs for the service tests: a function-field repository,
 * a capturing notification sink and a counting chain client.
 */

package app

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/store"
)

const (
	addrA = "0x1111111111111111111111111111111111111111"
	addrB = "0x2222222222222222222222222222222222222222"
)

// stubRepo satisfies store.Repository through the embedded interface; tests
// set only the function fields they exercise.
type stubRepo struct {
	store.Repository

	findUserByIDFn            func(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	findUserByHandleFn        func(ctx context.Context, handle string) (*domain.User, error)
	findWalletOwnerFn         func(ctx context.Context, address string) (uuid.UUID, error)
	createTransactionFn       func(ctx context.Context, tx *domain.Transaction) error
	findTransactionByHashFn   func(ctx context.Context, hash string) (*domain.Transaction, error)
	confirmTransactionFn      func(ctx context.Context, hash string, fee string) (bool, error)
	markTransactionFailedFn   func(ctx context.Context, hash string) (bool, error)
	listStalePendingFn        func(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error)
	createPaymentRequestFn    func(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentRequest, error)
	getPaymentRequestByIDFn   func(ctx context.Context, requestID uuid.UUID) (*domain.PaymentRequest, error)
	fulfillPaymentRequestFn   func(ctx context.Context, requestID, requesteeID, settledTxID uuid.UUID) (*domain.PaymentRequest, error)
	declinePaymentRequestFn   func(ctx context.Context, requestID, requesteeID uuid.UUID) (*domain.PaymentRequest, error)
	touchReminderSentAtFn     func(ctx context.Context, requestID uuid.UUID, sentAt time.Time) error
}

func (s *stubRepo) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.findUserByIDFn(ctx, userID)
}

func (s *stubRepo) FindUserByHandle(ctx context.Context, handle string) (*domain.User, error) {
	return s.findUserByHandleFn(ctx, handle)
}

func (s *stubRepo) FindWalletOwner(ctx context.Context, address string) (uuid.UUID, error) {
	return s.findWalletOwnerFn(ctx, address)
}

func (s *stubRepo) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	return s.createTransactionFn(ctx, tx)
}

func (s *stubRepo) FindTransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error) {
	return s.findTransactionByHashFn(ctx, hash)
}

func (s *stubRepo) ConfirmTransactionByHash(ctx context.Context, hash string, fee string) (bool, error) {
	return s.confirmTransactionFn(ctx, hash, fee)
}

func (s *stubRepo) MarkTransactionFailedByHash(ctx context.Context, hash string) (bool, error) {
	return s.markTransactionFailedFn(ctx, hash)
}

func (s *stubRepo) ListStalePendingTransactions(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error) {
	return s.listStalePendingFn(ctx, olderThan, limit)
}

func (s *stubRepo) CreatePaymentRequest(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentRequest, error) {
	return s.createPaymentRequestFn(ctx, req)
}

func (s *stubRepo) GetPaymentRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.PaymentRequest, error) {
	return s.getPaymentRequestByIDFn(ctx, requestID)
}

func (s *stubRepo) FulfillPaymentRequest(ctx context.Context, requestID, requesteeID, settledTxID uuid.UUID) (*domain.PaymentRequest, error) {
	return s.fulfillPaymentRequestFn(ctx, requestID, requesteeID, settledTxID)
}

func (s *stubRepo) DeclinePaymentRequest(ctx context.Context, requestID, requesteeID uuid.UUID) (*domain.PaymentRequest, error) {
	return s.declinePaymentRequestFn(ctx, requestID, requesteeID)
}

func (s *stubRepo) TouchReminderSentAt(ctx context.Context, requestID uuid.UUID, sentAt time.Time) error {
	return s.touchReminderSentAtFn(ctx, requestID, sentAt)
}

// captureSink records every enqueued notification.
type captureSink struct {
	mu   sync.Mutex
	msgs []domain.PushNotification
}

func (c *captureSink) Enqueue(n domain.PushNotification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, n)
	return true
}

func (c *captureSink) all() []domain.PushNotification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.PushNotification, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// chainStub counts every RPC-shaped call so tests can assert which network
// operations ran.
type chainStub struct {
	tokenBal  *big.Int
	gasBal    *big.Int
	nonce     uint64
	fee       *domain.FeeEstimate
	feeErr    error
	submit    *domain.SubmitResult
	submitErr error
	txStatus  map[string]string

	tokenBalanceCalls atomic.Int32
	gasBalanceCalls   atomic.Int32
	nonceCalls        atomic.Int32
	estimateCalls     atomic.Int32
	sendCalls         atomic.Int32
}

func (c *chainStub) TokenBalance(ctx context.Context, addr string) (*big.Int, error) {
	c.tokenBalanceCalls.Add(1)
	return c.tokenBal, nil
}

func (c *chainStub) GasBalance(ctx context.Context, addr string) (*big.Int, error) {
	c.gasBalanceCalls.Add(1)
	return c.gasBal, nil
}

func (c *chainStub) Nonce(ctx context.Context, addr string) (uint64, error) {
	c.nonceCalls.Add(1)
	return c.nonce, nil
}

func (c *chainStub) TransferSkeleton(from, to string, value *big.Int) domain.TransferSkeleton {
	return domain.TransferSkeleton{
		From:  from,
		To:    "0x3333333333333333333333333333333333333333",
		Value: "0x0",
		Data:  "0xa9059cbb" + value.Text(16),
	}
}

func (c *chainStub) EstimateFee(ctx context.Context, sk domain.TransferSkeleton) (*domain.FeeEstimate, error) {
	c.estimateCalls.Add(1)
	if c.feeErr != nil {
		return nil, c.feeErr
	}
	return c.fee, nil
}

func (c *chainStub) SendRawTransactionWithDetailedOutput(ctx context.Context, signedTx string) (*domain.SubmitResult, error) {
	c.sendCalls.Add(1)
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	return c.submit, nil
}

func (c *chainStub) TransactionStatus(ctx context.Context, hash string) (string, error) {
	return c.txStatus[hash], nil
}

func (c *chainStub) ChainID() uint64 { return 300 }

func (c *chainStub) networkCalls() int32 {
	return c.tokenBalanceCalls.Load() + c.gasBalanceCalls.Load() + c.nonceCalls.Load() +
		c.estimateCalls.Load() + c.sendCalls.Load()
}
