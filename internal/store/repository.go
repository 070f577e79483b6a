/**
 * @description
 * This file defines the `Repository` interface: the contract for every data
 * access operation the service performs. Business logic depends on this
 * interface, not on PostgreSQL, which keeps the state machine testable with
 * in-memory stubs.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/afan2g/tacto-backend/internal/domain"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateTransaction is returned when a transaction hash is already recorded.
	ErrDuplicateTransaction = errors.New("transaction hash already recorded")
	// ErrRequestNotPending is returned when a conditional state transition
	// finds the payment request outside the pending state.
	ErrRequestNotPending = errors.New("payment request is not pending")
)

// Repository defines the set of methods for interacting with the record store.
type Repository interface {
	// Users and wallets.
	FindUserIDBySubject(ctx context.Context, subject string) (uuid.UUID, error)
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	FindUserByHandle(ctx context.Context, handle string) (*domain.User, error)
	// FindWalletOwner resolves a chain address to the owning user id. A miss
	// is ErrNotFound, not an error condition for callers.
	FindWalletOwner(ctx context.Context, address string) (uuid.UUID, error)

	// Transactions. Rows are only ever created by a successful broadcast and
	// only ever mutated by reconciliation.
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByHash(ctx context.Context, hash string) (*domain.Transaction, error)
	// ConfirmTransactionByHash moves pending -> confirmed and records the net
	// fee. It reports whether a row actually changed so replayed webhook
	// deliveries can be observed as no-ops.
	ConfirmTransactionByHash(ctx context.Context, hash string, fee string) (bool, error)
	MarkTransactionFailedByHash(ctx context.Context, hash string) (bool, error)
	ListTransactionsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	// ListStalePendingTransactions returns pending rows whose webhook never
	// arrived, oldest first, for the reconciliation sweep.
	ListStalePendingTransactions(ctx context.Context, olderThan time.Time, limit int) ([]domain.Transaction, error)

	// Payment requests. All transitions out of pending are conditional
	// updates keyed on the current state.
	CreatePaymentRequest(ctx context.Context, req *domain.PaymentRequest) (*domain.PaymentRequest, error)
	GetPaymentRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.PaymentRequest, error)
	ListPaymentRequestsByRequester(ctx context.Context, requesterID uuid.UUID, opts domain.PaymentRequestListOptions) ([]domain.PaymentRequest, error)
	ListIncomingPaymentRequests(ctx context.Context, requesteeID uuid.UUID, opts domain.PaymentRequestListOptions) ([]domain.PaymentRequest, error)
	FulfillPaymentRequest(ctx context.Context, requestID, requesteeID, settledTxID uuid.UUID) (*domain.PaymentRequest, error)
	DeclinePaymentRequest(ctx context.Context, requestID, requesteeID uuid.UUID) (*domain.PaymentRequest, error)
	TouchReminderSentAt(ctx context.Context, requestID uuid.UUID, sentAt time.Time) error
	ExpirePaymentRequests(ctx context.Context, olderThan time.Time) (int64, error)
}
