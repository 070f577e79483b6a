/**
 * @description
 * This file contains the core service for the settlement pipeline. The
 * `Service` struct orchestrates transfer construction, broadcast + ledger
 * recording, and the payment request state machine, coordinating between the
 * record store, the chain RPC client and the notification sink.
 *
 * @dependencies
 * - internal/store: record store contract.
 * - pkg/chainclient: satisfied by the JSON-RPC client; stubbed in tests.
 */

package app

import (
	"context"
	"errors"
	"math/big"

	"github.com/google/uuid"

	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/store"
)

// ChainClient is the capability set this service needs from the network RPC
// client. All amounts are integers in the asset's smallest unit.
type ChainClient interface {
	TokenBalance(ctx context.Context, addr string) (*big.Int, error)
	GasBalance(ctx context.Context, addr string) (*big.Int, error)
	Nonce(ctx context.Context, addr string) (uint64, error)
	TransferSkeleton(from, to string, value *big.Int) domain.TransferSkeleton
	EstimateFee(ctx context.Context, sk domain.TransferSkeleton) (*domain.FeeEstimate, error)
	SendRawTransactionWithDetailedOutput(ctx context.Context, signedTx string) (*domain.SubmitResult, error)
	// TransactionStatus resolves a submitted hash against the node's receipt:
	// confirmed, failed, or "" while still unmined.
	TransactionStatus(ctx context.Context, hash string) (string, error)
	ChainID() uint64
}

// NotificationSink accepts push notifications for asynchronous delivery.
// Enqueue reports whether the message was accepted; rejected messages are
// counted, never retried by the caller.
type NotificationSink interface {
	Enqueue(n domain.PushNotification) bool
}

// Service provides the core business logic for settlement operations.
type Service struct {
	repo             store.Repository
	chain            ChainClient
	notifier         NotificationSink
	asset            string
	reminderMinHours int
}

// NewService creates a settlement service instance.
func NewService(repo store.Repository, chain ChainClient, notifier NotificationSink, asset string, reminderMinHours int) *Service {
	if reminderMinHours <= 0 {
		reminderMinHours = DefaultReminderMinHours
	}
	return &Service{
		repo:             repo,
		chain:            chain,
		notifier:         notifier,
		asset:            asset,
		reminderMinHours: reminderMinHours,
	}
}

// ResolveUserID converts an authenticated bearer subject into the internal
// user UUID. Unknown subjects are treated as unauthorized, not as not-found.
func (s *Service) ResolveUserID(ctx context.Context, subject string) (uuid.UUID, error) {
	id, err := s.repo.FindUserIDBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, ErrUnauthorized
		}
		return uuid.Nil, err
	}
	return id, nil
}

// ListTransactions returns the caller's transaction history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	return s.repo.ListTransactionsByUser(ctx, userID, limit, offset)
}
