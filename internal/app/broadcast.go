/**
 * @description
 * Broadcast & record writer: submits a client-signed transaction and records
 * the resulting ledger row. Submission and insert are not transactional with
 * each other; once the network accepts the blob there is no rollback, so
 * bookkeeping failures after that point are reported as secondary outcomes
 * and left to webhook reconciliation.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/metrics"
	"github.com/afan2g/tacto-backend/internal/store"
)

// BroadcastResult reports a submission outcome. Hash is always set on
// success. RecordWriteFailed and RequestErr are secondary: the transfer is on
// chain regardless, and the caller should re-fetch the authoritative record.
type BroadcastResult struct {
	Hash              string
	TransactionID     uuid.UUID
	RecordWriteFailed bool
	Request           *domain.PaymentRequest
	RequestErr        error
}

// Broadcast submits signedTx for callerID and writes the pending ledger row
// keyed by the network-assigned hash. When info.RequestID is set, the matching
// payment request is advanced to fulfilled as part of the same logical
// operation.
func (s *Service) Broadcast(ctx context.Context, callerID uuid.UUID, signedTx string, info domain.BroadcastTxInfo) (*BroadcastResult, error) {
	if strings.TrimSpace(signedTx) == "" {
		return nil, fmt.Errorf("%w: signed transaction is required", ErrInvalidRequest)
	}
	if !common.IsHexAddress(info.FromAddress) || !common.IsHexAddress(info.ToAddress) {
		return nil, fmt.Errorf("%w: transfer addresses must be valid", ErrInvalidRequest)
	}
	amount, err := domain.ParseAmountMicro(info.Amount)
	if err != nil || !domain.MicroFits(amount) {
		return nil, fmt.Errorf("%w: bad amount %q", ErrInvalidRequest, info.Amount)
	}

	// Preconditions on the linked request are checked before the point of no
	// return so a doomed fulfillment fails while nothing external has changed.
	if info.RequestID != nil {
		if err := s.checkFulfillPreconditions(ctx, *info.RequestID, callerID, info.ToUserID); err != nil {
			return nil, err
		}
	}

	out, err := s.chain.SendRawTransactionWithDetailedOutput(ctx, signedTx)
	if err != nil {
		metrics.BroadcastsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %s", ErrBroadcastRejected, err.Error())
	}
	metrics.BroadcastsTotal.WithLabelValues("accepted").Inc()

	result := &BroadcastResult{Hash: out.TransactionHash}

	tx := &domain.Transaction{
		FromUserID:  callerID,
		ToUserID:    info.ToUserID,
		FromAddress: info.FromAddress,
		ToAddress:   info.ToAddress,
		Amount:      amount.Int64(),
		MethodID:    info.MethodID,
		RequestID:   info.RequestID,
		Hash:        out.TransactionHash,
		Status:      domain.TxStatusPending,
		Fee:         "0",
		Asset:       s.asset,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			// Replayed submission of an already-recorded transfer.
			if existing, ferr := s.repo.FindTransactionByHash(ctx, out.TransactionHash); ferr == nil {
				result.TransactionID = existing.ID
				return result, nil
			}
		}
		// Funds have moved: report success with a secondary failure and let
		// the webhook reconciler surface the transfer later.
		log.Printf("level=error component=broadcast msg=\"record write failed after submission\" hash=%s user_id=%s err=%v",
			out.TransactionHash, callerID, err)
		metrics.RecordWriteFailures.Inc()
		result.RecordWriteFailed = true
		return result, nil
	}
	result.TransactionID = tx.ID

	if info.RequestID != nil {
		req, ferr := s.fulfillRequest(ctx, *info.RequestID, callerID, tx.ID)
		if ferr != nil {
			// Also secondary: the transfer settled even if the request row
			// was won by a concurrent fulfillment.
			log.Printf("level=warn component=broadcast msg=\"request fulfillment not applied\" request_id=%s hash=%s err=%v",
				*info.RequestID, out.TransactionHash, ferr)
			result.RequestErr = ferr
		} else {
			result.Request = req
		}
	}
	return result, nil
}

// checkFulfillPreconditions verifies the fulfillment preconditions: the request exists,
// is pending, is owed by the caller, and is owed to the payee named in txInfo.
func (s *Service) checkFulfillPreconditions(ctx context.Context, requestID, callerID uuid.UUID, toUserID *uuid.UUID) error {
	req, err := s.repo.GetPaymentRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: unknown payment request", ErrInvalidRequest)
		}
		return err
	}
	if req.RequesteeID != callerID {
		return ErrUnauthorized
	}
	if toUserID == nil || *toUserID != req.RequesterID {
		return fmt.Errorf("%w: transfer recipient does not match the requester", ErrInvalidRequest)
	}
	switch req.Status {
	case domain.RequestStatusPending:
		return nil
	case domain.RequestStatusFulfilled:
		return ErrAlreadyFulfilled
	default:
		return &InvalidStateError{Status: req.Status}
	}
}
