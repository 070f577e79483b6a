/**
 * @description
 * Backstop reconciliation for pending ledger rows whose webhook never arrived:
 * re-check each stale row against the node's receipt and settle its status.
 * The webhook remains the primary confirmation path; this sweep only catches
 * deliveries that were lost.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/metrics"
)

// ReconcileStaleTransactions settles pending transactions older than maxAge by
// querying the node directly. Returns how many rows changed state. Per-row
// errors are logged and skipped so one bad hash cannot stall the sweep.
func (s *Service) ReconcileStaleTransactions(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	stale, err := s.repo.ListStalePendingTransactions(ctx, time.Now().UTC().Add(-maxAge), limit)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, tx := range stale {
		status, err := s.chain.TransactionStatus(ctx, tx.Hash)
		if err != nil {
			log.Printf("level=warn component=stale_sweep msg=\"receipt lookup failed\" hash=%s err=%v", tx.Hash, err)
			continue
		}
		switch status {
		case domain.TxStatusConfirmed:
			// The webhook that would have carried the fee was lost; keep the
			// recorded fee rather than overwriting it.
			updated, err := s.repo.ConfirmTransactionByHash(ctx, tx.Hash, tx.Fee)
			if err != nil {
				log.Printf("level=error component=stale_sweep msg=\"confirm failed\" hash=%s err=%v", tx.Hash, err)
				continue
			}
			if updated {
				metrics.TransfersReconciled.Inc()
				settled++
			}
		case domain.TxStatusFailed:
			updated, err := s.repo.MarkTransactionFailedByHash(ctx, tx.Hash)
			if err != nil {
				log.Printf("level=error component=stale_sweep msg=\"mark failed errored\" hash=%s err=%v", tx.Hash, err)
				continue
			}
			if updated {
				log.Printf("level=warn component=stale_sweep msg=\"transaction failed on chain\" hash=%s", tx.Hash)
				settled++
			}
		default:
			// Still unmined; leave it for the next pass.
		}
	}
	return settled, nil
}
