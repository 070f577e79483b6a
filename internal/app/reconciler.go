/**
 * @description
 * Webhook reconciler: turns a verified chain-activity event into ledger
 * confirmation and user notifications. The HTTP layer owns signature
 * verification; by the time an event reaches ProcessActivity it is authentic.
 *
 * The reconciler only ever reads and conditionally updates — it never inserts
 * a transaction row — so replayed deliveries of the same event cannot create
 * duplicate ledger mutations.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/afan2g/tacto-backend/internal/domain"
	"github.com/afan2g/tacto-backend/internal/metrics"
	"github.com/afan2g/tacto-backend/internal/store"
)

// Reconciler resolves verified chain activity against the record store.
type Reconciler struct {
	repo         store.Repository
	notifier     NotificationSink
	feeCollector string
	asset        string
}

// NewReconciler creates a reconciler. feeCollector is the network's reserved
// fee-collection address.
func NewReconciler(repo store.Repository, notifier NotificationSink, feeCollector, asset string) *Reconciler {
	return &Reconciler{
		repo:         repo,
		notifier:     notifier,
		feeCollector: feeCollector,
		asset:        asset,
	}
}

// ProcessActivity reconciles one webhook delivery. A nil return means the
// event was handled (including "nothing to do"); errors are for the caller to
// log — the HTTP layer still acknowledges the delivery.
func (r *Reconciler) ProcessActivity(ctx context.Context, evt *domain.ChainActivityEvent) error {
	legs := evt.Event.Activity
	main := r.findMainTransfer(legs)
	if main == nil {
		// Pure gas/system noise; acknowledged without action.
		return nil
	}

	netFee := r.netFee(legs)

	// Resolve both endpoints concurrently: address -> wallet owner.
	var fromID, toID uuid.UUID
	var fromKnown, toKnown bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fromID, fromKnown, err = r.resolveOwner(gctx, main.FromAddress)
		return err
	})
	g.Go(func() error {
		var err error
		toID, toKnown, err = r.resolveOwner(gctx, main.ToAddress)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("resolve transfer endpoints: %w", err)
	}
	if !fromKnown && !toKnown {
		// External-to-external transfer; not relevant to this system.
		return nil
	}

	// Idempotent ledger mutation: pending -> confirmed at most once per hash.
	updated, err := r.repo.ConfirmTransactionByHash(ctx, main.Hash, netFee)
	if err != nil {
		log.Printf("level=error component=reconciler msg=\"confirm by hash failed\" hash=%s err=%v", main.Hash, err)
	} else if updated {
		metrics.TransfersReconciled.Inc()
	}

	amount := strings.TrimSpace(main.Value.String())
	data := map[string]string{
		"hash":    main.Hash,
		"asset":   main.Asset,
		"amount":  amount,
		"net_fee": netFee,
	}

	if toKnown {
		r.notifier.Enqueue(domain.PushNotification{
			UserIDs: []string{toID.String()},
			Title:   "Money received",
			Body:    fmt.Sprintf("You received %s %s from %s", amount, main.Asset, r.counterpart(ctx, fromKnown, fromID, main.FromAddress)),
			Data:    data,
		})
	}
	if fromKnown {
		r.notifier.Enqueue(domain.PushNotification{
			UserIDs: []string{fromID.String()},
			Title:   "Transfer confirmed",
			Body:    fmt.Sprintf("Your transfer of %s %s to %s confirmed (network fee %s ETH)", amount, main.Asset, r.counterpart(ctx, toKnown, toID, main.ToAddress), netFee),
			Data:    data,
		})
	}
	return nil
}

// findMainTransfer picks the user-intended leg: the first whose asset is not
// the native gas token and whose endpoints avoid the fee-collection address.
func (r *Reconciler) findMainTransfer(legs []domain.ChainActivity) *domain.ChainActivity {
	for i := range legs {
		leg := &legs[i]
		if strings.EqualFold(leg.Asset, domain.NativeAsset) {
			continue
		}
		if strings.EqualFold(leg.FromAddress, r.feeCollector) || strings.EqualFold(leg.ToAddress, r.feeCollector) {
			continue
		}
		return leg
	}
	return nil
}

// netFee sums native-asset legs: fee-collector-bound legs add, refunds from
// the fee collector subtract. Exact rational arithmetic keeps the result
// byte-stable for display.
func (r *Reconciler) netFee(legs []domain.ChainActivity) string {
	total := new(big.Rat)
	for _, leg := range legs {
		if !strings.EqualFold(leg.Asset, domain.NativeAsset) {
			continue
		}
		v, ok := new(big.Rat).SetString(leg.Value.String())
		if !ok {
			log.Printf("level=warn component=reconciler msg=\"unparseable native leg value\" value=%q hash=%s", leg.Value.String(), leg.Hash)
			continue
		}
		switch {
		case strings.EqualFold(leg.ToAddress, r.feeCollector):
			total.Add(total, v)
		case strings.EqualFold(leg.FromAddress, r.feeCollector):
			total.Sub(total, v)
		}
	}
	return formatRat(total)
}

func (r *Reconciler) resolveOwner(ctx context.Context, address string) (uuid.UUID, bool, error) {
	id, err := r.repo.FindWalletOwner(ctx, address)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// counterpart renders the other side of a transfer: the handle when the
// address belongs to a known user, the raw address otherwise.
func (r *Reconciler) counterpart(ctx context.Context, known bool, id uuid.UUID, address string) string {
	if known {
		if u, err := r.repo.FindUserByID(ctx, id); err == nil && u.Handle != "" {
			return u.Handle
		}
	}
	return address
}

func formatRat(v *big.Rat) string {
	s := v.FloatString(18)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
