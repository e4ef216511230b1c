package shop

import (
	"context"
	"fmt"
	"log"

	"github.com/bunnybrand/My-botinok/internal/cryptopay"
	"github.com/bunnybrand/My-botinok/internal/orders"
)

// Outcome is the result of one reconciliation pass. Exactly these four exist:
// the gateway status mapping is exhaustive with no fallthrough ambiguity.
type Outcome int

const (
	// OutcomeUnavailable means the gateway could not be queried or has no
	// record of the invoice; the order was not touched.
	OutcomeUnavailable Outcome = iota
	// OutcomePaid means the gateway reported paid and the order is paid.
	OutcomePaid
	// OutcomeAwaitingPayment means the invoice is still active; not touched.
	OutcomeAwaitingPayment
	// OutcomeInvoiceInvalid means the gateway reported any other status and
	// the order was marked invalid.
	OutcomeInvoiceInvalid
)

// InvoiceFetcher is the gateway surface the reconciler needs.
type InvoiceFetcher interface {
	GetInvoice(ctx context.Context, invoiceID int64) (cryptopay.Invoice, bool)
}

// Reconciler applies the gateway-reported invoice status to the persisted
// order. Pull-based: it runs once per buyer-initiated "I have paid" signal.
type Reconciler struct {
	gateway  InvoiceFetcher
	store    orders.Store
	notifier Notifier
	logf     func(format string, args ...any)
}

// NewReconciler constructs a Reconciler. notifier and logf may be nil.
func NewReconciler(gateway InvoiceFetcher, store orders.Store, notifier Notifier, logf func(format string, args ...any)) *Reconciler {
	if logf == nil {
		logf = log.Printf
	}
	return &Reconciler{
		gateway:  gateway,
		store:    store,
		notifier: notifier,
		logf:     logf,
	}
}

// Reconcile fetches the invoice and maps its status onto the order:
// absent -> OutcomeUnavailable (no state change), paid -> order paid
// (idempotent), active -> OutcomeAwaitingPayment (no state change), anything
// else -> order invalid. Store failures are returned, never swallowed.
func (r *Reconciler) Reconcile(ctx context.Context, orderID string, invoiceID int64) (Outcome, error) {
	inv, ok := r.gateway.GetInvoice(ctx, invoiceID)
	if !ok {
		return OutcomeUnavailable, nil
	}

	switch inv.Status {
	case cryptopay.InvoiceStatusPaid:
		if err := r.store.UpdateStatus(ctx, orderID, orders.StatusPaid); err != nil {
			return OutcomeUnavailable, fmt.Errorf("mark order %s paid: %w", orderID, err)
		}
		r.notifyStatus(ctx, orderID)
		return OutcomePaid, nil
	case cryptopay.InvoiceStatusActive:
		return OutcomeAwaitingPayment, nil
	default:
		if err := r.store.UpdateStatus(ctx, orderID, orders.StatusInvalid); err != nil {
			return OutcomeUnavailable, fmt.Errorf("mark order %s invalid: %w", orderID, err)
		}
		r.logf("order %s: invoice %d reported %q, marked invalid", orderID, invoiceID, inv.Status)
		return OutcomeInvoiceInvalid, nil
	}
}

func (r *Reconciler) notifyStatus(ctx context.Context, orderID string) {
	if r.notifier == nil {
		return
	}
	o, err := r.store.Get(ctx, orderID)
	if err != nil {
		r.logf("load order %s for notification: %v", orderID, err)
		return
	}
	r.notifier.NotifyOrder(o)
}
