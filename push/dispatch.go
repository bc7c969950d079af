package push

import (
	"context"
	"fmt"
	"log"

	"github.com/notekeep/notekeep-backend/models"
)

// registry is the slice of the database the dispatcher needs. It only
// reads subscriptions and requests flag flips; rows are never created
// or deleted here.
type registry interface {
	ActiveSubscriptions(ownerID int64) ([]models.Subscription, error)
	QuarantineSubscriptions(ids []int64) (int64, error)
}

// deliverer matches Sender.Deliver. Used to mock deliveries during testing.
type deliverer func(context.Context, models.Subscription, models.Message) Outcome

// DispatchError wraps a failure to reach the registry itself. Individual
// delivery failures never become errors; only systemic ones do.
type DispatchError struct {
	Op  string
	Err error
}

func (e DispatchError) Error() string {
	return fmt.Sprintf("dispatch: could not %s: %v", e.Op, e.Err)
}

func (e DispatchError) Unwrap() error { return e.Err }

// Number of concurrent deliveries within one batch.
const poolSize = 8

// Dispatcher fans one message out to every relevant active subscription,
// tallies the outcomes, and quarantines endpoints that failed
// permanently. Deliveries within a batch run concurrently and
// independently; the quarantine update is applied once, after the whole
// batch completes. Two batches may overlap safely because the registry's
// quarantine is a set-based update.
type Dispatcher struct {
	Registry registry
	Sender   *Sender
	// deliverOverride replaces Sender.Deliver during testing.
	deliverOverride deliverer
}

func (d *Dispatcher) deliver(ctx context.Context, sub models.Subscription, msg models.Message) Outcome {
	if d.deliverOverride != nil {
		return d.deliverOverride(ctx, sub, msg)
	}
	return d.Sender.Deliver(ctx, sub, msg)
}

// SendToAll delivers msg to every active subscription across all owners.
// Returns the delivered and failed counts.
func (d *Dispatcher) SendToAll(ctx context.Context, msg models.Message) (int, int, error) {
	return d.sendBatch(ctx, 0, msg)
}

// SendToOwner delivers msg to every active subscription of one owner.
func (d *Dispatcher) SendToOwner(ctx context.Context, ownerID int64, msg models.Message) (int, int, error) {
	return d.sendBatch(ctx, ownerID, msg)
}

type delivery struct {
	id      int64
	outcome Outcome
}

func (d *Dispatcher) sendBatch(ctx context.Context, ownerID int64, msg models.Message) (int, int, error) {
	subs, err := d.Registry.ActiveSubscriptions(ownerID)
	if err != nil {
		return 0, 0, DispatchError{Op: "load subscriptions", Err: err}
	}
	if len(subs) == 0 {
		return 0, 0, nil
	}

	work := make(chan models.Subscription)
	results := make(chan delivery)

	go func() {
		for _, sub := range subs {
			work <- sub
		}
		close(work)
	}()

	done := make(chan struct{})
	for i := 0; i < poolSize; i++ {
		go func() {
			for sub := range work {
				results <- delivery{id: sub.ID, outcome: d.deliver(ctx, sub, msg)}
			}
			done <- struct{}{}
		}()
	}

	go func() {
		// Close the results channel when all the worker goroutines have finished.
		for i := 0; i < poolSize; i++ {
			<-done
		}
		close(results)
	}()

	sent, failed := 0, 0
	quarantine := []int64{}
	for r := range results {
		switch r.outcome {
		case Delivered:
			sent++
		case PermanentFailure:
			failed++
			quarantine = append(quarantine, r.id)
		default:
			failed++
		}
	}

	// One bulk update per batch, only after every delivery has finished.
	if len(quarantine) > 0 {
		count, err := d.Registry.QuarantineSubscriptions(quarantine)
		if err != nil {
			return sent, failed, DispatchError{Op: "quarantine subscriptions", Err: err}
		}
		log.Printf("Marked %d subscriptions as inactive", count)
	}
	log.Printf("Push notification sent: %d successful, %d failed", sent, failed)
	return sent, failed, nil
}
