package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Tobur/calendar-module/internal/store"
)

const dispatchQueueSize = 64

// Dispatcher decouples inbound push-notification receipts from the
// resync work they trigger. Receipt marks the subscription stale,
// persists it and enqueues the resync; a listener goroutine does the
// actual sync so the HTTP handler returns immediately.
type Dispatcher struct {
	store  *store.Store
	engine *Engine
	queue  chan string // subscription IDs

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(st *store.Store, engine *Engine) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:  st,
		engine: engine,
		queue:  make(chan string, dispatchQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the listener goroutine. Safe to call once.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	d.wg.Add(1)
	go d.listen()
}

// Stop shuts the listener down and waits for in-flight work.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}

// Dispatch handles an inbound notification correlated by the provider
// resource identifier. Unknown identifiers are dropped silently: the
// channel may belong to a subscription already replaced. The stale
// flag is persisted before enqueueing, so even a full queue only
// delays the resync until the next stale sweep.
func (d *Dispatcher) Dispatch(resourceID string) error {
	sub, err := d.store.GetSubscriptionByResourceID(resourceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up subscription for resource %s: %w", resourceID, err)
	}

	sub.IsUpToDate = false
	if err := d.store.SaveSubscription(sub); err != nil {
		return fmt.Errorf("failed to mark subscription %s stale: %w", sub.ID, err)
	}

	select {
	case d.queue <- sub.ID:
	default:
		log.Printf("Dispatch queue full, resync of subscription %s deferred to stale sweep", sub.ID)
	}
	return nil
}

func (d *Dispatcher) listen() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case subID := <-d.queue:
			d.resync(subID)
		}
	}
}

// resync runs the incremental sync for the subscription's calendar and
// restores the freshness flag. Failures are only logged; the receipt
// that triggered the work has long been answered.
func (d *Dispatcher) resync(subID string) {
	sub, err := d.store.GetSubscriptionByID(subID)
	if err != nil {
		// Renewal may have replaced the subscription in the meantime.
		log.Printf("Subscription %s gone before resync: %v", subID, err)
		return
	}
	cal, err := d.store.GetResourceCalendarByID(sub.CalendarID)
	if err != nil {
		log.Printf("Failed to load calendar for subscription %s: %v", subID, err)
		return
	}

	if err := d.engine.Sync(d.ctx, cal); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			// The stale flag stays down, so the sweep retries later.
			log.Printf("Calendar %s busy, resync deferred", cal.ResourceID)
			return
		}
		log.Printf("Resync of calendar %s failed: %v", cal.ResourceID, err)
		return
	}

	sub.IsUpToDate = true
	if err := d.store.SaveSubscription(sub); err != nil {
		log.Printf("Failed to mark subscription %s up to date: %v", subID, err)
	}
}
