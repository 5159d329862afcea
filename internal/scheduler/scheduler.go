package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Tobur/calendar-module/internal/store"
	"github.com/Tobur/calendar-module/internal/syncer"
)

// Intervals configures the job cadences.
type Intervals struct {
	Renew      time.Duration // expired-subscription renewal sweep
	StaleCheck time.Duration // stale-subscription resync sweep
	Daily      time.Duration // full download, discovery, subscribe-all, credential refresh
}

// DefaultIntervals returns the standard cadences: minutely webhook
// maintenance, daily bulk jobs.
func DefaultIntervals() Intervals {
	return Intervals{
		Renew:      time.Minute,
		StaleCheck: time.Minute,
		Daily:      24 * time.Hour,
	}
}

// Scheduler drives the time-triggered jobs: webhook maintenance on the
// sweep intervals, bulk downloads and credential refresh daily. Jobs do
// not retry on failure; the next tick absorbs transient errors.
type Scheduler struct {
	store     *store.Store
	engine    *syncer.Engine
	discovery *syncer.Discovery
	webhooks  *syncer.WebhookManager
	guard     *syncer.Guard
	intervals Intervals

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler.
func New(st *store.Store, engine *syncer.Engine, discovery *syncer.Discovery, webhooks *syncer.WebhookManager, guard *syncer.Guard, intervals Intervals) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:     st,
		engine:    engine,
		discovery: discovery,
		webhooks:  webhooks,
		guard:     guard,
		intervals: intervals,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches all job loops. Safe to call once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.runEvery(s.intervals.Renew, s.RenewExpiredSubscriptions)
	s.runEvery(s.intervals.StaleCheck, s.SyncStaleCalendars)
	s.runEvery(s.intervals.Daily, s.DownloadAllEvents)
	s.runEvery(s.intervals.Daily, s.DiscoverAllResources)
	s.runEvery(s.intervals.Daily, s.SubscribeAll)
	s.runEvery(s.intervals.Daily, s.RefreshExpiredCredentials)

	log.Println("Scheduler started")
}

// Stop cancels all job loops and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// runEvery runs job on every tick until the scheduler stops. Jobs run
// independently; there is no inter-job locking beyond the engine's
// per-calendar single-flight.
func (s *Scheduler) runEvery(interval time.Duration, job func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if err := job(s.ctx); err != nil {
					log.Printf("Scheduled job failed: %v", err)
				}
			}
		}
	}()
}

// RenewExpiredSubscriptions replaces every subscription whose
// expiration has passed or was never recorded.
func (s *Scheduler) RenewExpiredSubscriptions(ctx context.Context) error {
	subs, err := s.store.ListExpiredSubscriptions(time.Now().UTC())
	if err != nil {
		return err
	}

	for _, sub := range subs {
		if err := s.webhooks.Renew(ctx, sub); err != nil {
			log.Printf("Failed to renew subscription %s: %v", sub.ID, err)
		}
	}
	return nil
}

// SyncStaleCalendars incrementally syncs every calendar whose
// subscription is flagged stale and restores the freshness flag.
// This is the safety net behind the notification dispatcher: dropped
// or queue-overflowed notifications are picked up here.
func (s *Scheduler) SyncStaleCalendars(ctx context.Context) error {
	subs, err := s.store.ListStaleSubscriptions()
	if err != nil {
		return err
	}

	for _, sub := range subs {
		cal, err := s.store.GetResourceCalendarByID(sub.CalendarID)
		if err != nil {
			log.Printf("Failed to load calendar for subscription %s: %v", sub.ID, err)
			continue
		}
		if err := s.engine.Sync(ctx, cal); err != nil {
			if errors.Is(err, syncer.ErrSyncInProgress) {
				continue
			}
			log.Printf("Failed to sync calendar %s: %v", cal.ResourceID, err)
			continue
		}
		sub.IsUpToDate = true
		if err := s.store.SaveSubscription(sub); err != nil {
			log.Printf("Failed to mark subscription %s up to date: %v", sub.ID, err)
		}
	}
	return nil
}

// DownloadAllEvents runs a full event download for every resource
// calendar.
func (s *Scheduler) DownloadAllEvents(ctx context.Context) error {
	calendars, err := s.store.ListResourceCalendars()
	if err != nil {
		return err
	}

	for _, cal := range calendars {
		if err := s.engine.Download(ctx, cal); err != nil {
			if errors.Is(err, syncer.ErrSyncInProgress) {
				continue
			}
			log.Printf("Failed to download events for calendar %s: %v", cal.ResourceID, err)
		}
	}
	return nil
}

// DiscoverAllResources runs resource discovery for every credential.
func (s *Scheduler) DiscoverAllResources(ctx context.Context) error {
	creds, err := s.store.ListCredentials()
	if err != nil {
		return err
	}

	for _, cred := range creds {
		if err := s.discovery.Discover(ctx, cred); err != nil {
			log.Printf("Failed to discover resources for %s: %v", cred.ExternalEmail, err)
		}
	}
	return nil
}

// SubscribeAll ensures every resource calendar has a subscription.
func (s *Scheduler) SubscribeAll(ctx context.Context) error {
	return s.webhooks.SubscribeAll(ctx)
}

// RefreshExpiredCredentials refreshes ahead of use every credential
// whose expiry has passed or was never recorded.
func (s *Scheduler) RefreshExpiredCredentials(ctx context.Context) error {
	creds, err := s.store.ListExpiredCredentials(time.Now().UTC())
	if err != nil {
		return err
	}

	for _, cred := range creds {
		if err := s.guard.Refresh(ctx, cred); err != nil {
			log.Printf("Failed to refresh credential %s: %v", cred.ExternalEmail, err)
		}
	}
	return nil
}
