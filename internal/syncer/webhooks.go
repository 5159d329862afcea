package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Tobur/calendar-module/internal/provider"
	"github.com/Tobur/calendar-module/internal/store"
)

// WebhookManager owns the lifecycle of push-notification subscriptions:
// create when missing, replace on renewal, never mutate identity fields
// in place (the provider issues a fresh identifier every time).
type WebhookManager struct {
	store       *store.Store
	events      provider.Events
	guard       *Guard
	callbackURL string
}

// NewWebhookManager creates a webhook lifecycle manager. callbackURL
// is where the provider delivers push notifications.
func NewWebhookManager(st *store.Store, events provider.Events, guard *Guard, callbackURL string) *WebhookManager {
	return &WebhookManager{store: st, events: events, guard: guard, callbackURL: callbackURL}
}

// Subscribe opens a push-notification channel for the calendar's event
// stream. It is an idempotent no-op when a subscription already exists.
func (m *WebhookManager) Subscribe(ctx context.Context, cal *store.ResourceCalendar, cred *store.Credential) error {
	_, err := m.store.GetSubscriptionByCalendarID(cal.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to look up subscription for calendar %s: %w", cal.ResourceID, err)
	}

	channelID := uuid.New().String()
	var info *provider.WatchInfo
	err = m.guard.Call(ctx, cred, func(ctx context.Context, accessToken string) error {
		w, err := m.events.Watch(ctx, accessToken, cal.ResourceEmail, channelID, m.callbackURL)
		if err != nil {
			return err
		}
		info = w
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to watch calendar %s: %w", cal.ResourceID, err)
	}

	expiration := time.UnixMilli(info.ExpirationMs).UTC()
	sub := &store.Subscription{
		CalendarID:  cal.ID,
		ChannelUUID: channelID,
		ExternalID:  info.ExternalID,
		ResourceID:  info.ResourceID,
		Kind:        info.Kind,
		Expiration:  &expiration,
		IsUpToDate:  false,
	}
	if err := sub.Validate(); err != nil {
		return err
	}
	if err := m.store.SaveSubscription(sub); err != nil {
		return fmt.Errorf("failed to save subscription for calendar %s: %w", cal.ResourceID, err)
	}
	return nil
}

// Renew replaces an expiring subscription. The provider cannot extend
// a channel in place, so the old record is deleted and a fresh
// subscribe issued; the calendar is never left with two subscriptions.
func (m *WebhookManager) Renew(ctx context.Context, sub *store.Subscription) error {
	cal, err := m.store.GetResourceCalendarByID(sub.CalendarID)
	if err != nil {
		return fmt.Errorf("failed to load calendar for subscription %s: %w", sub.ID, err)
	}
	cred, err := m.store.GetCredentialByID(cal.CredentialID)
	if err != nil {
		return fmt.Errorf("failed to load credential for calendar %s: %w", cal.ResourceID, err)
	}

	if err := m.store.DeleteSubscription(sub.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete expiring subscription %s: %w", sub.ID, err)
	}

	return m.Subscribe(ctx, cal, cred)
}

// SubscribeAll ensures every resource calendar has an active
// subscription. Failures are logged per calendar; the pass continues.
func (m *WebhookManager) SubscribeAll(ctx context.Context) error {
	calendars, err := m.store.ListResourceCalendars()
	if err != nil {
		return err
	}

	for _, cal := range calendars {
		cred, err := m.store.GetCredentialByID(cal.CredentialID)
		if err != nil {
			log.Printf("Failed to load credential for calendar %s: %v", cal.ResourceID, err)
			continue
		}
		if err := m.Subscribe(ctx, cal, cred); err != nil {
			log.Printf("Failed to subscribe calendar %s: %v", cal.ResourceID, err)
		}
	}
	return nil
}
