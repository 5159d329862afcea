package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveSubscription inserts or updates a subscription. Renewal never
// goes through the update path: the old row is deleted and a fresh
// one inserted, because the provider assigns a new identity.
func (s *Store) SaveSubscription(sub *Subscription) error {
	now := time.Now().UTC()
	sub.UpdatedAt = now

	if sub.ID == "" {
		sub.ID = uuid.New().String()
		sub.CreatedAt = now

		query := `INSERT INTO subscriptions (id, calendar_id, channel_uuid, external_id, resource_id, kind, expiration, is_up_to_date, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := s.conn.Exec(query,
			sub.ID, sub.CalendarID, sub.ChannelUUID, sub.ExternalID, sub.ResourceID, sub.Kind,
			nullableTime(sub.Expiration), sub.IsUpToDate, sub.CreatedAt, sub.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return nil
	}

	query := `UPDATE subscriptions SET calendar_id = ?, channel_uuid = ?, external_id = ?, resource_id = ?, kind = ?,
		expiration = ?, is_up_to_date = ?, updated_at = ?
		WHERE id = ?`
	result, err := s.conn.Exec(query,
		sub.CalendarID, sub.ChannelUUID, sub.ExternalID, sub.ResourceID, sub.Kind,
		nullableTime(sub.Expiration), sub.IsUpToDate, sub.UpdatedAt, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return requireAffected(result)
}

// DeleteSubscription removes a subscription by its ID.
func (s *Store) DeleteSubscription(id string) error {
	result, err := s.conn.Exec(`DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return requireAffected(result)
}

// GetSubscriptionByID returns a subscription by its ID.
func (s *Store) GetSubscriptionByID(id string) (*Subscription, error) {
	query := subscriptionSelect + ` WHERE id = ?`
	return scanSubscription(s.conn.QueryRow(query, id))
}

// GetSubscriptionByCalendarID returns the subscription of a calendar.
func (s *Store) GetSubscriptionByCalendarID(calendarID string) (*Subscription, error) {
	query := subscriptionSelect + ` WHERE calendar_id = ?`
	return scanSubscription(s.conn.QueryRow(query, calendarID))
}

// GetSubscriptionByResourceID correlates an inbound notification back
// to its subscription via the provider-assigned resource identifier.
func (s *Store) GetSubscriptionByResourceID(resourceID string) (*Subscription, error) {
	query := subscriptionSelect + ` WHERE resource_id = ?`
	return scanSubscription(s.conn.QueryRow(query, resourceID))
}

// ListExpiredSubscriptions returns subscriptions whose expiration has
// passed or was never set.
func (s *Store) ListExpiredSubscriptions(now time.Time) ([]*Subscription, error) {
	query := subscriptionSelect + ` WHERE expiration IS NULL OR expiration < ?`
	rows, err := s.conn.Query(query, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query expired subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

// ListStaleSubscriptions returns subscriptions flagged as not up to
// date, meaning their calendar has pending provider changes.
func (s *Store) ListStaleSubscriptions() ([]*Subscription, error) {
	query := subscriptionSelect + ` WHERE is_up_to_date = 0`
	rows, err := s.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale subscriptions: %w", err)
	}
	defer rows.Close()
	return collectSubscriptions(rows)
}

const subscriptionSelect = `SELECT id, calendar_id, channel_uuid, external_id, resource_id, kind, expiration, is_up_to_date, created_at, updated_at FROM subscriptions`

func scanSubscription(row *sql.Row) (*Subscription, error) {
	sub := &Subscription{}
	var kind sql.NullString
	var expiration sql.NullTime
	err := row.Scan(&sub.ID, &sub.CalendarID, &sub.ChannelUUID, &sub.ExternalID, &sub.ResourceID, &kind, &expiration, &sub.IsUpToDate, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	sub.Kind = kind.String
	if expiration.Valid {
		sub.Expiration = &expiration.Time
	}
	return sub, nil
}

func collectSubscriptions(rows *sql.Rows) ([]*Subscription, error) {
	var subs []*Subscription
	for rows.Next() {
		sub := &Subscription{}
		var kind sql.NullString
		var expiration sql.NullTime
		err := rows.Scan(&sub.ID, &sub.CalendarID, &sub.ChannelUUID, &sub.ExternalID, &sub.ResourceID, &kind, &expiration, &sub.IsUpToDate, &sub.CreatedAt, &sub.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		sub.Kind = kind.String
		if expiration.Valid {
			sub.Expiration = &expiration.Time
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}
	return subs, nil
}
