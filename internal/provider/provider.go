// Package provider defines the narrow calendar-provider interface the
// sync engine depends on. Adapters translate a concrete SDK into these
// request/response shapes; no SDK type crosses this boundary.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnauthorized marks an authorization failure. The credential
	// guard reacts to it with a single refresh-and-retry cycle.
	ErrUnauthorized = errors.New("provider rejected the access token")

	// ErrSyncTokenExpired marks a sync cursor the provider no longer
	// accepts. The engine falls back to a full download.
	ErrSyncTokenExpired = errors.New("sync token expired")
)

// IsAuthError reports whether err is an authorization failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsSyncTokenExpired reports whether err means the stored sync cursor
// was rejected as expired or invalid.
func IsSyncTokenExpired(err error) bool {
	return errors.Is(err, ErrSyncTokenExpired)
}

// Token is a refreshed access/refresh token pair. RefreshToken may be
// empty when the provider does not rotate it.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// TokenRefresher exchanges a refresh token for a fresh token pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Attendee is one entry of an event's attendee list.
type Attendee struct {
	Email          string
	ResponseStatus string
	Resource       bool
}

// EventItem is one event as reported by the provider. Start and End
// are nil when the provider sent no concrete dateTime (all-day slots).
type EventItem struct {
	ID          string
	Summary     string
	Description string
	Status      string
	Etag        string
	ICalUID     string
	Location    string
	Creator     string
	Organizer   string
	Sequence    *int64
	Start       *time.Time
	End         *time.Time
	Attendees   []Attendee
}

// EventPage is one page of a paginated event listing. NextPageToken
// continues the current listing; NextSyncToken is the cursor for the
// next incremental sync and only appears on the final page or when the
// provider decides to hand one out mid-run.
type EventPage struct {
	Items         []EventItem
	NextPageToken string
	NextSyncToken string
}

// EventQuery parameterizes an event listing call. PageToken and
// SyncToken are distinct cursors and must never be swapped.
type EventQuery struct {
	PageToken string
	SyncToken string
	TimeMin   time.Time
	TimeMax   time.Time
}

// EventBody is the payload for creating an event on the provider.
type EventBody struct {
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Attendees   []Attendee
}

// WatchInfo describes a push-notification channel the provider opened.
type WatchInfo struct {
	ExternalID   string
	ResourceID   string
	Kind         string
	ExpirationMs int64
}

// Events is the provider surface the event sync engine and the webhook
// manager consume. Every call carries an explicit bearer token.
type Events interface {
	ListEvents(ctx context.Context, accessToken, calendarID string, q EventQuery) (*EventPage, error)
	InsertEvent(ctx context.Context, accessToken, calendarID string, body EventBody) (*EventItem, error)
	Watch(ctx context.Context, accessToken, calendarID, channelID, callbackURL string) (*WatchInfo, error)
}

// ResourceItem is one bookable resource from the directory listing.
type ResourceItem struct {
	ResourceID            string
	ResourceName          string
	GeneratedResourceName string
	ResourceEmail         string
	ResourceType          string
	ResourceCategory      string
	Capacity              int
	BuildingID            string
	FloorName             string
	Etag                  string
}

// ResourcePage is one page of the resource directory listing.
type ResourcePage struct {
	Items         []ResourceItem
	NextPageToken string
}

// Directory lists the bookable resources of the credential owner.
type Directory interface {
	ListResources(ctx context.Context, accessToken, pageToken string) (*ResourcePage, error)
}
