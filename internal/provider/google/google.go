// Package google adapts the Google Calendar and Admin Directory APIs
// to the provider interfaces consumed by the sync engine.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Tobur/calendar-module/internal/provider"
)

// directoryCustomer selects the authenticated account's own domain in
// the Admin Directory API.
const directoryCustomer = "my_customer"

// Client implements provider.Events and provider.Directory on top of
// the Google SDK. Every call builds its service from the access token
// it was handed; there is no per-client credential state.
type Client struct{}

// NewClient creates a Google API adapter.
func NewClient() *Client {
	return &Client{}
}

func tokenOption(accessToken string) option.ClientOption {
	return option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
}

// ListEvents fetches one page of events for a calendar. The query's
// sync cursor and page cursor are passed through untouched.
func (c *Client) ListEvents(ctx context.Context, accessToken, calendarID string, q provider.EventQuery) (*provider.EventPage, error) {
	svc, err := calendar.NewService(ctx, tokenOption(accessToken))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar service: %w", err)
	}

	call := svc.Events.List(calendarID).SingleEvents(true).Context(ctx)
	if q.PageToken != "" {
		call = call.PageToken(q.PageToken)
	}
	if q.SyncToken != "" {
		call = call.SyncToken(q.SyncToken)
	}
	if !q.TimeMin.IsZero() {
		call = call.TimeMin(q.TimeMin.Format(time.RFC3339))
	}
	if !q.TimeMax.IsZero() {
		call = call.TimeMax(q.TimeMax.Format(time.RFC3339))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, mapError(err)
	}

	page := &provider.EventPage{
		NextPageToken: resp.NextPageToken,
		NextSyncToken: resp.NextSyncToken,
	}
	for _, item := range resp.Items {
		page.Items = append(page.Items, convertEvent(item))
	}
	return page, nil
}

// InsertEvent creates an event on the provider calendar and returns
// the created resource.
func (c *Client) InsertEvent(ctx context.Context, accessToken, calendarID string, body provider.EventBody) (*provider.EventItem, error) {
	svc, err := calendar.NewService(ctx, tokenOption(accessToken))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar service: %w", err)
	}

	ev := &calendar.Event{
		Summary:     body.Summary,
		Description: body.Description,
		Location:    body.Location,
		Start:       &calendar.EventDateTime{DateTime: body.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: body.End.Format(time.RFC3339)},
	}
	for _, a := range body.Attendees {
		ev.Attendees = append(ev.Attendees, &calendar.EventAttendee{
			Email:    a.Email,
			Resource: a.Resource,
		})
	}

	created, err := svc.Events.Insert(calendarID, ev).SendNotifications(true).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	item := convertEvent(created)
	return &item, nil
}

// Watch opens a push-notification channel on a calendar's event stream.
func (c *Client) Watch(ctx context.Context, accessToken, calendarID, channelID, callbackURL string) (*provider.WatchInfo, error) {
	svc, err := calendar.NewService(ctx, tokenOption(accessToken))
	if err != nil {
		return nil, fmt.Errorf("failed to build calendar service: %w", err)
	}

	channel := &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: callbackURL,
	}
	resp, err := svc.Events.Watch(calendarID, channel).Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}

	return &provider.WatchInfo{
		ExternalID:   resp.Id,
		ResourceID:   resp.ResourceId,
		Kind:         resp.Kind,
		ExpirationMs: resp.Expiration,
	}, nil
}

// ListResources fetches one page of the customer's bookable resources.
func (c *Client) ListResources(ctx context.Context, accessToken, pageToken string) (*provider.ResourcePage, error) {
	svc, err := admin.NewService(ctx, tokenOption(accessToken))
	if err != nil {
		return nil, fmt.Errorf("failed to build directory service: %w", err)
	}

	call := svc.Resources.Calendars.List(directoryCustomer).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, mapError(err)
	}

	page := &provider.ResourcePage{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		page.Items = append(page.Items, provider.ResourceItem{
			ResourceID:            item.ResourceId,
			ResourceName:          item.ResourceName,
			GeneratedResourceName: item.GeneratedResourceName,
			ResourceEmail:         item.ResourceEmail,
			ResourceType:          item.ResourceType,
			ResourceCategory:      item.ResourceCategory,
			Capacity:              int(item.Capacity),
			BuildingID:            item.BuildingId,
			FloorName:             item.FloorName,
			Etag:                  item.Etags,
		})
	}
	return page, nil
}

func convertEvent(ev *calendar.Event) provider.EventItem {
	item := provider.EventItem{
		ID:          ev.Id,
		Summary:     ev.Summary,
		Description: ev.Description,
		Status:      ev.Status,
		Etag:        ev.Etag,
		ICalUID:     ev.ICalUID,
		Location:    ev.Location,
		Start:       parseEventTime(ev.Start),
		End:         parseEventTime(ev.End),
	}
	if ev.Creator != nil {
		item.Creator = ev.Creator.Email
	}
	if ev.Organizer != nil {
		item.Organizer = ev.Organizer.Email
	}
	seq := ev.Sequence
	item.Sequence = &seq
	for _, a := range ev.Attendees {
		item.Attendees = append(item.Attendees, provider.Attendee{
			Email:          a.Email,
			ResponseStatus: a.ResponseStatus,
			Resource:       a.Resource,
		})
	}
	return item
}

// parseEventTime extracts the concrete dateTime of a nested provider
// date structure. All-day events carry only a date and yield nil.
func parseEventTime(edt *calendar.EventDateTime) *time.Time {
	if edt == nil || edt.DateTime == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, edt.DateTime)
	if err != nil {
		return nil
	}
	return &t
}

// mapError translates SDK errors into the provider taxonomy.
func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", provider.ErrUnauthorized, err)
		case http.StatusGone:
			return fmt.Errorf("%w: %w", provider.ErrSyncTokenExpired, err)
		}
	}
	return err
}

// TokenRefresher implements provider.TokenRefresher with the Google
// OAuth2 endpoint.
type TokenRefresher struct {
	config *oauth2.Config
}

// NewTokenRefresher creates a refresher for the given OAuth2 client.
func NewTokenRefresher(clientID, clientSecret, redirectURL string) *TokenRefresher {
	return &TokenRefresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     googleoauth.Endpoint,
		},
	}
}

// Refresh exchanges the refresh token for a new access token pair.
func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (*provider.Token, error) {
	src := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", provider.ErrUnauthorized, err)
	}
	return &provider.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}
