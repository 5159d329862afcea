package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Tobur/calendar-module/internal/provider"
	"github.com/Tobur/calendar-module/internal/store"
)

var (
	// ErrSyncInProgress is returned when another sync already holds the
	// calendar's single-flight lock. Callers skip and retry on the next
	// trigger.
	ErrSyncInProgress = errors.New("sync already running for this calendar")

	// ErrPageLimit is returned when a listing keeps producing
	// continuation cursors past the configured bound.
	ErrPageLimit = errors.New("page limit exceeded")
)

// Engine downloads and incrementally syncs the events of one resource
// calendar into the local store.
type Engine struct {
	store    *store.Store
	events   provider.Events
	guard    *Guard
	window   time.Duration // listing window for full downloads
	maxPages int           // 0 means unbounded

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-calendar single-flight
}

// NewEngine creates an event sync engine. window bounds the time range
// of full downloads; maxPages bounds runaway pagination (0 disables).
func NewEngine(st *store.Store, events provider.Events, guard *Guard, window time.Duration, maxPages int) *Engine {
	return &Engine{
		store:    st,
		events:   events,
		guard:    guard,
		window:   window,
		maxPages: maxPages,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockCalendar returns the single-flight mutex for a calendar,
// creating it on first use. Scheduled and notification-triggered syncs
// share it so their cursor updates cannot interleave.
func (e *Engine) lockCalendar(calendarID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock, ok := e.locks[calendarID]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	e.locks[calendarID] = lock
	return lock
}

// Download performs a full event download for the calendar, ignoring
// any stored sync cursor. A fresh cursor handed out during the run is
// persisted as it arrives.
func (e *Engine) Download(ctx context.Context, cal *store.ResourceCalendar) error {
	lock := e.lockCalendar(cal.ID)
	if !lock.TryLock() {
		return ErrSyncInProgress
	}
	defer lock.Unlock()

	cred, err := e.store.GetCredentialByID(cal.CredentialID)
	if err != nil {
		return fmt.Errorf("failed to load credential for calendar %s: %w", cal.ResourceID, err)
	}
	return e.run(ctx, cal, cred, "")
}

// Sync performs an incremental sync using the calendar's stored sync
// cursor, or a full download when no cursor exists yet. A cursor the
// provider rejects as expired is discarded and the run restarts as a
// full download.
func (e *Engine) Sync(ctx context.Context, cal *store.ResourceCalendar) error {
	lock := e.lockCalendar(cal.ID)
	if !lock.TryLock() {
		return ErrSyncInProgress
	}
	defer lock.Unlock()

	cred, err := e.store.GetCredentialByID(cal.CredentialID)
	if err != nil {
		return fmt.Errorf("failed to load credential for calendar %s: %w", cal.ResourceID, err)
	}

	if cal.NextSyncToken == "" {
		return e.run(ctx, cal, cred, "")
	}

	err = e.run(ctx, cal, cred, cal.NextSyncToken)
	if provider.IsSyncTokenExpired(err) {
		log.Printf("Sync token for calendar %s expired, falling back to full download", cal.ResourceID)
		cal.NextSyncToken = ""
		if serr := e.store.SaveResourceCalendar(cal); serr != nil {
			return fmt.Errorf("failed to clear expired sync token: %w", serr)
		}
		return e.run(ctx, cal, cred, "")
	}
	return err
}

// run drives the shared page loop. An empty syncToken means full
// download, which also applies the listing time window.
func (e *Engine) run(ctx context.Context, cal *store.ResourceCalendar, cred *store.Credential, syncToken string) error {
	pageToken := ""
	pages := 0

	for {
		var page *provider.EventPage
		err := e.guard.Call(ctx, cred, func(ctx context.Context, accessToken string) error {
			q := provider.EventQuery{PageToken: pageToken, SyncToken: syncToken}
			if syncToken == "" {
				now := time.Now().UTC()
				q.TimeMin = now
				q.TimeMax = now.Add(e.window)
			}
			p, err := e.events.ListEvents(ctx, accessToken, cal.ResourceEmail, q)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return err
		}

		// Persist the cursor the moment it shows up so a failure later
		// in the run does not lose the progress made so far.
		if page.NextSyncToken != "" {
			cal.NextSyncToken = page.NextSyncToken
			if err := e.store.SaveResourceCalendar(cal); err != nil {
				return fmt.Errorf("failed to persist sync token: %w", err)
			}
		}

		for i := range page.Items {
			e.applyItem(cal, &page.Items[i])
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return nil
		}
		pages++
		if e.maxPages > 0 && pages >= e.maxPages {
			return fmt.Errorf("%w: calendar %s returned more than %d pages", ErrPageLimit, cal.ResourceID, e.maxPages)
		}
	}
}

// applyItem reconciles one provider item into the local store. Item
// failures are logged and skipped so a single bad record cannot abort
// the page loop.
func (e *Engine) applyItem(cal *store.ResourceCalendar, item *provider.EventItem) {
	event, err := e.store.GetEventByExternalID(cal.ID, item.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("Failed to look up event %s: %v", item.ID, err)
		return
	}

	if item.Status == store.EventStatusCancelled {
		if event == nil {
			// Nothing local to cancel.
			return
		}
		event.Status = store.EventStatusCancelled
		if err := e.store.SaveEvent(event); err != nil {
			log.Printf("Failed to cancel event %s: %v", item.ID, err)
		}
		// Attendees stay untouched for cancelled events.
		return
	}

	if event == nil {
		event = &store.Event{CalendarID: cal.ID}
	}
	fillEvent(event, item)

	if err := event.Validate(); err != nil {
		log.Printf("Skipping event %s: %v", item.ID, err)
		return
	}
	if err := e.store.SaveEvent(event); err != nil {
		log.Printf("Failed to save event %s: %v", item.ID, err)
		return
	}

	e.replaceAttendees(event, item.Attendees)
}

// replaceAttendees swaps the event's attendee set for the provider's
// current list. Delete-then-insert keeps no stale rows behind when the
// list shrinks.
func (e *Engine) replaceAttendees(event *store.Event, attendees []provider.Attendee) {
	if err := e.store.DeleteAttendees(event.ID); err != nil {
		log.Printf("Failed to clear attendees of event %s: %v", event.ExternalID, err)
		return
	}

	for _, a := range attendees {
		participant, err := e.store.GetOrCreateParticipant(a.Email)
		if err != nil {
			log.Printf("Skipping attendee %s: %v", a.Email, err)
			continue
		}

		attend := &store.Attend{
			EventID:        event.ID,
			ParticipantID:  participant.ID,
			ResponseStatus: a.ResponseStatus,
			IsResource:     a.Resource,
		}
		if err := attend.Validate(); err != nil {
			log.Printf("Skipping attendee %s: %v", a.Email, err)
			continue
		}
		if err := e.store.CreateAttend(attend); err != nil {
			log.Printf("Failed to save attendee %s: %v", a.Email, err)
		}
	}
}

// Insert creates an event on the provider calendar and mirrors the
// created resource locally. The room itself is appended to the
// attendee list so the booking shows up on the resource calendar.
func (e *Engine) Insert(ctx context.Context, cal *store.ResourceCalendar, body provider.EventBody) (*store.Event, error) {
	cred, err := e.store.GetCredentialByID(cal.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credential for calendar %s: %w", cal.ResourceID, err)
	}

	body.Attendees = append(body.Attendees, provider.Attendee{Email: cal.ResourceEmail, Resource: true})

	var item *provider.EventItem
	err = e.guard.Call(ctx, cred, func(ctx context.Context, accessToken string) error {
		created, err := e.events.InsertEvent(ctx, accessToken, "primary", body)
		if err != nil {
			return err
		}
		item = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := &store.Event{CalendarID: cal.ID}
	fillEvent(event, item)
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := e.store.SaveEvent(event); err != nil {
		return nil, err
	}
	e.replaceAttendees(event, item.Attendees)

	return event, nil
}

// fillEvent maps provider fields onto the local entity.
func fillEvent(event *store.Event, item *provider.EventItem) {
	event.ExternalID = item.ID
	event.Summary = item.Summary
	event.Description = item.Description
	event.Status = item.Status
	event.Etag = item.Etag
	event.ICalUID = item.ICalUID
	event.Location = item.Location
	event.Creator = item.Creator
	event.Organizer = item.Organizer
	event.Sequence = item.Sequence
	event.Start = item.Start
	event.End = item.End
}
