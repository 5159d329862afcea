package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Tobur/calendar-module/internal/provider"
	"github.com/Tobur/calendar-module/internal/store"
)

// setupTestStore creates a temporary test database.
func setupTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "roomsync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "test.db")
	st, err := store.New(dbPath)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create test database: %v", err)
	}

	cleanup := func() {
		st.Close()
		os.RemoveAll(tempDir)
	}

	return st, cleanup
}

func createTestCredential(t *testing.T, st *store.Store, email string) *store.Credential {
	t.Helper()

	cred := &store.Credential{
		AccessToken:    "access-token",
		RefreshToken:   "refresh-token",
		ExternalUserID: "user-123",
		ExternalEmail:  email,
	}
	if err := st.SaveCredential(cred); err != nil {
		t.Fatalf("failed to create test credential: %v", err)
	}
	return cred
}

func createTestCalendar(t *testing.T, st *store.Store, credID, resourceID string) *store.ResourceCalendar {
	t.Helper()

	cal := &store.ResourceCalendar{
		CredentialID:  credID,
		ResourceID:    resourceID,
		ResourceName:  "Room " + resourceID,
		ResourceEmail: resourceID + "@resource.calendar.google.com",
	}
	if err := st.SaveResourceCalendar(cal); err != nil {
		t.Fatalf("failed to create test calendar: %v", err)
	}
	return cal
}

func timePtr(t time.Time) *time.Time {
	return &t
}

// fakeRefresher counts refreshes and hands out sequenced tokens.
type fakeRefresher struct {
	mu       sync.Mutex
	calls    int
	token    provider.Token
	fail     bool
	lastSeen string
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*provider.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSeen = refreshToken
	if f.fail {
		return nil, errors.New("refresh endpoint unavailable")
	}
	tok := f.token
	return &tok, nil
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeEvents serves scripted event pages keyed by page token and
// records the queries it saw.
type fakeEvents struct {
	mu      sync.Mutex
	pages   map[string]*provider.EventPage
	queries []provider.EventQuery
	listErr error // returned once, then cleared

	inserted    []provider.EventBody
	insertItem  *provider.EventItem
	watchInfo   *provider.WatchInfo
	watchCalls  int
	rejectToken string // access token to refuse with ErrUnauthorized
}

func (f *fakeEvents) ListEvents(ctx context.Context, accessToken, calendarID string, q provider.EventQuery) (*provider.EventPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rejectToken != "" && accessToken == f.rejectToken {
		return nil, provider.ErrUnauthorized
	}
	if f.listErr != nil {
		err := f.listErr
		f.listErr = nil
		return nil, err
	}

	f.queries = append(f.queries, q)
	page, ok := f.pages[q.PageToken]
	if !ok {
		return &provider.EventPage{}, nil
	}
	return page, nil
}

func (f *fakeEvents) InsertEvent(ctx context.Context, accessToken, calendarID string, body provider.EventBody) (*provider.EventItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rejectToken != "" && accessToken == f.rejectToken {
		return nil, provider.ErrUnauthorized
	}
	f.inserted = append(f.inserted, body)
	item := *f.insertItem
	item.Attendees = append([]provider.Attendee(nil), body.Attendees...)
	return &item, nil
}

func (f *fakeEvents) Watch(ctx context.Context, accessToken, calendarID, channelID, callbackURL string) (*provider.WatchInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rejectToken != "" && accessToken == f.rejectToken {
		return nil, provider.ErrUnauthorized
	}
	f.watchCalls++
	info := *f.watchInfo
	return &info, nil
}

// fakeDirectory serves scripted resource pages keyed by page token.
type fakeDirectory struct {
	pages map[string]*provider.ResourcePage
}

func (f *fakeDirectory) ListResources(ctx context.Context, accessToken, pageToken string) (*provider.ResourcePage, error) {
	page, ok := f.pages[pageToken]
	if !ok {
		return &provider.ResourcePage{}, nil
	}
	return page, nil
}
