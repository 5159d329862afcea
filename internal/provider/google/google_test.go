package google

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/Tobur/calendar-module/internal/provider"
)

func TestMapError(t *testing.T) {
	t.Run("401 maps to unauthorized", func(t *testing.T) {
		err := mapError(&googleapi.Error{Code: http.StatusUnauthorized})
		if !provider.IsAuthError(err) {
			t.Errorf("expected auth error, got %v", err)
		}
	})

	t.Run("410 maps to expired sync token", func(t *testing.T) {
		err := mapError(&googleapi.Error{Code: http.StatusGone})
		if !provider.IsSyncTokenExpired(err) {
			t.Errorf("expected sync token expired, got %v", err)
		}
	})

	t.Run("other API errors pass through", func(t *testing.T) {
		orig := &googleapi.Error{Code: http.StatusInternalServerError}
		err := mapError(orig)
		if provider.IsAuthError(err) || provider.IsSyncTokenExpired(err) {
			t.Errorf("500 must not map to a taxonomy error, got %v", err)
		}
		if !errors.Is(err, error(orig)) {
			t.Errorf("expected the original error, got %v", err)
		}
	})

	t.Run("non-API errors pass through", func(t *testing.T) {
		orig := errors.New("dial tcp: timeout")
		if got := mapError(orig); !errors.Is(got, orig) {
			t.Errorf("expected the original error, got %v", got)
		}
	})
}

func TestParseEventTime(t *testing.T) {
	t.Run("concrete dateTime parses", func(t *testing.T) {
		got := parseEventTime(&calendar.EventDateTime{DateTime: "2026-09-01T10:00:00Z"})
		if got == nil {
			t.Fatal("expected a time")
		}
		want := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("all-day slot yields nil", func(t *testing.T) {
		if got := parseEventTime(&calendar.EventDateTime{Date: "2026-09-01"}); got != nil {
			t.Errorf("expected nil for date-only, got %v", got)
		}
	})

	t.Run("nil structure yields nil", func(t *testing.T) {
		if got := parseEventTime(nil); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}

func TestConvertEvent(t *testing.T) {
	ev := &calendar.Event{
		Id:       "ev-1",
		Summary:  "Planning",
		Status:   "confirmed",
		Sequence: 3,
		Creator:  &calendar.EventCreator{Email: "creator@example.com"},
		Start:    &calendar.EventDateTime{DateTime: "2026-09-01T10:00:00Z"},
		End:      &calendar.EventDateTime{DateTime: "2026-09-01T11:00:00Z"},
		Attendees: []*calendar.EventAttendee{
			{Email: "alice@example.com", ResponseStatus: "accepted"},
			{Email: "room@resource.calendar.google.com", ResponseStatus: "accepted", Resource: true},
		},
	}

	item := convertEvent(ev)

	if item.ID != "ev-1" || item.Status != "confirmed" {
		t.Errorf("identity fields not carried over: %+v", item)
	}
	if item.Creator != "creator@example.com" {
		t.Errorf("expected creator email, got %q", item.Creator)
	}
	if item.Sequence == nil || *item.Sequence != 3 {
		t.Errorf("expected sequence 3, got %v", item.Sequence)
	}
	if item.Start == nil || item.End == nil {
		t.Fatal("expected concrete start and end")
	}
	if len(item.Attendees) != 2 {
		t.Fatalf("expected 2 attendees, got %d", len(item.Attendees))
	}
	if !item.Attendees[1].Resource {
		t.Error("expected the room to be marked as resource")
	}
}
