package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Tobur/calendar-module/internal/provider"
)

func TestGuardCall(t *testing.T) {
	ctx := context.Background()

	t.Run("passes through on success without refreshing", func(t *testing.T) {
		st, cleanup := setupTestStore(t)
		defer cleanup()

		cred := createTestCredential(t, st, "owner@example.com")
		refresher := &fakeRefresher{}
		guard := NewGuard(st, refresher)

		calls := 0
		err := guard.Call(ctx, cred, func(ctx context.Context, accessToken string) error {
			calls++
			if accessToken != "access-token" {
				t.Errorf("expected stored access token, got %q", accessToken)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if refresher.count() != 0 {
			t.Errorf("expected no refresh, got %d", refresher.count())
		}
	})

	t.Run("refreshes once and retries on auth failure", func(t *testing.T) {
		st, cleanup := setupTestStore(t)
		defer cleanup()

		cred := createTestCredential(t, st, "owner@example.com")
		expiry := time.Now().UTC().Add(time.Hour)
		refresher := &fakeRefresher{token: provider.Token{
			AccessToken:  "fresh-access",
			RefreshToken: "fresh-refresh",
			Expiry:       expiry,
		}}
		guard := NewGuard(st, refresher)

		calls := 0
		err := guard.Call(ctx, cred, func(ctx context.Context, accessToken string) error {
			calls++
			if accessToken == "access-token" {
				return provider.ErrUnauthorized
			}
			return nil
		})
		if err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
		if refresher.count() != 1 {
			t.Errorf("expected exactly 1 refresh, got %d", refresher.count())
		}

		// The rotated pair must be persisted.
		stored, err := st.GetCredentialByID(cred.ID)
		if err != nil {
			t.Fatalf("failed to reload credential: %v", err)
		}
		if stored.AccessToken != "fresh-access" {
			t.Errorf("expected persisted access token, got %q", stored.AccessToken)
		}
		if stored.RefreshToken != "fresh-refresh" {
			t.Errorf("expected persisted refresh token, got %q", stored.RefreshToken)
		}
		if stored.ExpiredAt == nil || !stored.ExpiredAt.Equal(expiry) {
			t.Errorf("expected persisted expiry %v, got %v", expiry, stored.ExpiredAt)
		}
	})

	t.Run("second auth failure surfaces without another refresh", func(t *testing.T) {
		st, cleanup := setupTestStore(t)
		defer cleanup()

		cred := createTestCredential(t, st, "owner@example.com")
		refresher := &fakeRefresher{token: provider.Token{AccessToken: "fresh-access"}}
		guard := NewGuard(st, refresher)

		calls := 0
		err := guard.Call(ctx, cred, func(ctx context.Context, accessToken string) error {
			calls++
			return provider.ErrUnauthorized
		})
		if !provider.IsAuthError(err) {
			t.Fatalf("expected auth error, got %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
		if refresher.count() != 1 {
			t.Errorf("expected exactly 1 refresh, got %d", refresher.count())
		}
	})

	t.Run("non-auth error is not retried", func(t *testing.T) {
		st, cleanup := setupTestStore(t)
		defer cleanup()

		cred := createTestCredential(t, st, "owner@example.com")
		refresher := &fakeRefresher{}
		guard := NewGuard(st, refresher)

		boom := errors.New("network down")
		calls := 0
		err := guard.Call(ctx, cred, func(ctx context.Context, accessToken string) error {
			calls++
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected original error, got %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
		if refresher.count() != 0 {
			t.Errorf("expected no refresh, got %d", refresher.count())
		}
	})
}

func TestGuardRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps old refresh token when rotation is empty", func(t *testing.T) {
		st, cleanup := setupTestStore(t)
		defer cleanup()

		cred := createTestCredential(t, st, "owner@example.com")
		refresher := &fakeRefresher{token: provider.Token{AccessToken: "fresh-access"}}
		guard := NewGuard(st, refresher)

		if err := guard.Refresh(ctx, cred); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		if cred.RefreshToken != "refresh-token" {
			t.Errorf("expected original refresh token to survive, got %q", cred.RefreshToken)
		}
		if refresher.lastSeen != "refresh-token" {
			t.Errorf("expected refresh called with stored token, got %q", refresher.lastSeen)
		}
	})

	t.Run("refresh failure is surfaced", func(t *testing.T) {
		st, cleanup := setupTestStore(t)
		defer cleanup()

		cred := createTestCredential(t, st, "owner@example.com")
		refresher := &fakeRefresher{fail: true}
		guard := NewGuard(st, refresher)

		if err := guard.Refresh(ctx, cred); err == nil {
			t.Fatal("expected refresh error")
		}
	})
}
