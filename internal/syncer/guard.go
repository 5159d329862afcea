package syncer

import (
	"context"
	"fmt"
	"log"

	"github.com/Tobur/calendar-module/internal/provider"
	"github.com/Tobur/calendar-module/internal/store"
)

// Guard wraps outbound provider calls with expiry-aware credential
// handling. On an authorization failure it performs exactly one
// refresh-and-retry cycle; a second authorization failure or any
// non-authorization error is surfaced to the caller.
type Guard struct {
	store  *store.Store
	tokens provider.TokenRefresher
}

// NewGuard creates a credential guard.
func NewGuard(st *store.Store, tokens provider.TokenRefresher) *Guard {
	return &Guard{store: st, tokens: tokens}
}

// Call runs op with the credential's current access token. The stored
// expiry is not consulted here: the provider's own 401 is the source
// of truth, since the stored value may be stale or wrong.
func (g *Guard) Call(ctx context.Context, cred *store.Credential, op func(ctx context.Context, accessToken string) error) error {
	err := op(ctx, cred.AccessToken)
	if err == nil {
		return nil
	}
	if !provider.IsAuthError(err) {
		return err
	}

	log.Printf("Access token rejected for %s, refreshing", cred.ExternalEmail)
	if err := g.Refresh(ctx, cred); err != nil {
		return err
	}

	return op(ctx, cred.AccessToken)
}

// Refresh exchanges the stored refresh token for a new token pair and
// persists the updated credential. Providers may omit a rotated
// refresh token, in which case the stored one stays valid.
func (g *Guard) Refresh(ctx context.Context, cred *store.Credential) error {
	tok, err := g.tokens.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh credential for %s: %w", cred.ExternalEmail, err)
	}

	cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		cred.ExpiredAt = &expiry
	}

	if err := g.store.SaveCredential(cred); err != nil {
		return fmt.Errorf("failed to persist refreshed credential: %w", err)
	}
	return nil
}
