package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Tobur/calendar-module/internal/provider"
	"github.com/Tobur/calendar-module/internal/store"
)

// Discovery pulls the bookable resources of a credential owner and
// upserts them as resource calendars.
type Discovery struct {
	store     *store.Store
	directory provider.Directory
	guard     *Guard
}

// NewDiscovery creates a resource discovery worker.
func NewDiscovery(st *store.Store, directory provider.Directory, guard *Guard) *Discovery {
	return &Discovery{store: st, directory: directory, guard: guard}
}

// Discover paginates the provider's resource directory for the given
// credential. Descriptive fields are overwritten unconditionally from
// the provider response: last write wins, no merging.
func (d *Discovery) Discover(ctx context.Context, cred *store.Credential) error {
	pageToken := ""

	for {
		var page *provider.ResourcePage
		err := d.guard.Call(ctx, cred, func(ctx context.Context, accessToken string) error {
			p, err := d.directory.ListResources(ctx, accessToken, pageToken)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to list resources for %s: %w", cred.ExternalEmail, err)
		}

		for i := range page.Items {
			d.applyResource(cred, &page.Items[i])
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return nil
		}
	}
}

func (d *Discovery) applyResource(cred *store.Credential, item *provider.ResourceItem) {
	cal, err := d.store.GetResourceCalendarByResourceID(item.ResourceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("Failed to look up resource %s: %v", item.ResourceID, err)
		return
	}
	if cal == nil {
		cal = &store.ResourceCalendar{}
	}

	cal.CredentialID = cred.ID
	cal.ResourceID = item.ResourceID
	cal.ResourceName = item.ResourceName
	cal.GeneratedResourceName = item.GeneratedResourceName
	cal.ResourceEmail = item.ResourceEmail
	cal.ResourceType = item.ResourceType
	cal.ResourceCategory = item.ResourceCategory
	cal.Capacity = item.Capacity
	cal.BuildingID = item.BuildingID
	cal.FloorName = item.FloorName
	cal.Etag = item.Etag

	if err := cal.Validate(); err != nil {
		log.Printf("Skipping resource %s: %v", item.ResourceID, err)
		return
	}
	if err := d.store.SaveResourceCalendar(cal); err != nil {
		log.Printf("Failed to save resource %s: %v", item.ResourceID, err)
	}
}
