package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover-resources",
	Short: "Discover bookable resources",
	Long: `Pull the resource directory for every stored credential and upsert
the resulting meeting rooms as resource calendars.`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.store.ListCredentials()
	if err != nil {
		return err
	}
	for _, cred := range creds {
		if err := a.discovery.Discover(cmd.Context(), cred); err != nil {
			log.Printf("Failed to discover resources for %s: %v", cred.ExternalEmail, err)
		}
	}

	calendars, err := a.store.ListResourceCalendars()
	if err != nil {
		return err
	}
	fmt.Printf("Known resource calendars: %d\n", len(calendars))
	for _, cal := range calendars {
		fmt.Printf("  %s  %s (%s)\n", cal.ResourceID, cal.ResourceName, cal.ResourceEmail)
	}
	return nil
}
