package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Open push-notification channels",
	Long: `Ensure every resource calendar has an active push-notification
subscription at the provider. Calendars that already have one are
left alone.`,
	RunE: runSubscribe,
}

func init() {
	rootCmd.AddCommand(subscribeCmd)
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.webhooks.SubscribeAll(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Subscriptions ensured for all resource calendars")
	return nil
}
