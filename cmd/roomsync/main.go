package main

import "github.com/Tobur/calendar-module/cmd/roomsync/cmd"

func main() {
	cmd.Execute()
}
