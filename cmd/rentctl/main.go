// Command rentctl browses and administers Rent-a-Ride resource lists from the
// terminal: list, filter and sort records, delete them or change their status
// with optimistic updates, and watch lists that refresh when another process
// announces a change.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
