// Package main is the entry point for the oasis ledger node and its command
// line client.
package main

import (
	"os"

	"oasis.ledger/oasis/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
