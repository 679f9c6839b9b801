// Package main is the entry point for the slotbook CLI.
package main

import (
	_ "time/tzdata" // --timezone must resolve on hosts without a zoneinfo database

	"github.com/slotbook/slotbook-cli/internal/cli"
)

func main() {
	cli.Execute()
}
