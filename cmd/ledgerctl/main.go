package main

import (
	"os"

	"github.com/SscSPs/credit_ledger_service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
