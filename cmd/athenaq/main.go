package main

import (
	"os"

	"github.com/kent-id/athenaq/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
