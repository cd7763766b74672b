package main

import (
	"os"

	"geektools.dev/cli/internal/interfaces/cli"
)

func main() {
	os.Exit(cli.Execute())
}
