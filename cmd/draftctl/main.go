package main

import (
	"os"

	"draftline/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
