package main

import (
	"os"

	"github.com/medvolt/scanblur/internal/client/cli"
)

func main() {
	os.Exit(cli.Execute())
}
