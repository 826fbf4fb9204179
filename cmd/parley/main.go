package main

import (
	"os"

	"github.com/parleyhq/parley/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
