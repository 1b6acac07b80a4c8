package main

import (
	"github.com/venice-v5/venice-cli/cmd/venice/cmd"
)

func main() {
	cmd.Execute()
}
