package main

import (
	"github.com/turtacn/throttle/cmd/cli"
)

// main is the entry point for the throttle-admin command-line tool.
func main() {
	cli.Execute()
}
