// Command awaitbench pushes simulated calls through an awaitable pool and
// reports how they completed.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
