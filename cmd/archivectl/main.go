package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultPublisher).Execute(); err != nil {
		os.Exit(1)
	}
}
