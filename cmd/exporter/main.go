// Command exporter builds AI training datasets from the data lake and
// reports on what the lake holds.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(newEnv()).Execute(); err != nil {
		os.Exit(1)
	}
}
