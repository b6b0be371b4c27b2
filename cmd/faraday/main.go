// Faraday CLI
//
// Chat with the assistant over a local project and sync it with a
// faraday-server.
package main

import (
	"os"

	"github.com/faraday/faraday/internal/cli"
	"github.com/faraday/faraday/internal/logging"
)

func main() {
	cmd := cli.NewRootCmd()
	err := cmd.Execute()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
