// Command interop drives framewire's signaling, WebRTC peering, and RPC
// transport through an interop test harness: serve hosts the example
// services over a DataChannel, call inspects a registry's routes, and
// setup performs the browser-based device pairing flow.
package main

import (
	"fmt"
	"os"

	"github.com/framewire/framewire/cmd/interop/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
