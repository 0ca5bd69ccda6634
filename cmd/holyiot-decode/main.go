// Command holyiot-decode inspects HolyIot advertisements offline: it decodes
// hex payloads and replays sightings journaled by the gateway.
package main

import (
	"fmt"
	"os"
)

var version = "dev"
var appName = "holyiot-decode"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
