// Command zed-updater checks, downloads and installs new builds of the Zed editor.
package main

import (
	"errors"
	"os"
)

// set at build time
var version = "dev"

func main() {
	if err := Execute(version); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}
