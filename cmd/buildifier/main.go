// Command buildifier runs the bundled buildifier binary for the host
// platform with the given arguments.
package main

import (
	"os"

	"github.com/deixis/bzlshim/internal/launcher"
	"github.com/deixis/bzlshim/internal/platform"
)

func main() {
	os.Exit(launcher.Main(platform.Buildifier, os.Args[1:]))
}
