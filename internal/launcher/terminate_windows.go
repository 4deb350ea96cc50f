//go:build windows

package launcher

import "os"

// Windows has no SIGTERM delivery to other processes.
func terminate(p *os.Process) error {
	return p.Kill()
}
