// Package bzlshim runs the bundled buildozer and buildifier binaries
// on behalf of Go callers, the CLI and MCP clients.
package bzlshim

// Version is the bzlshim release version.
const Version = "0.3.0"
