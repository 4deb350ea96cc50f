// Package platform maps an operating system and CPU architecture to the
// file name of a bundled buildtools binary.
package platform

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Tool names of the bundled binaries.
const (
	Buildozer  = "buildozer"
	Buildifier = "buildifier"
)

// OS is an operating system a binary is shipped for.
type OS int

const (
	Darwin OS = iota + 1
	Linux
	Windows
)

// Token returns the OS token embedded in binary names.
func (o OS) Token() string {
	switch o {
	case Darwin:
		return "darwin"
	case Linux:
		return "linux"
	case Windows:
		return "windows"
	}
	return ""
}

// Suffix returns the executable file suffix for the OS.
func (o OS) Suffix() string {
	if o == Windows {
		return ".exe"
	}
	return ""
}

func (o OS) String() string { return o.Token() }

// Arch is a CPU architecture a binary is shipped for.
type Arch int

const (
	ARM64 Arch = iota + 1
	AMD64
)

// Token returns the architecture token embedded in binary names.
func (a Arch) Token() string {
	switch a {
	case ARM64:
		return "arm64"
	case AMD64:
		return "amd64"
	}
	return ""
}

func (a Arch) String() string { return a.Token() }

// ParseOS accepts both Go (GOOS) and Node (process.platform) identifiers.
func ParseOS(s string) (OS, bool) {
	switch strings.ToLower(s) {
	case "darwin":
		return Darwin, true
	case "linux":
		return Linux, true
	case "windows", "win32":
		return Windows, true
	}
	return 0, false
}

// ParseArch accepts both Go (GOARCH) and Node (process.arch) identifiers.
func ParseArch(s string) (Arch, bool) {
	switch strings.ToLower(s) {
	case "arm64":
		return ARM64, true
	case "amd64", "x64":
		return AMD64, true
	}
	return 0, false
}

// Platform is a supported (OS, Arch) pair.
type Platform struct {
	OS   OS
	Arch Arch
}

// New validates the raw identifiers and returns the matching Platform.
// The tool name is only used to build the error message.
func New(tool, goos, goarch string) (Platform, error) {
	o, okOS := ParseOS(goos)
	a, okArch := ParseArch(goarch)
	if !okOS || !okArch || (o == Windows && a == ARM64) {
		return Platform{}, &UnsupportedPlatformError{Tool: tool, OS: goos, Arch: goarch}
	}
	return Platform{OS: o, Arch: a}, nil
}

// BinaryName returns "<tool>-<os>_<arch><suffix>".
func (p Platform) BinaryName(tool string) string {
	return fmt.Sprintf("%s-%s_%s%s", tool, p.OS.Token(), p.Arch.Token(), p.OS.Suffix())
}

// Resolve returns the path of the bundled tool binary for goos/goarch
// inside dir. It does not touch the filesystem.
func Resolve(tool, goos, goarch, dir string) (string, error) {
	p, err := New(tool, goos, goarch)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p.BinaryName(tool)), nil
}

// Resolver resolves bundled binaries for a fixed platform and directory.
type Resolver struct {
	Dir  string
	OS   string
	Arch string
}

// Host returns a Resolver for the running platform.
func Host(dir string) *Resolver {
	return &Resolver{Dir: dir, OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Binary returns the path of the named tool for the resolver's platform.
func (r *Resolver) Binary(tool string) (string, error) {
	return Resolve(tool, r.OS, r.Arch, r.Dir)
}

// ErrUnsupportedPlatform matches every *UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError reports an (OS, Arch) pair no binary is built for.
type UnsupportedPlatformError struct {
	Tool string
	OS   string
	Arch string
}

func (e *UnsupportedPlatformError) Error() string {
	tool := e.Tool
	if tool == "" {
		tool = Buildozer
	}
	return fmt.Sprintf("your platform/architecture combination %s - %s is not yet supported.\n"+
		"See instructions at https://github.com/bazelbuild/buildtools/blob/master/%s/README.md.",
		e.OS, e.Arch, tool)
}

func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrUnsupportedPlatform
}
