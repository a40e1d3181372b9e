package version

import (
	"os"
	"path/filepath"
	"runtime"
)

///////////////////////////////////////////////////////////////////////////////
// GLOBALS

// Set at build time with -ldflags "-X ..."
var (
	GitSource   string
	GitTag      string
	GitBranch   string
	GitHash     string
	GoBuildTime string
)

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// ExecName returns the name of the running executable.
func ExecName() string {
	exec, err := os.Executable()
	if err != nil {
		return filepath.Base(os.Args[0])
	}
	return filepath.Base(exec)
}

// Version returns the git tag, or the git hash when untagged.
func Version() string {
	if GitTag != "" {
		return GitTag
	}
	if GitHash != "" {
		return GitHash
	}
	return "dev"
}

// Compiler returns the go compiler version.
func Compiler() string {
	return runtime.Version()
}
