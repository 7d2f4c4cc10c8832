package version

import (
	"fmt"
	"io"
	"runtime"
)

var (
	// Set via -ldflags at release time.
	gitCommit = "unknown"
	version   = "dev"
	buildDate = "1970-01-01 00:00:00 +0000"
)

var goVersion = runtime.Version()

var osArch = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)

// Version returns the release version of the binary.
func Version() string {
	return version
}

func generateOutput() string {
	return fmt.Sprintf(`agentops - %s

Git Commit: %s
Build date: %s
Go version: %s
OS / Arch : %s
`, version, gitCommit, buildDate, goVersion, osArch)
}

// Fprint writes the version block to w.
func Fprint(w io.Writer) {
	fmt.Fprintln(w, generateOutput())
}
