// Package version exposes the build-time identity of the ingestion worker
// binary, filled in by the linker at release build time.
package version

import (
	"fmt"
	"io"
)

// mainpkg is the canonical import path the binary was built under.
var mainpkg = "github.com/gdelt-collective/ingest"

// version is replaced at build time via -ldflags; the value here is used
// when running from `go run` or a go-get install.
var version = "v0.0.0+unknown"

// revision is filled with the VCS revision at link time.
var revision = ""

// Package returns the canonical project import path.
func Package() string {
	return mainpkg
}

// Version returns the module version the binary was built from.
func Version() string {
	return version
}

// Revision returns the VCS revision used to build the binary.
func Revision() string {
	return revision
}

// FprintVersion writes "<cmd> <project> <version>" to w.
func FprintVersion(w io.Writer, cmd string) {
	fmt.Fprintln(w, cmd, Package(), Version())
}
