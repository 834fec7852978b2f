// Package buildinfo reports the version stamped into a binary at link time:
//
//	go build -ldflags "-X github.com/dmitrijs2005/truecam/internal/buildinfo.buildVersion=v1.2.0 \
//	  -X github.com/dmitrijs2005/truecam/internal/buildinfo.buildDate=2025-06-01 \
//	  -X github.com/dmitrijs2005/truecam/internal/buildinfo.buildCommit=abc123"
package buildinfo

import (
	"fmt"
	"io"
	"runtime/debug"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

// readBuildInfo is a test seam for debug.ReadBuildInfo.
var readBuildInfo = debug.ReadBuildInfo

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// Data returns version, date and commit. Values not set at link time fall
// back to the VCS stamp of the module, then to "N/A".
func Data() (version, date, commit string) {
	version, date, commit = buildVersion, buildDate, buildCommit

	if bi, ok := readBuildInfo(); ok {
		if version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if date == "" {
					date = s.Value
				}
			}
		}
	}
	return orNA(version), orNA(date), orNA(commit)
}

func PrintBuildData(w io.Writer) {
	version, date, commit := Data()
	fmt.Fprintf(w, "Build version: %s\n", version)
	fmt.Fprintf(w, "Build date: %s\n", date)
	fmt.Fprintf(w, "Build commit: %s\n", commit)
}
