package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X logscope/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// String formats the build identity. Without ldflags the VCS revision
// recorded by the go tool is used.
func String() string {
	commit, date := Commit, Date
	if commit == "" {
		commit, date = vcs(date)
	}
	return format(Version, commit, date)
}

func format(version, commit, date string) string {
	s := version
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if commit != "" {
		s += fmt.Sprintf(" (%s)", commit)
	}
	if date != "" {
		s += " " + date
	}
	return s
}

func vcs(date string) (string, string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", date
	}
	var rev string
	for _, st := range info.Settings {
		switch st.Key {
		case "vcs.revision":
			rev = st.Value
		case "vcs.time":
			if date == "" {
				date = st.Value
			}
		}
	}
	return rev, date
}
