// Package version holds build-time version info injected via ldflags.
//
// Set at compile time:
//
//	go build -ldflags "-X github.com/NicolasHaas/mustangchat/pkg/version.tag=v1.0.0
//	  -X github.com/NicolasHaas/mustangchat/pkg/version.commit=abc1234
//	  -X github.com/NicolasHaas/mustangchat/pkg/version.date=2026-01-01"
//
// Without ldflags the VCS stamp recorded by the go command is used when present.
package version

import (
	"runtime/debug"
	"sync"
)

const unknown = "unknown"

// Populated by -ldflags "-X ...".
var (
	tag    = ""
	commit = unknown
	date   = unknown
)

var stampOnce sync.Once

// stamp fills commit and date from build info if ldflags left them unset.
func stamp() {
	stampOnce.Do(func() {
		if commit != unknown {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if len(s.Value) > 7 {
					commit = s.Value[:7]
				} else if s.Value != "" {
					commit = s.Value
				}
			case "vcs.time":
				if date == unknown && s.Value != "" {
					date = s.Value
				}
			}
		}
	})
}

// String returns a human-readable version string.
//
//	Tagged:   "v0.2.0"
//	Untagged: "abc1234"
//	Dev:      "dev"
func String() string {
	stamp()
	return format(tag, commit, "")
}

// Full returns "tag (commit) built date" or a sensible fallback.
func Full() string {
	stamp()
	return format(tag, commit, date)
}

func format(tag, commit, date string) string {
	switch {
	case tag != "" && date != "":
		return tag + " (" + commit + ") built " + date
	case tag != "":
		return tag
	case commit != unknown && date != "":
		return commit + " built " + date
	case commit != unknown:
		return commit
	default:
		return "dev"
	}
}

// Tag returns the git tag, or empty string.
func Tag() string { return tag }

// Commit returns the short commit SHA.
func Commit() string {
	stamp()
	return commit
}

// Date returns the build date.
func Date() string {
	stamp()
	return date
}
