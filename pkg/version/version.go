package version

import (
	"runtime/debug"
)

// String returns the vcs revision and time baked into the binary. Logged
// at startup so the heartbeat-restarted daemon is identifiable in logs.
func String() string {
	commit := "unknown"
	at := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				commit = setting.Value
			}
			if setting.Key == "vcs.time" {
				at = setting.Value
			}
		}
	}
	if at == "" {
		return commit
	}
	return commit + " (" + at + ")"
}
