package common

import "fmt"

// These variables are set via ldflags during build
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

func GetVersion() string {
	return Version
}

func GetBuild() string {
	return Build
}

func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns version, build and commit in one line
func GetFullVersion() string {
	if Build == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s-%s (%s)", Version, Build, GitCommit)
}
