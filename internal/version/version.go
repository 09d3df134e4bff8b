// Package version provides centralized version management for voxcmd.
// It carries build information injected at link time and the version gate for
// grammar files.
package version

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Build information that can be set at compile time via -ldflags
var (
	// Version is the semantic version of the application
	Version = "0.3.0"

	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built
	BuildDate = "unknown"
)

// GrammarFormat is the newest grammar file format this build writes and reads.
const GrammarFormat = "1.1.0"

// grammarFormats is the range of grammar file versions this build accepts.
const grammarFormats = ">= 1.0.0, < 2.0.0"

// Info represents comprehensive version information
type Info struct {
	Version       string          `json:"version"`
	GitCommit     string          `json:"gitCommit"`
	BuildDate     string          `json:"buildDate"`
	GoVersion     string          `json:"goVersion"`
	Platform      string          `json:"platform"`
	GrammarFormat string          `json:"grammarFormat"`
	SemVer        *semver.Version `json:"-"`
}

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetInfo returns comprehensive version information
func GetInfo() (*Info, error) {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}

	return &Info{
		Version:       Version,
		GitCommit:     GitCommit,
		BuildDate:     BuildDate,
		GoVersion:     runtime.Version(),
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		GrammarFormat: GrammarFormat,
		SemVer:        sv,
	}, nil
}

// GetFormattedVersion returns a one-line version string
func GetFormattedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("voxcmd v%s (invalid version)", Version)
	}

	parts := []string{fmt.Sprintf("voxcmd v%s", info.Version)}

	if info.GitCommit != "unknown" && info.GitCommit != "" {
		// Show short commit hash (7 characters)
		shortCommit := info.GitCommit
		if len(shortCommit) > 7 {
			shortCommit = shortCommit[:7]
		}
		parts = append(parts, fmt.Sprintf("commit %s", shortCommit))
	}

	if info.BuildDate != "unknown" && info.BuildDate != "" {
		parts = append(parts, fmt.Sprintf("built %s", info.BuildDate))
	}

	return strings.Join(parts, ", ")
}

// GetDetailedVersion returns detailed version information for debugging
func GetDetailedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("voxcmd v%s (error: %v)", Version, err)
	}

	lines := []string{
		fmt.Sprintf("voxcmd v%s", info.Version),
		fmt.Sprintf("Git Commit: %s", info.GitCommit),
		fmt.Sprintf("Build Date: %s", info.BuildDate),
		fmt.Sprintf("Grammar Format: %s (accepts %s)", info.GrammarFormat, grammarFormats),
		fmt.Sprintf("Go Version: %s", info.GoVersion),
		fmt.Sprintf("Platform: %s", info.Platform),
	}
	return strings.Join(lines, "\n")
}

// CheckGrammarFormat returns an error unless v is a grammar file version this
// build can load. An empty version is read as 1.0.0.
func CheckGrammarFormat(v string) error {
	if v == "" {
		v = "1.0.0"
	}
	sv, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid grammar file version '%s': %w", v, err)
	}
	c, err := semver.NewConstraint(grammarFormats)
	if err != nil {
		return fmt.Errorf("invalid grammar format constraint: %w", err)
	}
	if ok, errs := c.Validate(sv); !ok {
		reasons := make([]string, len(errs))
		for i, e := range errs {
			reasons[i] = e.Error()
		}
		return fmt.Errorf("grammar file version %s is not supported: %s", v, strings.Join(reasons, "; "))
	}
	return nil
}

// CompareVersions compares two version strings and returns:
// -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) (int, error) {
	sv1, err := semver.NewVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version v1 '%s': %w", v1, err)
	}

	sv2, err := semver.NewVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version v2 '%s': %w", v2, err)
	}

	return sv1.Compare(sv2), nil
}

// SetBuildInfo sets build information (used for testing)
func SetBuildInfo(version, gitCommit, buildDate string) {
	Version = version
	GitCommit = gitCommit
	BuildDate = buildDate
}
