// Package version carries build metadata injected with
// -ldflags "-X mpiterm/internal/version.Version=...".
package version

import (
	"fmt"
	"strconv"
	"strings"
)

var Version = "dev"
var Major = "0"
var Minor = "0"
var Patch = "0"
var Built = ""
var GitCommit = ""

type VersionInfo struct {
	Version   string
	Major     int
	Minor     int
	Patch     int
	Built     string
	GitCommit string
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		Major:     parseInt(Major),
		Minor:     parseInt(Minor),
		Patch:     parseInt(Patch),
		Built:     Built,
		GitCommit: GitCommit,
	}
}

// IsDev reports a build without injected version metadata.
func (info VersionInfo) IsDev() bool {
	return info.Version == "" || info.Version == "dev"
}

// Line renders the one-line version banner for binary.
func (info VersionInfo) Line(binary string) string {
	if info.IsDev() {
		return binary + " dev"
	}
	line := fmt.Sprintf("%s version %s", binary, info.Version)
	var extra []string
	if info.GitCommit != "" {
		extra = append(extra, "commit "+info.GitCommit)
	}
	if info.Built != "" {
		extra = append(extra, "built "+info.Built)
	}
	if len(extra) > 0 {
		line += " (" + strings.Join(extra, ", ") + ")"
	}
	return line
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
