// Package cli holds the flag and help conventions shared by the commands.
package cli

import (
	"flag"
	"fmt"
	"io"

	"mpiterm/internal/version"
)

const (
	defaultHelpDesc    = "Show help"
	defaultVersionDesc = "Print version and exit"
	optionColumn       = 28
)

type HelpVersionFlags struct {
	Help    bool
	Version bool
}

func AddHelpVersionFlags(fs *flag.FlagSet, helpDesc, versionDesc string) *HelpVersionFlags {
	if fs == nil {
		return &HelpVersionFlags{}
	}
	if helpDesc == "" {
		helpDesc = defaultHelpDesc
	}
	if versionDesc == "" {
		versionDesc = defaultVersionDesc
	}
	flags := &HelpVersionFlags{}
	fs.BoolVar(&flags.Help, "help", false, helpDesc)
	fs.BoolVar(&flags.Help, "h", false, helpDesc)
	fs.BoolVar(&flags.Version, "version", false, versionDesc)
	fs.BoolVar(&flags.Version, "v", false, versionDesc)
	return flags
}

// WriteOption prints one aligned line of an Options help section.
func WriteOption(out io.Writer, name, desc string) {
	fmt.Fprintf(out, "  %-*s %s\n", optionColumn, name, desc)
}

func PrintVersion(out io.Writer, binary string) {
	fmt.Fprintln(out, version.GetVersionInfo().Line(binary))
}
