package cli

import (
	"bytes"
	"flag"
	"io"
	"strings"
	"testing"
)

func TestHelpFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse([]string{"-h"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flags.Help {
		t.Fatalf("expected help flag set")
	}
}

func TestVersionFlag(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse([]string{"--version"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !flags.Version {
		t.Fatalf("expected version flag set")
	}
}

func TestFlagsStopAtFirstPositional(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	flags := AddHelpVersionFlags(fs, "", "")

	if err := fs.Parse([]string{"2", "app", "-h"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if flags.Help {
		t.Fatalf("flags after the command belong to the command")
	}
	if fs.NArg() != 3 {
		t.Fatalf("expected 3 positional args, got %d", fs.NArg())
	}
}

func TestWriteOptionAligns(t *testing.T) {
	var out bytes.Buffer
	WriteOption(&out, "--timeout DURATION", "Give up waiting")
	line := out.String()
	if !strings.HasPrefix(line, "  --timeout DURATION ") || !strings.HasSuffix(line, " Give up waiting\n") {
		t.Fatalf("unexpected option line %q", line)
	}
	if idx := strings.Index(line, "Give"); idx != 2+optionColumn+1 {
		t.Fatalf("expected description at column %d, got %d", 2+optionColumn+1, idx)
	}
}

func TestPrintVersion(t *testing.T) {
	var out bytes.Buffer
	PrintVersion(&out, "mpiterm")
	if !strings.HasPrefix(out.String(), "mpiterm ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}
