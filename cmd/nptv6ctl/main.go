// Command nptv6ctl is a standalone exerciser for the control-plane surface:
// add/del/drop/list against an in-process MappingTable, and batch-apply of
// a control-plane file. It follows the same flag-and-slog idiom as
// nptv6mon, but the mapping table it operates on is process-local — wiring
// it to a running translation domain in a real deployment is the host
// integration's job.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/a2hop/nptv6/lib"
)

func main() {
	var (
		stateFile = flag.String("state", "", "Path to a control-plane text file used as persistent state (read at startup, rewritten after each mutating command)")
		logLevel  = flag.String("log-level", "info", "debug|info|warn|error")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <command> [args...]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "commands:")
		fmt.Fprintln(os.Stderr, "  add <iface> <internal/len> <external/len>")
		fmt.Fprintln(os.Stderr, "  del <iface> <internal/len>")
		fmt.Fprintln(os.Stderr, "  drop <iface|--all>")
		fmt.Fprintln(os.Stderr, "  list")
		fmt.Fprintln(os.Stderr, "  batch <file>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "flags:")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := parseLogLevel(*logLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("component", "nptv6ctl")

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		os.Exit(2)
	}

	table := lib.NewMappingTable()
	if *stateFile != "" {
		if data, err := os.ReadFile(*stateFile); err == nil {
			result := lib.ApplyBatch(table, string(data))
			logger.Debug("loaded state", "file", *stateFile, "processed", result.Processed, "errors", result.Errors)
		} else if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "failed to read state file: %v\n", err)
			os.Exit(1)
		}
	}

	cmd := args[0]
	rest := args[1:]

	var mutated bool
	var exitCode int

	switch cmd {
	case "add", "del", "drop":
		line := cmd
		for _, a := range rest {
			line += " " + a
		}
		if err := lib.ApplyLine(table, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			exitCode = 1
		} else {
			mutated = true
		}

	case "list":
		fmt.Print(lib.FormatMappingList(table.Enumerate()))

	case "batch":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "batch requires exactly one file argument")
			os.Exit(2)
		}
		data, err := os.ReadFile(rest[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read batch file: %v\n", err)
			os.Exit(1)
		}
		result := lib.ApplyBatch(table, string(data))
		fmt.Printf("processed=%d errors=%d\n", result.Processed, result.Errors)
		for _, msg := range result.Messages {
			fmt.Fprintln(os.Stderr, msg)
		}
		if result.Errors > 0 {
			exitCode = 1
		}
		mutated = result.Processed > 0

	default:
		flag.Usage()
		os.Exit(2)
	}

	if mutated && *stateFile != "" {
		if err := os.WriteFile(*stateFile, []byte(formatAddCommands(table.Enumerate())), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to persist state file: %v\n", err)
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}

// formatAddCommands renders mappings as a batch file of "add" commands
// (ApplyBatch's input grammar), the persistence round-trip format for
// -state: distinct from FormatMappingList's read-only display format, which
// uses "->" and is not itself a valid control-plane command.
func formatAddCommands(mappings []lib.Mapping) string {
	var b []byte
	for _, m := range mappings {
		line := fmt.Sprintf("add %s %s %s\n",
			m.Interface,
			lib.FormatPrefix(m.InternalPrefix, m.PrefixLen),
			lib.FormatPrefix(m.ExternalPrefix, m.PrefixLen))
		b = append(b, line...)
	}
	return string(b)
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
