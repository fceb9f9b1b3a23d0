// Package cmd implements the geoloc CLI commands.
//
// Each subcommand file registers itself from init, and Execute dispatches
// on the first argument (position, watch, status, serve).
package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// Command is one CLI subcommand.
type Command struct {
	Name  string
	Short string
	Long  string
	Usage string
	Run   func(args []string) error
}

// commands holds every registered subcommand in registration order, which
// is also the order they appear in help output.
var commands []*Command

// RegisterCommand adds cmd to the dispatch table. Subcommand files call it
// from init.
func RegisterCommand(cmd *Command) {
	commands = append(commands, cmd)
}

func findCommand(name string) *Command {
	for _, c := range commands {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Execute runs the CLI with the arguments from the process command line.
func Execute() error {
	return run(os.Args[1:])
}

func run(args []string) error {
	if len(args) == 0 {
		printHelp()
		return nil
	}

	switch args[0] {
	case "-h", "--help", "help":
		printHelp()
		return nil
	case "-v", "--version", "version":
		fmt.Printf("geoloc version %s (built %s)\n", Version, BuildTime)
		return nil
	}

	cmd := findCommand(args[0])
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printHelp()
		return fmt.Errorf("unknown command: %s", args[0])
	}

	rest := args[1:]
	if slices.ContainsFunc(rest, isHelpArg) {
		fmt.Printf("%s\n\nUsage:\n  %s\n", cmd.Long, cmd.Usage)
		return nil
	}
	return cmd.Run(rest)
}

func isHelpArg(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}

const helpHeader = `geoloc drives the geolocator facade against a simulated or remote
location sensor. Request single fixes, stream position updates, render
tracks to PNG, or host a companion device over WebSocket.

Use "geoloc <command> --help" for more information about a command.

Usage:
  geoloc <command> [flags]

Commands:
`

const helpFooter = `
Flags:
  -h, --help           Show help for a command
  -v, --version        Show version information

Configuration:
  geoloc.yaml            Per-directory settings
  ~/.geoloc/config.yaml  User-wide settings (lower priority)

Examples:
  geoloc position --timeout 5s      Request one fix
  geoloc watch --plot track.png     Stream updates, render the track on exit
  geoloc serve --listen :7311       Host a companion device`

func printHelp() {
	var b strings.Builder
	b.WriteString(helpHeader)
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-14s %s\n", c.Name, c.Short)
	}
	b.WriteString(helpFooter)
	fmt.Println(b.String())
}
