package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeAgent    = "agent-service"
	ModeDispatch = "dispatch-service"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeAgent, "agent", "driver-agent", "a":
		return ModeAgent, true
	case ModeDispatch, "dispatch", "dispatchd", "d":
		return ModeDispatch, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `agent-service --auto-accept`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./dryjets-driver --mode=<service> [flags]

Services (modes):
  agent-service       Headless driver agent: availability, orders, location, push
  dispatch-service    Development dispatch server (REST + realtime + push fanout)

Examples:
  ./dryjets-driver --mode=dispatch-service --max-concurrent=200
  ./dryjets-driver --mode=agent-service --auto-accept --lat=52.52 --lng=13.405`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./dryjets-driver --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
