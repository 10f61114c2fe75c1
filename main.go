package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	agentservice "github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/cmd/agent_service"
	dispatchservice "github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/cmd/dispatch_service"
	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/cli"
)

func main() {
	// quick path for global help
	if len(os.Args) == 2 && (os.Args[1] == "--help" || os.Args[1] == "-h") {
		cli.PrintUsage(os.Stdout)
		os.Exit(0)
	}

	// parse mode and collect the remaining args for that mode
	mode, svcArgs, err := cli.ParseMode(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cli.PrintUsage(os.Stderr)
		os.Exit(2)
	}

	// context cancelled on SIGINT/SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch mode {

	case cli.ModeAgent:
		fs := flag.NewFlagSet(cli.ModeAgent, flag.ContinueOnError)
		autoAccept := fs.Bool("auto-accept", false, "Accept every order transition without prompting")
		lat := fs.Float64("lat", 52.5200, "Simulated GPS start latitude")
		lng := fs.Float64("lng", 13.4050, "Simulated GPS start longitude")
		step := fs.Float64("step-meters", 40, "Simulated GPS step per fix, in meters")
		cli.AttachUsage(fs, cli.ModeAgent)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *step <= 0 {
			fmt.Fprintln(os.Stderr, "Error: --step-meters must be > 0")
			fs.Usage()
			os.Exit(2)
		}
		err := agentservice.Run(ctx, agentservice.Options{
			AutoAccept: *autoAccept,
			Lat:        *lat,
			Lng:        *lng,
			StepMeters: *step,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	case cli.ModeDispatch:
		fs := flag.NewFlagSet(cli.ModeDispatch, flag.ContinueOnError)
		maxConc := fs.Int("max-concurrent", 200, "Maximum number of concurrent HTTP requests to process")
		cli.AttachUsage(fs, cli.ModeDispatch)

		if err := fs.Parse(svcArgs); err != nil {
			if err == flag.ErrHelp {
				os.Exit(0)
			}
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
		if *maxConc < 1 {
			fmt.Fprintln(os.Stderr, "Error: --max-concurrent must be >= 1")
			fs.Usage()
			os.Exit(2)
		}
		if err := dispatchservice.Run(ctx, *maxConc); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}

	default:
		// should not happen because ParseMode validates known modes
		fmt.Fprintln(os.Stderr, "Error: unknown mode")
		os.Exit(2)
	}

	// tiny delay to let deferred logs flush on very fast exits
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Millisecond):
	}
}
