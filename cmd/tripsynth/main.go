// tripsynth synthesizes travel itineraries from planner role outputs and
// serves the synthesis and monitoring tools over MCP.
//
// Usage:
//
//	tripsynth synthesize --architect a.json --gatherer g.json --specialist s.json --putter p.json
//	tripsynth serve [--config tripsynth.yaml] [--debug]
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"goa.design/clue/log"
)

// exitError carries a process exit code
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

// logContext configures clue. Logs always go to stderr so stdout stays
// reserved for results and the MCP transport.
func logContext(ctx context.Context, stderr io.Writer, debug bool) context.Context {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx = log.Context(ctx, log.WithFormat(format), log.WithOutput(stderr))
	if debug {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}
	return ctx
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return &exitError{code: 2, err: fmt.Errorf("missing command")}
	}

	switch args[0] {
	case "synthesize":
		return runSynthesize(ctx, args[1:], stdout, stderr)
	case "serve":
		return runServe(ctx, args[1:], stdin, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return &exitError{code: 2, err: fmt.Errorf("unknown command %q", args[0])}
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `tripsynth merges architect, gatherer, specialist and putter outputs into an itinerary.

Usage:
  tripsynth synthesize --architect FILE --gatherer FILE --specialist FILE --putter FILE [--config FILE]
  tripsynth serve [--config FILE] [--debug]

Role files are JSON; comments and trailing commas are accepted.
`)
}
