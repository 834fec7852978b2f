package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Capture(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Image(ctx context.Context, args []string) error
	Verify(ctx context.Context, args []string) error
	Actor(ctx context.Context, args []string) error
	Orphans(ctx context.Context) error
	Metrics(ctx context.Context) error
	Clear(ctx context.Context, args []string) error
}

const helpText = "Available commands: capture <file> [lat lon [acc]], (l)ist, show <id>, image <id>, verify <file>, actor [id|-], orphans, metrics, clear -y, exit"

// runREPL reads a line from the scanner, parses the first token as the
// command, and dispatches to methods on 'a'. The loop exits on scanner EOF,
// on "exit"/"quit", or when ctx is done.
//
// Errors returned by command handlers are ignored here; handlers print their
// own messages.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("tc%s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help", "?":
			printlnFn(helpText)

		case "capture", "c":
			_ = a.Capture(ctx, args)

		case "l", "list":
			_ = a.List(ctx)

		case "show":
			_ = a.Show(ctx, args)

		case "image":
			_ = a.Image(ctx, args)

		case "verify":
			_ = a.Verify(ctx, args)

		case "actor":
			_ = a.Actor(ctx, args)

		case "orphans":
			_ = a.Orphans(ctx)

		case "metrics":
			_ = a.Metrics(ctx)

		case "clear":
			_ = a.Clear(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
