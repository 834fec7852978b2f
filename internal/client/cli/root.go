package cli

import (
	"bufio"
	"context"
	"fmt"
)

// getStatus renders the prompt status, e.g. " (inspector-7 online)".
func (a *App) getStatus() string {
	s := ""
	if id := a.actor(); id != "" {
		s = id + " "
	}
	if m := a.mode(); m != "" {
		s = s + string(m)
	}
	if s != "" {
		s = fmt.Sprintf(" (%s)", s)
	}
	return s
}

// Root starts the availability watcher and runs the REPL until the user
// exits or ctx is done.
func (a *App) Root(ctx context.Context, scanner *bufio.Scanner) {
	printlnFn("Welcome to TrueCam CLI (type 'help' for commands)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.pinger != nil {
		go a.StartOnlineStatusWatcher(ctx, onlineCheckInterval)
	}

	runREPL(ctx, a, a.getStatus, scanner)
}
