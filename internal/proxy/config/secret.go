package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Terminal seams, replaced in tests.
var (
	isTerminal   = term.IsTerminal
	readPassword = term.ReadPassword
)

// PromptSecret asks for the client secret on the terminal when none was
// configured. Input is not echoed. When stdin is not a terminal it reads
// one line from in instead. Nothing is asked when a secret is already set
// or no client id is configured.
func PromptSecret(cfg *Config, in *os.File, out io.Writer) error {
	if cfg.ClientSecret != "" || cfg.ClientID == "" {
		return nil
	}

	fmt.Fprint(out, "QTSP client secret: ")

	fd := int(in.Fd())
	if isTerminal(fd) {
		b, err := readPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		cfg.ClientSecret = strings.TrimSpace(string(b))
		return nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read secret: %w", err)
	}
	cfg.ClientSecret = strings.TrimSpace(line)
	return nil
}
