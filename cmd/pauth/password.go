// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// termReadPassword is a test seam for term.ReadPassword.
var termReadPassword = term.ReadPassword

// readPassword prompts on stderr. A terminal on stdin is read without echo;
// anything else is read as a single line so passwords can be piped in.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		pw, err := termReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// passwordFlag returns the named flag's value when it was given, and
// otherwise prompts for it.
func (c *cli) passwordFlag(cmd *cobra.Command, name, prompt string) (string, error) {
	if cmd.Flags().Changed(name) {
		return cmd.Flags().GetString(name)
	}
	return c.deps.PasswordReader(cmd, prompt)
}
