package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/pylearn/internal/client"
)

const (
	replPrompt     = "\033[36m>>>\033[0m "
	replContPrompt = "\033[36m...\033[0m "
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive Python session against the server",
	Long: `Type Python code line by line. A blank line sends the buffered block to
the server for execution. Each block runs as a fresh script.

Commands:
  /reset   discard the buffered block
  /quit    exit`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(os.TempDir(), "pylearn_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(rl.Stdout(), "pylearn repl. Blank line runs the block, /quit exits.")

	var block []string
	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && len(block) > 0 {
				block = block[:0]
				rl.SetPrompt(replPrompt)
				continue
			}
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Fprintln(rl.Stdout(), "\nGoodbye!")
				return nil
			}
			return err
		}

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			return nil
		case "/reset":
			block = block[:0]
			rl.SetPrompt(replPrompt)
			continue
		case "":
			if len(block) == 0 {
				continue
			}
			runBlock(cmd.Context(), c, rl, strings.Join(block, "\n")+"\n")
			block = block[:0]
			rl.SetPrompt(replPrompt)
			continue
		}

		block = append(block, line)
		rl.SetPrompt(replContPrompt)
	}
}

func runBlock(ctx context.Context, c *client.Client, rl *readline.Instance, code string) {
	res, err := c.Execute(ctx, code)
	if err != nil {
		fmt.Fprintf(rl.Stderr(), "\033[31merror:\033[0m %v\n", err)
		return
	}
	if res.Error != "" {
		fmt.Fprintf(rl.Stderr(), "\033[31m%s\033[0m\n", strings.TrimRight(res.Output, "\n"))
		return
	}
	if res.Output != "" {
		fmt.Fprint(rl.Stdout(), res.Output)
		if !strings.HasSuffix(res.Output, "\n") {
			fmt.Fprintln(rl.Stdout())
		}
	}
}
