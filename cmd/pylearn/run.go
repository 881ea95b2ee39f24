package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var errExecutionFailed = errors.New("execution failed")

var runCmd = &cobra.Command{
	Use:   "run <file.py>",
	Short: "Execute a Python file on the server",
	Long: `Send a Python file to the server's /api/execute endpoint and print the
result. Use "-" to read the code from stdin.

Examples:
  pylearn run hello.py
  echo "print(2 ** 10)" | pylearn run -`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("reading code: %w", err)
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	res, err := c.Execute(cmd.Context(), string(data))
	if err != nil {
		return err
	}

	if res.Error != "" {
		fmt.Fprint(cmd.ErrOrStderr(), res.Output)
		return errExecutionFailed
	}
	fmt.Fprint(cmd.OutOrStdout(), res.Output)
	return nil
}
