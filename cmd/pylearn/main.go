package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/pylearn/internal/client"
	"github.com/michaelbrown/pylearn/internal/config"
)

var (
	serverFlag string
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:   "pylearn",
	Short: "pylearn - Python lessons and a code runner",
	Long: `pylearn serves Python lessons and saved scripts over a JSON API and
runs submitted Python code in a sandboxed interpreter with a hard timeout.

Run "pylearn serve" to start the server. The other commands talk to a
running server (see --server).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Server URL (overrides client.server_url)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./pylearn.yaml or ~/.pylearn/pylearn.yaml)")
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFlag != "" {
		cfg, err = config.LoadFile(configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newClient builds an API client for the configured server.
func newClient() (*client.Client, error) {
	url := serverFlag
	if url == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		url = cfg.Client.ServerURL
	}
	return client.New(url, nil), nil
}
