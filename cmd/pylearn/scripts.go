package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/pylearn/internal/api"
	"github.com/michaelbrown/pylearn/internal/storage"
)

var (
	titleFlag    string
	exportFormat string
	exportOutput string
)

var scriptsCmd = &cobra.Command{
	Use:     "scripts",
	Aliases: []string{"script", "s"},
	Short:   "Manage saved scripts",
}

var scriptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved scripts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runScriptsList,
}

var scriptsShowCmd = &cobra.Command{
	Use:   "show <script-id>",
	Short: "Show a script and its saved output",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptsShow,
}

var scriptsCreateCmd = &cobra.Command{
	Use:   "create <file.py>",
	Short: "Save a Python file as a script",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptsCreate,
}

var scriptsExportCmd = &cobra.Command{
	Use:   "export <script-id>",
	Short: "Export a script as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runScriptsExport,
}

func init() {
	rootCmd.AddCommand(scriptsCmd)
	scriptsCmd.AddCommand(scriptsListCmd, scriptsShowCmd, scriptsCreateCmd, scriptsExportCmd)

	scriptsCreateCmd.Flags().StringVar(&titleFlag, "title", "", "Script title (default: "+storage.DefaultScriptTitle+")")

	scriptsExportCmd.Flags().StringVar(&exportFormat, "format", "md", "Export format: md or json")
	scriptsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}

func runScriptsList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	scripts, err := c.ListScripts(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(scripts) == 0 {
		fmt.Fprintln(out, "No scripts found.")
		return nil
	}

	// Header
	fmt.Fprintf(out, "%-6s %-40s %-8s %s\n", "ID", "TITLE", "LINES", "CREATED")
	fmt.Fprintln(out, strings.Repeat("─", 70))

	for _, s := range scripts {
		title := s.Title
		if len(title) > 38 {
			title = title[:38] + ".."
		}
		fmt.Fprintf(out, "%-6d %-40s %-8d %s\n", s.ID, title, lineCount(s.Content), timeAgo(s.CreatedAt))
	}

	return nil
}

func runScriptsShow(cmd *cobra.Command, args []string) error {
	script, err := fetchScript(cmd, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Script:   %d\n", script.ID)
	fmt.Fprintf(out, "Title:    %s\n", script.Title)
	fmt.Fprintf(out, "Created:  %s\n", script.CreatedAt.Format(time.RFC3339))
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintln(out, strings.TrimRight(script.Content, "\n"))

	if script.Output != nil {
		fmt.Fprintln(out, strings.Repeat("─", 60))
		fmt.Fprintf(out, "\033[90m%s\033[0m\n", truncate(*script.Output, 2000))
	}
	return nil
}

func runScriptsCreate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	content := string(data)
	req := api.CreateScriptRequest{Content: &content}
	if titleFlag != "" {
		req.Title = &titleFlag
	}

	script, err := c.CreateScript(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved script %d (%s).\n", script.ID, script.Title)
	return nil
}

func runScriptsExport(cmd *cobra.Command, args []string) error {
	script, err := fetchScript(cmd, args[0])
	if err != nil {
		return err
	}

	var output string
	switch exportFormat {
	case "json":
		data, err := storage.ExportJSON(script)
		if err != nil {
			return err
		}
		output = string(data) + "\n"
	case "md", "markdown":
		output = storage.ExportMarkdown(script)
	default:
		return fmt.Errorf("unknown export format %q (want md or json)", exportFormat)
	}

	if exportOutput != "" {
		return os.WriteFile(exportOutput, []byte(output), 0o644)
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

func fetchScript(cmd *cobra.Command, arg string) (*storage.Script, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}

	c, err := newClient()
	if err != nil {
		return nil, err
	}

	script, found, err := c.GetScript(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("script %d not found", id)
	}
	return script, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func lineCount(s string) int {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
