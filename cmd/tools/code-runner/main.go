// Command code-runner exposes the pylearn execution service as
// an MCP stdio tool.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/pylearn/internal/config"
	"github.com/michaelbrown/pylearn/internal/executor"
	"github.com/michaelbrown/pylearn/internal/sandbox"
)

const maxToolOutput = 4000

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the MCP protocol.
	logger := cfg.NewLogger(os.Stderr)

	sb, err := sandbox.FromConfig(cfg.Executor, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating sandbox: %v\n", err)
		os.Exit(1)
	}
	svc := executor.New(sb, executor.Config{
		Timeout:       cfg.Executor.Timeout,
		ScratchDir:    cfg.Executor.ScratchDir,
		MaxConcurrent: cfg.Executor.MaxConcurrent,
	}, nil, logger)

	s := server.NewMCPServer("pylearn-code-runner", "0.1.0")
	s.AddTool(pythonRunTool(svc.Timeout().String()), newRunHandler(svc))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}
}

func pythonRunTool(timeout string) mcp.Tool {
	return mcp.Tool{
		Name:        "python_run",
		Description: fmt.Sprintf("Execute Python code and return its output. Each call runs a fresh interpreter with a %s timeout.", timeout),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python source code to execute",
				},
			},
			Required: []string{"code"},
		},
	}
}

func newRunHandler(svc *executor.Service) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return errResult("error: invalid arguments"), nil
		}

		code, _ := args["code"].(string)
		if code == "" {
			return errResult("error: 'code' is required"), nil
		}

		res, err := svc.Execute(ctx, code)
		if err != nil {
			return errResult(fmt.Sprintf("error: %v", err)), nil
		}

		text := res.Output
		if res.Failed() {
			text = strings.TrimRight(text, "\n") + "\n" + res.Error
		}
		if len(text) > maxToolOutput {
			text = text[:maxToolOutput] + "\n... (output truncated)"
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
			IsError: res.Failed(),
		}, nil
	}
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
