// Package client is a typed HTTP client for the pylearn API. Every call is
// built from the route table in internal/api, so client and server cannot
// disagree on paths or methods.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/michaelbrown/pylearn/internal/api"
	"github.com/michaelbrown/pylearn/internal/executor"
	"github.com/michaelbrown/pylearn/internal/storage"
)

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("server returned %d: %s (%s)", e.Status, e.Message, e.Field)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to a pylearn server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		// Leaves headroom over the server's execution timeout.
		httpClient = &http.Client{Timeout: executor.DefaultTimeout + 25*time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) ListScripts(ctx context.Context) ([]storage.Script, error) {
	var scripts []storage.Script
	if err := c.do(ctx, api.ListScripts, nil, nil, &scripts); err != nil {
		return nil, err
	}
	return scripts, nil
}

// GetScript returns found=false when the server answers 404.
func (c *Client) GetScript(ctx context.Context, id int64) (*storage.Script, bool, error) {
	var script storage.Script
	err := c.do(ctx, api.GetScript, idParam(id), nil, &script)
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &script, true, nil
}

func (c *Client) CreateScript(ctx context.Context, req api.CreateScriptRequest) (*storage.Script, error) {
	var script storage.Script
	if err := c.do(ctx, api.CreateScript, nil, req, &script); err != nil {
		return nil, err
	}
	return &script, nil
}

func (c *Client) ListLessons(ctx context.Context) ([]storage.Lesson, error) {
	var lessons []storage.Lesson
	if err := c.do(ctx, api.ListLessons, nil, nil, &lessons); err != nil {
		return nil, err
	}
	return lessons, nil
}

// GetLesson returns found=false when the server answers 404.
func (c *Client) GetLesson(ctx context.Context, id int64) (*storage.Lesson, bool, error) {
	var lesson storage.Lesson
	err := c.do(ctx, api.GetLesson, idParam(id), nil, &lesson)
	if isNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &lesson, true, nil
}

// Execute runs code on the server. A script failure is reported in the
// response's Error field, not as an error.
func (c *Client) Execute(ctx context.Context, code string) (*api.ExecuteResponse, error) {
	var res api.ExecuteResponse
	if err := c.do(ctx, api.Execute, nil, api.ExecuteRequest{Code: code}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, route api.Route, params map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, route.Method, c.baseURL+route.URL(params), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", route.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != route.Success {
		return decodeAPIError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var doc api.ErrorResponse
	if err := json.Unmarshal(data, &doc); err == nil && doc.Message != "" {
		apiErr.Message = doc.Message
		apiErr.Field = doc.Field
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func idParam(id int64) map[string]string {
	return map[string]string{"id": strconv.FormatInt(id, 10)}
}
