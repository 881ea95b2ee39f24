package api

import "github.com/michaelbrown/pylearn/internal/storage"

// MaxBodyBytes caps JSON request bodies and websocket messages.
const MaxBodyBytes = 100 << 10

// Messages returned in error documents.
const (
	MsgScriptNotFound  = "Script not found"
	MsgLessonNotFound  = "Lesson not found"
	MsgCodeRequired    = "Code is required"
	MsgInternal        = "Internal server error"
	MsgCapacityReached = "Execution capacity exhausted"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// CreateScriptRequest is the body of POST /api/scripts.
type CreateScriptRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content" validate:"required"`
	Output  *string `json:"output"`
}

// ToNewScript applies defaults. It must only be called on a validated request.
func (r CreateScriptRequest) ToNewScript() storage.NewScript {
	ns := storage.NewScript{
		Title:  storage.DefaultScriptTitle,
		Output: r.Output,
	}
	if r.Content != nil {
		ns.Content = *r.Content
	}
	if r.Title != nil && *r.Title != "" {
		ns.Title = *r.Title
	}
	return ns
}

// ExecuteRequest is the body of POST /api/execute.
type ExecuteRequest struct {
	Code string `json:"code"`
}

// ExecuteResponse is the body of a completed execution. Error is set when
// the script itself failed.
type ExecuteResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}
