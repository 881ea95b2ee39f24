package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/michaelbrown/pylearn/internal/api"
	"github.com/michaelbrown/pylearn/internal/executor"
	"github.com/michaelbrown/pylearn/internal/storage"
	"github.com/michaelbrown/pylearn/internal/validate"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorResponse{Message: msg})
}

// writeInternal logs err and answers with a generic 500.
func (s *Server) writeInternal(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), "request failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, api.MsgInternal)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) *validate.Error {
	r.Body = http.MaxBytesReader(w, r.Body, api.MaxBodyBytes)
	defer r.Body.Close()
	return validate.Decode(r.Body, v)
}

func writeDecodeError(w http.ResponseWriter, verr *validate.Error) {
	status := http.StatusBadRequest
	if verr.TooLarge() {
		status = http.StatusRequestEntityTooLarge
	}
	writeJSON(w, status, api.ErrorResponse{Message: verr.Message, Field: verr.Field})
}

// pathID parses the {id} parameter. Anything that is not a positive integer
// cannot name a row.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// --- Script handlers ---

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := s.store.ListScripts(r.Context())
	if err != nil {
		s.writeInternal(w, r, "list scripts", err)
		return
	}

	if scripts == nil {
		scripts = []storage.Script{}
	}
	writeJSON(w, api.ListScripts.Success, scripts)
}

func (s *Server) handleCreateScript(w http.ResponseWriter, r *http.Request) {
	var req api.CreateScriptRequest
	if verr := decodeJSON(w, r, &req); verr != nil {
		writeDecodeError(w, verr)
		return
	}

	script, err := s.store.CreateScript(r.Context(), req.ToNewScript())
	if err != nil {
		s.writeInternal(w, r, "create script", err)
		return
	}

	writeJSON(w, api.CreateScript.Success, script)
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, api.MsgScriptNotFound)
		return
	}

	script, found, err := s.store.GetScript(r.Context(), id)
	if err != nil {
		s.writeInternal(w, r, "get script", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, api.MsgScriptNotFound)
		return
	}

	writeJSON(w, api.GetScript.Success, script)
}

// --- Lesson handlers ---

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.store.ListLessons(r.Context())
	if err != nil {
		s.writeInternal(w, r, "list lessons", err)
		return
	}

	if lessons == nil {
		lessons = []storage.Lesson{}
	}
	writeJSON(w, api.ListLessons.Success, lessons)
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, api.MsgLessonNotFound)
		return
	}

	lesson, found, err := s.store.GetLesson(r.Context(), id)
	if err != nil {
		s.writeInternal(w, r, "get lesson", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, api.MsgLessonNotFound)
		return
	}

	writeJSON(w, api.GetLesson.Success, lesson)
}

// --- Execution handler ---

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req api.ExecuteRequest
	if verr := decodeJSON(w, r, &req); verr != nil {
		writeDecodeError(w, verr)
		return
	}

	res, err := s.executor.Execute(r.Context(), req.Code)
	if err != nil {
		status, msg := executeErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.writeInternal(w, r, "execute", err)
			return
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, api.Execute.Success, api.ExecuteResponse{Output: res.Output, Error: res.Error})
}

// executeErrorStatus maps an executor error to its HTTP status and message.
func executeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, executor.ErrEmptyCode):
		return http.StatusBadRequest, api.MsgCodeRequired
	case errors.Is(err, executor.ErrBusy):
		return http.StatusServiceUnavailable, api.MsgCapacityReached
	default:
		return http.StatusInternalServerError, api.MsgInternal
	}
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
