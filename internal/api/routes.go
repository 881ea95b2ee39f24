// Package api is the HTTP contract shared by the server and the client: the
// route table, path building and the request/response documents.
package api

import (
	"net/http"
	"net/url"
	"strings"
)

// Route describes one endpoint. Path uses chi-style {name} placeholders.
type Route struct {
	Name    string
	Method  string
	Path    string
	Success int
}

var (
	ListScripts  = Route{Name: "scripts.list", Method: http.MethodGet, Path: "/api/scripts", Success: http.StatusOK}
	CreateScript = Route{Name: "scripts.create", Method: http.MethodPost, Path: "/api/scripts", Success: http.StatusCreated}
	GetScript    = Route{Name: "scripts.get", Method: http.MethodGet, Path: "/api/scripts/{id}", Success: http.StatusOK}
	ListLessons  = Route{Name: "lessons.list", Method: http.MethodGet, Path: "/api/lessons", Success: http.StatusOK}
	GetLesson    = Route{Name: "lessons.get", Method: http.MethodGet, Path: "/api/lessons/{id}", Success: http.StatusOK}
	Execute      = Route{Name: "execute", Method: http.MethodPost, Path: "/api/execute", Success: http.StatusOK}
)

// Routes is every endpoint of the JSON API.
var Routes = []Route{
	ListScripts,
	CreateScript,
	GetScript,
	ListLessons,
	GetLesson,
	Execute,
}

// Lookup returns the route with the given name.
func Lookup(name string) (Route, bool) {
	for _, r := range Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// URL fills the route's placeholders from params.
func (r Route) URL(params map[string]string) string {
	return BuildURL(r.Path, params)
}

// BuildURL replaces {key} placeholders in path with escaped values from
// params. Placeholders without a matching param are left as they are.
func BuildURL(path string, params map[string]string) string {
	for k, v := range params {
		path = strings.ReplaceAll(path, "{"+k+"}", url.PathEscape(v))
	}
	return path
}
