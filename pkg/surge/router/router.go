// Package router implements dispatch (spec.md §4.7): per-method route
// lists matched in insertion order, middleware chaining, and the
// static-file handler. The Handler/Middleware shape — a middleware is
// func(Handler) Handler, composed by folding the list from the back so
// the first-registered middleware runs outermost — is grounded on the
// teacher's bolt/core/types.go (Handler func(*Context) error, Middleware
// func(Handler) Handler) and bolt/core/app.go's Use/addRoute registration.
package router

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/wattlab/surge/pkg/surge"
)

// Handler answers one request, given its path parameters and (when the
// request carried a JSON body) the parsed value.
type Handler func(req *surge.Request, params map[string]string, jsonBody gjson.Result) *surge.Response

// Middleware wraps a Handler to produce another Handler. A middleware
// may decline to call next, short-circuiting the chain (spec.md §4.7
// "Middleware may short-circuit by not calling next_thunk").
type Middleware func(next Handler) Handler

type route struct {
	pattern *regexp.Regexp
	params  []string
	handler Handler
}

// Router holds compiled routes, ordered middleware, and static-file
// configuration (spec.md §4.7 "State").
type Router struct {
	routes     map[surge.Method][]route
	middleware []Middleware
	statics    *StaticHandler
}

// New returns an empty Router. Attach a static handler with
// SetStatic before serving requests that should fall through to disk.
func New() *Router {
	return &Router{routes: make(map[surge.Method][]route)}
}

// SetStatic installs the static-file handler consulted before route
// dispatch (spec.md §4.7 step 1).
func (r *Router) SetStatic(s *StaticHandler) {
	r.statics = s
}

// Use appends global middleware, executed in registration order
// (bolt/core/app.go Use doc: "Middleware is executed in the order it's
// registered").
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

var paramPattern = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// Handle registers handler for method and path. path may contain
// :name segments; each becomes a non-slash capture group, and the
// whole pattern is anchored start-to-end (spec.md §4.7 "Route
// compilation").
func (r *Router) Handle(method surge.Method, path string, handler Handler) {
	var names []string
	regexSrc := paramPattern.ReplaceAllStringFunc(path, func(m string) string {
		name := m[1:]
		names = append(names, name)
		return `([^/]+)`
	})
	compiled := regexp.MustCompile("^" + regexSrc + "$")
	r.routes[method] = append(r.routes[method], route{pattern: compiled, params: names, handler: handler})
}

func (r *Router) Get(path string, h Handler)    { r.Handle(surge.MethodGET, path, h) }
func (r *Router) Post(path string, h Handler)   { r.Handle(surge.MethodPOST, path, h) }
func (r *Router) Put(path string, h Handler)    { r.Handle(surge.MethodPUT, path, h) }
func (r *Router) Delete(path string, h Handler) { r.Handle(surge.MethodDELETE, path, h) }
func (r *Router) Patch(path string, h Handler)  { r.Handle(surge.MethodPATCH, path, h) }
func (r *Router) Head(path string, h Handler)   { r.Handle(surge.MethodHEAD, path, h) }

// match finds the first route (in insertion order) whose pattern
// matches path, returning its handler and bound parameters. hadMethod
// reports whether the method has any registered routes at all, which
// the caller uses to distinguish 404 from 405 (spec.md §4.7 "Matching").
func (r *Router) match(method surge.Method, path string) (Handler, map[string]string, bool) {
	routes, hadMethod := r.routes[method]
	if !hadMethod || len(routes) == 0 {
		return nil, nil, false
	}
	for _, rt := range routes {
		m := rt.pattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		params := make(map[string]string, len(rt.params))
		for i, name := range rt.params {
			params[name] = m[i+1]
		}
		return rt.handler, params, true
	}
	return nil, nil, true
}

// Dispatch runs the full pipeline for req (spec.md §4.7 "Dispatch"):
// static file handler first, then the matched route (wrapped by
// middleware in registration order), falling back to 404/405.
func (r *Router) Dispatch(req *surge.Request, jsonBody gjson.Result) *surge.Response {
	terminal := func(req *surge.Request, params map[string]string, jsonBody gjson.Result) *surge.Response {
		if r.statics != nil && req.Method == surge.MethodGET {
			if resp := r.statics.Serve(req); resp != nil {
				return resp
			}
		}

		handler, matchedParams, hadMethod := r.match(req.Method, req.Path)
		if handler != nil {
			return handler(req, matchedParams, jsonBody)
		}
		if hadMethod {
			return errorResponse(req, surge.StatusNotFound, "not found")
		}
		return errorResponse(req, surge.StatusMethodNotAllowed, "method not allowed")
	}

	chain := terminal
	for i := len(r.middleware) - 1; i >= 0; i-- {
		chain = r.middleware[i](chain)
	}
	return chain(req, nil, jsonBody)
}

// PrefersHTML reports whether req's Accept header favors text/html over
// a JSON error body (spec.md §4.7 "Content negotiation for error
// bodies"). Exported so handlers outside this package can produce the
// same negotiated error shape the static handler and dispatch fallback
// use.
func PrefersHTML(req *surge.Request) bool {
	accept, ok := req.Header.Get("Accept")
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(accept), "text/html")
}

func errorResponse(req *surge.Request, status surge.Status, message string) *surge.Response {
	if PrefersHTML(req) {
		body := "<html><body><h1>" + status.Reason() + "</h1><p>" + message + "</p></body></html>"
		return surge.NewResponse(status, "text/html", []byte(body))
	}
	body := `{"error":"` + escapeJSON(message) + `"}`
	return surge.NewResponse(status, "application/json", []byte(body))
}

func escapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
