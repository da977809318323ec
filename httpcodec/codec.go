// Package httpcodec maps a request line to a status and resource, and frames
// a response as status line, Content-Length header and body.
package httpcodec

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/y001j/uringhttp/resource"
)

// Status is an HTTP status code.
type Status int

const (
	StatusOK       Status = 200
	StatusNotFound Status = 404
)

// Line returns the HTTP/1.1 status line. Unknown codes render as not found.
func (s Status) Line() string {
	switch s {
	case StatusOK:
		return "HTTP/1.1 200 OK"
	default:
		return "HTTP/1.1 404 NOT FOUND"
	}
}

// ErrShortBuffer is returned when a response does not fit its buffer.
var ErrShortBuffer = errors.New("httpcodec: response exceeds buffer")

const contentLength = "\r\nContent-Length: "

// ResponseLen is the framed size of a response with an n-byte body.
func ResponseLen(s Status, n int) int {
	var num [20]byte
	return len(s.Line()) + len(contentLength) + len(strconv.AppendInt(num[:0], int64(n), 10)) + 4 + n
}

// Encode writes the framed response for body into out and returns its
// length. body may alias out.
func Encode(s Status, body, out []byte) (int, error) {
	var num [20]byte
	digits := strconv.AppendInt(num[:0], int64(len(body)), 10)
	hlen := len(s.Line()) + len(contentLength) + len(digits) + 4
	total := hlen + len(body)
	if total > len(out) {
		return 0, ErrShortBuffer
	}
	// copy is a memmove, so an aliased body survives being shifted.
	copy(out[hlen:], body)
	h := append(out[:0], s.Line()...)
	h = append(h, contentLength...)
	h = append(h, digits...)
	_ = append(h, "\r\n\r\n"...)
	return total, nil
}

// Route is what a request line resolves to.
type Route struct {
	Status   Status
	Resource resource.ID
}

// Router resolves request lines by method and path. Decode is total: any
// line without a route gets the fallback.
type Router struct {
	routes   map[string]Route
	fallback Route
}

// NewRouter returns an empty router answering everything with fallback.
func NewRouter(fallback Route) *Router {
	return &Router{routes: make(map[string]Route), fallback: fallback}
}

// DefaultRouter serves hello on GET / and not-found otherwise.
func DefaultRouter() *Router {
	r := NewRouter(Route{Status: StatusNotFound, Resource: resource.NotFound})
	r.Handle("GET", "/", Route{Status: StatusOK, Resource: resource.Hello})
	return r
}

// Handle adds a route for method and path.
func (r *Router) Handle(method, path string, route Route) {
	r.routes[method+" "+path] = route
}

// Routes returns every route including the fallback.
func (r *Router) Routes() []Route {
	out := make([]Route, 0, len(r.routes)+1)
	for _, rt := range r.routes {
		out = append(out, rt)
	}
	return append(out, r.fallback)
}

// Decode resolves the first line of req. Only HTTP/1.1 request lines of the
// exact form "METHOD SP PATH SP HTTP/1.1" can match a route.
func (r *Router) Decode(req []byte) (Status, resource.ID) {
	rt := r.lookup(RequestLine(req))
	return rt.Status, rt.Resource
}

func (r *Router) lookup(line []byte) Route {
	if bytes.Count(line, []byte{' '}) != 2 {
		return r.fallback
	}
	i := bytes.LastIndexByte(line, ' ')
	if string(line[i+1:]) != "HTTP/1.1" {
		return r.fallback
	}
	if rt, ok := r.routes[string(line[:i])]; ok {
		return rt
	}
	return r.fallback
}

// RequestLine returns req up to its first line break.
func RequestLine(req []byte) []byte {
	if i := bytes.IndexByte(req, '\n'); i >= 0 {
		req = req[:i]
	}
	return bytes.TrimSuffix(req, []byte{'\r'})
}
