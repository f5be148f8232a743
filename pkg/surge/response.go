package surge

import (
	"fmt"
	"io"
	"strconv"
)

// Body is the tagged union of response body representations (spec.md
// §3, §9): exactly one of InlineBody or StreamBody backs any Response.
// Callers dispatch explicitly with a type switch — no interface method
// calls into the body are needed.
type Body interface {
	isBody()
}

// InlineBody is a body held entirely in memory.
type InlineBody []byte

func (InlineBody) isBody() {}

// StreamBody describes a file region to be written from disk without
// buffering the whole thing in memory (spec.md §3).
type StreamBody struct {
	Path       string
	TotalBytes int64
	Offset     int64
}

func (StreamBody) isBody() {}

// Response is a not-yet-serialized HTTP response.
type Response struct {
	Status      Status
	ContentType string
	Header      *Header
	Body        Body
}

// NewResponse builds a Response with an inline body and the default
// headers spec.md §3 requires ("Server" and "X-Powered-By" set if
// absent).
func NewResponse(status Status, contentType string, body []byte) *Response {
	r := &Response{Status: status, ContentType: contentType, Header: NewHeader(), Body: InlineBody(body)}
	r.applyDefaultHeaders()
	return r
}

// NewStreamResponse builds a Response whose body will be streamed from
// disk by the connection writer (spec.md §4.10).
func NewStreamResponse(status Status, contentType string, stream StreamBody) *Response {
	r := &Response{Status: status, ContentType: contentType, Header: NewHeader(), Body: stream}
	r.applyDefaultHeaders()
	return r
}

func (r *Response) applyDefaultHeaders() {
	if !r.Header.Has("Server") {
		r.Header.Set("Server", "surge")
	}
	if !r.Header.Has("X-Powered-By") {
		r.Header.Set("X-Powered-By", "surge")
	}
}

// bodyLength returns the length to report as Content-Length for this
// response's body variant.
func (r *Response) bodyLength() int64 {
	switch b := r.Body.(type) {
	case InlineBody:
		return int64(len(b))
	case StreamBody:
		return b.TotalBytes
	default:
		return 0
	}
}

// WriteTo serializes the full response — status line, headers, blank
// line, and (for an inline body) the body itself — into w. Stream
// bodies are not written here; the connection handler streams them
// separately after calling WriteHeadersTo (spec.md §4.6, §4.10).
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := r.WriteHeadersTo(w)
	if err != nil {
		return n, err
	}
	if inline, ok := r.Body.(InlineBody); ok {
		m, err := w.Write(inline)
		return n + int64(m), err
	}
	return n, nil
}

// WriteHeadersTo serializes the status line and headers (ending in the
// blank line) without writing any body — the "headers-only variant" used
// when the body will be streamed separately (spec.md §4.6).
func (r *Response) WriteHeadersTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	fmt.Fprintf(cw, "HTTP/1.1 %d %s\r\n", r.Status.Int(), r.Status.Reason())
	fmt.Fprintf(cw, "Content-Type: %s\r\n", r.ContentType)
	fmt.Fprintf(cw, "Content-Length: %s\r\n", strconv.FormatInt(r.bodyLength(), 10))

	r.Header.VisitAll(func(name, value string) {
		if lowerASCII(name) == "content-type" || lowerASCII(name) == "content-length" {
			return // already emitted above; skip any second occurrence
		}
		fmt.Fprintf(cw, "%s: %s\r\n", name, value)
	})

	io.WriteString(cw, "\r\n")
	return cw.n, cw.err
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += int64(n)
	c.err = err
	return n, err
}
