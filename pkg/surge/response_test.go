package surge

import (
	"bytes"
	"strings"
	"testing"
)

func TestResponseWriteToBasic(t *testing.T) {
	r := NewResponse(StatusOK, "text/plain", []byte("ok"))
	var buf bytes.Buffer
	if _, err := r.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("status line wrong: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 2\r\n") {
		t.Fatalf("missing Content-Length: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nok") {
		t.Fatalf("missing body: %q", out)
	}
}

func TestResponseDefaultHeaders(t *testing.T) {
	r := NewResponse(StatusOK, "text/plain", nil)
	if v, ok := r.Header.Get("Server"); !ok || v == "" {
		t.Fatalf("Server header missing: %q", v)
	}
	if v, ok := r.Header.Get("X-Powered-By"); !ok || v == "" {
		t.Fatalf("X-Powered-By header missing: %q", v)
	}
}

func TestResponseSkipsDuplicateContentHeaders(t *testing.T) {
	r := NewResponse(StatusOK, "text/plain", []byte("hi"))
	r.Header.Set("Content-Type", "application/json") // should not produce a second line
	var buf bytes.Buffer
	r.WriteTo(&buf)

	if strings.Count(buf.String(), "Content-Type:") != 1 {
		t.Fatalf("expected exactly one Content-Type line, got:\n%s", buf.String())
	}
}

func TestResponseHeadersOnlyHasNoBody(t *testing.T) {
	r := NewStreamResponse(StatusOK, "application/octet-stream", StreamBody{Path: "/f", TotalBytes: 100})
	var buf bytes.Buffer
	n, err := r.WriteHeadersTo(&buf)
	if err != nil {
		t.Fatalf("WriteHeadersTo: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Fatalf("reported %d bytes, wrote %d", n, buf.Len())
	}
	if !strings.Contains(buf.String(), "Content-Length: 100\r\n") {
		t.Fatalf("missing stream Content-Length: %q", buf.String())
	}
	if !strings.HasSuffix(buf.String(), "\r\n\r\n") {
		t.Fatalf("headers-only body should end at blank line: %q", buf.String())
	}
}
