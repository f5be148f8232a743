package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wattlab/surge/pkg/surge"
	"github.com/wattlab/surge/pkg/surge/cache"
)

func writeTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestStaticHandlerServesFile(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "doc.txt", []byte("hello world"))

	sh, err := NewStaticHandler(dir, "/static/", cache.New(10))
	if err != nil {
		t.Fatalf("NewStaticHandler: %v", err)
	}

	req := newReq(surge.MethodGET, "/static/doc.txt")
	resp := sh.Serve(req)
	if resp == nil {
		t.Fatal("expected a response")
	}
	if resp.Status != surge.StatusOK {
		t.Fatalf("status = %v; want 200", resp.Status)
	}
	if string(resp.Body.(surge.InlineBody)) != "hello world" {
		t.Fatalf("body = %q", resp.Body)
	}
	if resp.ContentType != "text/plain" {
		t.Fatalf("content type = %q; want text/plain", resp.ContentType)
	}
}

// TestStaticHandlerRangeRequest exercises spec.md §8's range law: a
// 20-byte file requested with bytes=0-4 returns 206 with
// Content-Range: bytes 0-4/20 and Content-Length: 5.
func TestStaticHandlerRangeRequest(t *testing.T) {
	dir := t.TempDir()
	content := []byte("01234567890123456789") // 20 bytes
	writeTempFile(t, dir, "doc.txt", content)

	sh, err := NewStaticHandler(dir, "/static/", cache.New(10))
	if err != nil {
		t.Fatalf("NewStaticHandler: %v", err)
	}

	req := newReq(surge.MethodGET, "/static/doc.txt")
	rs, err := surge.ParseRange("bytes=0-4")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	req.Range = &rs

	resp := sh.Serve(req)
	if resp.Status != surge.StatusPartialContent {
		t.Fatalf("status = %v; want 206", resp.Status)
	}
	if cr, _ := resp.Header.Get("Content-Range"); cr != "bytes 0-4/20" {
		t.Fatalf("Content-Range = %q; want bytes 0-4/20", cr)
	}
	if len(resp.Body.(surge.InlineBody)) != 5 {
		t.Fatalf("body length = %d; want 5", len(resp.Body.(surge.InlineBody)))
	}
}

// TestStaticHandlerRangeBeyondEndIs416 exercises spec.md §8's second
// range law: bytes=S- against a size-S file is 416 with
// Content-Range: bytes */S.
func TestStaticHandlerRangeBeyondEndIs416(t *testing.T) {
	dir := t.TempDir()
	content := []byte("01234567890123456789") // 20 bytes
	writeTempFile(t, dir, "doc.txt", content)

	sh, err := NewStaticHandler(dir, "/static/", cache.New(10))
	if err != nil {
		t.Fatalf("NewStaticHandler: %v", err)
	}

	req := newReq(surge.MethodGET, "/static/doc.txt")
	rs, err := surge.ParseRange("bytes=20-")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	req.Range = &rs

	resp := sh.Serve(req)
	if resp.Status != surge.StatusRangeNotSatisfiable {
		t.Fatalf("status = %v; want 416", resp.Status)
	}
	if cr, _ := resp.Header.Get("Content-Range"); cr != "bytes */20" {
		t.Fatalf("Content-Range = %q; want bytes */20", cr)
	}
}

// TestStaticHandlerPathTraversalIsForbidden exercises spec.md §8's path
// traversal law: any request path under the static prefix containing
// ".." returns 403.
func TestStaticHandlerPathTraversalIsForbidden(t *testing.T) {
	dir := t.TempDir()
	sh, err := NewStaticHandler(dir, "/static/", cache.New(10))
	if err != nil {
		t.Fatalf("NewStaticHandler: %v", err)
	}

	req := newReq(surge.MethodGET, "/static/../etc/passwd")
	resp := sh.Serve(req)
	if resp.Status != surge.StatusForbidden {
		t.Fatalf("status = %v; want 403", resp.Status)
	}
}

func TestStaticHandlerMissingFileIs404(t *testing.T) {
	dir := t.TempDir()
	sh, err := NewStaticHandler(dir, "/static/", cache.New(10))
	if err != nil {
		t.Fatalf("NewStaticHandler: %v", err)
	}

	req := newReq(surge.MethodGET, "/static/nope.txt")
	resp := sh.Serve(req)
	if resp.Status != surge.StatusNotFound {
		t.Fatalf("status = %v; want 404", resp.Status)
	}
}

func TestStaticHandlerDirectoryIs404(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	sh, err := NewStaticHandler(dir, "/static/", cache.New(10))
	if err != nil {
		t.Fatalf("NewStaticHandler: %v", err)
	}

	req := newReq(surge.MethodGET, "/static/sub")
	resp := sh.Serve(req)
	if resp.Status != surge.StatusNotFound {
		t.Fatalf("status = %v; want 404", resp.Status)
	}
}

func TestStaticHandlerStreamsAboveThreshold(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, 100)
	writeTempFile(t, dir, "big.bin", big)

	sh, err := NewStaticHandler(dir, "/static/", cache.New(10))
	if err != nil {
		t.Fatalf("NewStaticHandler: %v", err)
	}
	sh.StreamThreshold = 10 // force the stream path for this small fixture

	req := newReq(surge.MethodGET, "/static/big.bin")
	resp := sh.Serve(req)
	stream, ok := resp.Body.(surge.StreamBody)
	if !ok {
		t.Fatalf("expected a StreamBody, got %T", resp.Body)
	}
	if stream.TotalBytes != 100 {
		t.Fatalf("TotalBytes = %d; want 100", stream.TotalBytes)
	}
}

func TestStaticHandlerNotConsultedOutsidePrefix(t *testing.T) {
	dir := t.TempDir()
	sh, err := NewStaticHandler(dir, "/static/", cache.New(10))
	if err != nil {
		t.Fatalf("NewStaticHandler: %v", err)
	}

	req := newReq(surge.MethodGET, "/api/users")
	if resp := sh.Serve(req); resp != nil {
		t.Fatalf("expected nil for a path outside the static prefix, got %+v", resp)
	}
}
