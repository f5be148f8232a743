// Static file serving (spec.md §4.8): path-traversal defense, weak
// canonicalisation under a configured root, content negotiation by file
// extension, the cache/stream threshold split, and Range handling shared
// by both representations.
package router

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wattlab/surge/pkg/surge"
	"github.com/wattlab/surge/pkg/surge/cache"
)

// httpTimeFormat is the RFC 7231 date format used for Last-Modified,
// spelled out locally rather than importing net/http for its TimeFormat
// constant — this server has no other reason to depend on net/http.
const httpTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// DefaultStreamThreshold is the size above which a file is served as a
// StreamBody instead of being read into memory and cached (spec.md §4.8
// step 5, "DEFAULT_STREAM_THRESHOLD (1 MiB)").
const DefaultStreamThreshold = 1 << 20

var extensionTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".json": "application/json",
	".ico":  "image/x-icon",
	".txt":  "text/plain",
}

// StaticHandler serves files out of Root for requests whose path begins
// with Prefix (spec.md §4.8). It is installed on a Router with SetStatic.
type StaticHandler struct {
	Root            string
	Prefix          string
	Cache           *cache.Cache
	StreamThreshold int64

	canonicalRoot string
}

// NewStaticHandler resolves root to its canonical absolute form once at
// construction, so every request reuses it instead of re-resolving the
// root on each hit (spec.md §9 "compile once... avoid recompiling per
// request" applied to the one-time canonicalisation work here).
func NewStaticHandler(root, prefix string, c *cache.Cache) (*StaticHandler, error) {
	canonicalRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	canonicalRoot, err = filepath.EvalSymlinks(canonicalRoot)
	if err != nil {
		return nil, err
	}
	threshold := int64(DefaultStreamThreshold)
	return &StaticHandler{
		Root:            root,
		Prefix:          prefix,
		Cache:           c,
		StreamThreshold: threshold,
		canonicalRoot:   canonicalRoot,
	}, nil
}

// Serve returns a response if req's path is under the static prefix, or
// nil if the request isn't the static handler's concern at all (the
// caller — Router.Dispatch — falls through to route matching on nil).
func (s *StaticHandler) Serve(req *surge.Request) *surge.Response {
	if s == nil || !strings.HasPrefix(req.Path, s.Prefix) {
		return nil
	}

	rel := strings.TrimPrefix(req.Path, s.Prefix)
	if strings.Contains(rel, "..") {
		return errorResponse(req, surge.StatusForbidden, "path traversal rejected")
	}

	joined := filepath.Join(s.Root, rel)
	resolved, err := weakCanonical(joined)
	if err != nil {
		return errorResponse(req, surge.StatusInternalServerError, "could not resolve path")
	}
	if !isUnderRoot(resolved, s.canonicalRoot) {
		return errorResponse(req, surge.StatusForbidden, "path escapes static root")
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return errorResponse(req, surge.StatusNotFound, "not found")
	}

	size := info.Size()
	modTime := info.ModTime()
	contentType := mimeFor(resolved)

	if size <= s.effectiveThreshold() {
		return s.serveCached(req, resolved, contentType, size, modTime)
	}
	return s.serveStreamed(req, resolved, contentType, size, modTime)
}

func (s *StaticHandler) effectiveThreshold() int64 {
	if s.StreamThreshold > 0 {
		return s.StreamThreshold
	}
	return DefaultStreamThreshold
}

// serveCached implements the <= threshold branch of spec.md §4.8 step 5:
// consult the cache by (path, mtime); on miss, read the whole file and
// put it before serving.
func (s *StaticHandler) serveCached(req *surge.Request, path, contentType string, size int64, modTime time.Time) *surge.Response {
	var content []byte
	if s.Cache != nil {
		if entry, ok := s.Cache.Get(path, modTime); ok {
			content = entry.Content
		}
	}
	if content == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return errorResponse(req, surge.StatusInternalServerError, "could not read file")
		}
		content = data
		if s.Cache != nil {
			s.Cache.Put(path, content, modTime)
		}
	}

	if req.Range != nil {
		start, end, ok := req.Range.Resolve(size)
		if !ok {
			return rangeNotSatisfiable(size)
		}
		resp := surge.NewResponse(surge.StatusPartialContent, contentType, content[start:end+1])
		setRangeHeaders(resp, start, end, size, modTime)
		return resp
	}

	resp := surge.NewResponse(surge.StatusOK, contentType, content)
	setStaticHeaders(resp, modTime)
	return resp
}

// serveStreamed implements the > threshold branch: no cache involvement,
// a StreamBody descriptor the connection writer reads from disk in
// bounded chunks (spec.md §4.10).
func (s *StaticHandler) serveStreamed(req *surge.Request, path, contentType string, size int64, modTime time.Time) *surge.Response {
	if req.Range != nil {
		start, end, ok := req.Range.Resolve(size)
		if !ok {
			return rangeNotSatisfiable(size)
		}
		resp := surge.NewStreamResponse(surge.StatusPartialContent, contentType, surge.StreamBody{
			Path:       path,
			TotalBytes: end - start + 1,
			Offset:     start,
		})
		setRangeHeaders(resp, start, end, size, modTime)
		return resp
	}

	resp := surge.NewStreamResponse(surge.StatusOK, contentType, surge.StreamBody{
		Path:       path,
		TotalBytes: size,
		Offset:     0,
	})
	setStaticHeaders(resp, modTime)
	return resp
}

func rangeNotSatisfiable(size int64) *surge.Response {
	resp := surge.NewResponse(surge.StatusRangeNotSatisfiable, "application/json", []byte(`{"error":"range not satisfiable"}`))
	resp.Header.Set("Content-Range", "bytes */"+strconv.FormatInt(size, 10))
	return resp
}

func setRangeHeaders(resp *surge.Response, start, end, size int64, modTime time.Time) {
	resp.Header.Set("Content-Range", "bytes "+strconv.FormatInt(start, 10)+"-"+strconv.FormatInt(end, 10)+"/"+strconv.FormatInt(size, 10))
	resp.Header.Set("Accept-Ranges", "bytes")
	resp.Header.Set("Last-Modified", modTime.UTC().Format(httpTimeFormat))
	resp.Header.Set("Cache-Control", "max-age=3600")
}

func setStaticHeaders(resp *surge.Response, modTime time.Time) {
	resp.Header.Set("Accept-Ranges", "bytes")
	resp.Header.Set("Last-Modified", modTime.UTC().Format(httpTimeFormat))
	resp.Header.Set("Cache-Control", "max-age=3600")
}

// mimeFor picks a Content-Type from the extension table in spec.md
// §4.8 step 4, defaulting to application/octet-stream.
func mimeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := extensionTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}

// weakCanonical resolves path to an absolute form, tolerating a
// non-existent tail (spec.md §4.8 step 2, §9 "Weak canonicalisation"):
// resolve symlinks on whatever prefix of the path actually exists, and
// join the remaining, possibly-nonexistent components verbatim.
func weakCanonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	dir, base := filepath.Dir(abs), filepath.Base(abs)
	resolvedDir, err := weakCanonical(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

// isUnderRoot reports whether resolved is root itself or a descendant of
// it, guarding against the prefix-string false positive where
// "/static-evil" would otherwise appear to start with "/static"
// (spec.md §4.8 step 2, §8 "Path traversal" law).
func isUnderRoot(resolved, root string) bool {
	if resolved == root {
		return true
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
