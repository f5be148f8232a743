// Package conn implements the per-connection framing state machine from
// spec.md §4.4: read headers into a growing buffer, detect the
// terminator, extract Content-Length, read the body, split pipelined
// requests out of one buffer, dispatch each through a router, and write
// responses back — inline or streamed — deciding keep-alive after each
// exchange.
//
// This is grounded on the teacher's shockwave/pkg/shockwave/http11
// connection loop and original_source/src/client_handler.cpp, which
// both drive this exact read-frame-parse-dispatch-write cycle around a
// raw socket rather than net/http's Handler model.
package conn

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/wattlab/surge/internal/logx"
	"github.com/wattlab/surge/pkg/surge"
	"github.com/wattlab/surge/pkg/surge/socket"
)

// Dispatcher answers one parsed request. *pkg/surge/router.Router
// satisfies this with its Dispatch method, so conn does not import the
// router package.
type Dispatcher interface {
	Dispatch(req *surge.Request, jsonBody gjson.Result) *surge.Response
}

// Handler owns one accepted client connection end to end (spec.md §4.4).
type Handler struct {
	sock   *socket.Conn
	router Dispatcher
	cfg    surge.Config
	log    logx.Conn
	connID surge.ConnectionID
}

// New builds a Handler for an already-accepted socket. Per-socket send
// and receive timeouts are applied immediately, matching "sets per-
// socket send/receive timeouts on construction" (spec.md §4.4).
func New(sock *socket.Conn, r Dispatcher, cfg surge.Config, logger *logx.Logger) *Handler {
	connID := surge.NewConnectionID()
	if logger == nil {
		logger = logx.Default
	}
	sock.SetRecvTimeout(cfg.RecvTimeout)
	sock.SetSendTimeout(cfg.SendTimeout)
	return &Handler{
		sock:   sock,
		router: r,
		cfg:    cfg,
		log:    logger.ForConnection(uint64(connID)),
		connID: connID,
	}
}

// Run drives the connection loop until it closes. It never returns an
// error — every failure path is handled internally by writing a
// response (or simply closing) per spec.md §4.4.2, because there is no
// caller left to hand an error to once the socket is this handler's
// sole responsibility.
func (h *Handler) Run() {
	defer h.sock.Close()

	requestsServed := 0

	for requestsServed < h.cfg.MaxRequests {
		frames, err := h.readPipelinedBatch()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				h.log.Warn("frame read failed", logx.Field{Key: "error", Value: err.Error()})
			}
			return
		}
		if len(frames) == 0 {
			return
		}

		for _, frame := range frames {
			if requestsServed >= h.cfg.MaxRequests {
				return
			}
			keepAlive, err := h.handleOne(frame)
			requestsServed++
			if err != nil {
				h.log.Warn("request handling failed", logx.Field{Key: "error", Value: err.Error()})
				return
			}
			if !keepAlive {
				return
			}
		}
	}
}

// readPipelinedBatch blocks (via recv) until exactly one complete
// request is assembled, then — without any further network reads —
// extracts as many additional complete requests as are already fully
// present in the buffer (spec.md §4.4.1 step 4 "Pipelining"). Any
// partial bytes left after the last complete request are discarded with
// a warning: "there is no second-phase read for a truncated pipelined
// tail" (spec.md §4.4.1 step 4, §9 Open Questions).
func (h *Handler) readPipelinedBatch() ([][]byte, error) {
	buf := make([]byte, 0, h.cfg.ReadBufferSize)
	scratch := make([]byte, h.cfg.ReadBufferSize)
	var frames [][]byte

	// Phase 1: block on recv until the first request is fully framed.
	for {
		normalizeTerminator(&buf)
		headerEnd, ok := findHeaderEnd(buf)
		if ok {
			if headerEnd > h.cfg.MaxHeaderSize {
				h.writeBadRequest(surge.ErrHeadersTooLarge)
				return nil, surge.ErrHeadersTooLarge
			}
			headerBlock := buf[:headerEnd]
			contentLength, clErr := scanContentLength(headerBlock, h.cfg.MaxContentLength)
			if clErr != nil {
				h.writeBadRequest(clErr)
				return nil, clErr
			}
			total := headerEnd + 4 + contentLength
			if len(buf) >= total {
				frames = append(frames, append([]byte(nil), buf[:total]...))
				buf = buf[total:]
				break
			}
		} else if len(buf) > h.cfg.MaxHeaderSize {
			h.writeBadRequest(surge.ErrHeadersTooLarge)
			return nil, surge.ErrHeadersTooLarge
		}

		n, recvErr := h.sock.Recv(scratch)
		if n > 0 {
			buf = append(buf, scratch[:n]...)
		}
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				if len(buf) == 0 {
					return nil, io.EOF
				}
				return nil, surge.ErrUnexpectedEOF
			}
			return nil, recvErr
		}
	}

	// Phase 2: drain any further requests already fully present — no
	// recv calls here, by design.
	for {
		normalizeTerminator(&buf)
		headerEnd, ok := findHeaderEnd(buf)
		if !ok {
			break
		}
		if headerEnd > h.cfg.MaxHeaderSize {
			h.writeBadRequest(surge.ErrHeadersTooLarge)
			return nil, surge.ErrHeadersTooLarge
		}
		headerBlock := buf[:headerEnd]
		contentLength, clErr := scanContentLength(headerBlock, h.cfg.MaxContentLength)
		if clErr != nil {
			h.writeBadRequest(clErr)
			return nil, clErr
		}
		total := headerEnd + 4 + contentLength
		if len(buf) < total {
			break
		}
		frames = append(frames, append([]byte(nil), buf[:total]...))
		buf = buf[total:]
	}

	if len(buf) > 0 {
		h.log.Warn("discarding partial pipelined tail", logx.Field{Key: "bytes", Value: len(buf)})
	}

	return frames, nil
}

// normalizeTerminator rewrites the first bare "\n\n" terminator in *buf
// into "\r\n\r\n" when no canonical terminator is present yet, so every
// downstream offset computation can assume the canonical four-byte form
// (spec.md §4.4.1 step 1, §8 "Framing tolerance": "a request terminated
// by \n\n parses the same as ... \r\n\r\n").
func normalizeTerminator(buf *[]byte) {
	if bytes.Contains(*buf, []byte("\r\n\r\n")) {
		return
	}
	if i := bytes.Index(*buf, []byte("\n\n")); i >= 0 {
		rewritten := make([]byte, 0, len(*buf)+2)
		rewritten = append(rewritten, (*buf)[:i]...)
		rewritten = append(rewritten, '\r', '\n', '\r', '\n')
		rewritten = append(rewritten, (*buf)[i+2:]...)
		*buf = rewritten
	}
}

// findHeaderEnd locates the "\r\n\r\n" header/body boundary. Callers
// must normalizeTerminator first so a tolerant "\n\n" terminator has
// already been rewritten to canonical form.
func findHeaderEnd(buf []byte) (int, bool) {
	i := bytes.Index(buf, []byte("\r\n\r\n"))
	return i, i >= 0
}

// scanContentLength counts Content-Length occurrences in a raw header
// block and returns the declared body length, enforcing spec.md §4.4.1
// step 2: zero occurrences means no body, exactly one yields a length
// (checked against maxContentLength), two or more is a framing error.
func scanContentLength(headerBlock []byte, maxContentLength int64) (int, error) {
	lines := bytes.Split(headerBlock, []byte("\r\n"))
	var found int64 = -1
	seen := 0
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(string(line[:colon]))
		if !strings.EqualFold(name, "Content-Length") {
			continue
		}
		seen++
		value := strings.TrimSpace(string(line[colon+1:]))
		n, err := parseContentLength(value)
		if err != nil {
			return 0, err
		}
		found = n
	}
	if seen >= 2 {
		return 0, surge.ErrDuplicateContentLength
	}
	if found < 0 {
		return 0, nil
	}
	if found > maxContentLength {
		return 0, surge.ErrBodyTooLarge
	}
	return int(found), nil
}

// parseContentLength parses a Content-Length value as a bounded, strictly
// non-negative int64 via strconv.ParseInt rather than a hand-rolled
// digit loop: a hand-rolled accumulator silently wraps past math.MaxInt
// on a long enough digit string (e.g. 30+ digits), turning an oversized
// length into a small or negative one and bypassing the
// max-content-length check entirely. ParseInt's bitSize=64 bound makes
// that overflow an explicit strconv.ErrRange instead, which is mapped to
// ErrBodyTooLarge — the spec's own outcome for "too large", not "no
// body" or "malformed".
func parseContentLength(s string) (int64, error) {
	if s == "" {
		return 0, surge.ErrInvalidContentLength
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, surge.ErrInvalidContentLength
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, surge.ErrBodyTooLarge
		}
		return 0, surge.ErrInvalidContentLength
	}
	return n, nil
}

// handleOne parses, dispatches, and writes the response for one
// complete request frame, returning whether the connection should stay
// open for another (spec.md §4.4.1 steps 5-8, §4.4.2).
func (h *Handler) handleOne(frame []byte) (keepAlive bool, err error) {
	reqID := surge.NewRequestID()
	log := h.log.ForRequest(uint64(reqID))

	req, parseErr := surge.Parse(frame)
	if parseErr != nil {
		log.Warn("parse error", logx.Field{Key: "error", Value: parseErr.Error()})
		h.writeBadRequest(parseErr)
		return false, parseErr
	}

	if req.Version == surge.Version11 {
		if _, ok := req.Header.Get("Host"); !ok {
			h.writeBadRequest(surge.ErrMissingHost)
			return false, surge.ErrMissingHost
		}
	}

	var jsonBody gjson.Result
	if ct, ok := req.Header.Get("Content-Type"); ok && strings.Contains(ct, "application/json") && len(req.Body) > 0 {
		if !json.Valid(req.Body) {
			log.Warn("invalid JSON body")
			h.writeBadRequest(surge.ErrInvalidJSON)
			return false, surge.ErrInvalidJSON
		}
		jsonBody = gjson.ParseBytes(req.Body)
	}

	if ct, ok := req.Header.Get("Content-Type"); ok && strings.HasPrefix(ct, "text/plain") {
		req.Body = bytes.TrimRight(req.Body, " \t\r\n")
	}

	keepAlive = req.KeepAlive()
	resp := h.router.Dispatch(req, jsonBody)
	if keepAlive {
		resp.Header.Set("Connection", "keep-alive")
	} else {
		resp.Header.Set("Connection", "close")
	}

	if writeErr := h.writeResponse(resp); writeErr != nil {
		log.Warn("write failed", logx.Field{Key: "error", Value: writeErr.Error()})
		return false, writeErr
	}

	return keepAlive, nil
}

// writeResponse serializes and sends resp, streaming from disk for a
// StreamBody per spec.md §4.10. A failure to open the stream file is
// downgraded to a 500 JSON response, matching "write a 500 response
// with a JSON body instead"; if headers were already on the wire, the
// connection is simply abandoned ("response is corrupt; no recovery").
func (h *Handler) writeResponse(resp *surge.Response) error {
	stream, isStream := resp.Body.(surge.StreamBody)
	if !isStream {
		var buf bytes.Buffer
		if _, err := resp.WriteTo(&buf); err != nil {
			return err
		}
		return h.sock.SendAll(buf.Bytes())
	}

	f, err := os.Open(stream.Path)
	if err != nil {
		fallback := surge.NewResponse(surge.StatusInternalServerError, "application/json", []byte(`{"error":"could not open file"}`))
		fallback.Header.Set("Connection", resp.Header.GetDefault("Connection", "close"))
		var buf bytes.Buffer
		fallback.WriteTo(&buf)
		return h.sock.SendAll(buf.Bytes())
	}
	defer f.Close()

	var headerBuf bytes.Buffer
	if _, err := resp.WriteHeadersTo(&headerBuf); err != nil {
		return err
	}
	if err := h.sock.SendAll(headerBuf.Bytes()); err != nil {
		return err
	}

	if _, err := f.Seek(stream.Offset, io.SeekStart); err != nil {
		return err // headers already sent; abandon per §4.10.
	}

	chunkSize := h.cfg.StreamBufferSize
	if chunkSize <= 0 {
		chunkSize = 64 << 10
	}
	chunk := make([]byte, chunkSize)
	remaining := stream.TotalBytes
	for remaining > 0 {
		toRead := int64(len(chunk))
		if remaining < toRead {
			toRead = remaining
		}
		n, readErr := f.Read(chunk[:toRead])
		if n > 0 {
			if sendErr := h.sock.SendAll(chunk[:n]); sendErr != nil {
				return sendErr // headers already sent; abandon per §4.10.
			}
			remaining -= int64(n)
		}
		if readErr != nil {
			return readErr // EOF or I/O error mid-stream; abandon per §4.10.
		}
	}
	return nil
}

// writeBadRequest writes the minimal 400 response spec.md §4.4.2
// prescribes for any malformed request, framing violation, or missing
// Host: "Connection: close", no re-synchronisation attempted.
func (h *Handler) writeBadRequest(cause error) {
	resp := surge.NewResponse(surge.StatusBadRequest, "application/json", []byte(`{"error":"`+jsonEscape(cause.Error())+`"}`))
	resp.Header.Set("Connection", "close")
	var buf bytes.Buffer
	resp.WriteTo(&buf)
	h.sock.SendAll(buf.Bytes())
}

func jsonEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
