package surge

import (
	"bytes"
	"strconv"
	"strings"
)

const (
	// maxHeaderLine bounds the request line; header lines after it are
	// not checked against it. The block-level limit is enforced by the
	// caller (pkg/surge/conn) before Parse is invoked.
	maxHeaderLine = 8192
)

// Parse consumes one complete request's bytes — the header block plus
// any body bytes that belong to it — and returns a structured Request.
// It never touches the network; framing (finding message boundaries,
// reading the body to Content-Length) is the connection handler's job
// (spec.md §4.5, closing line).
func Parse(raw []byte) (*Request, error) {
	headerEnd := bytes.Index(raw, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, ErrUnexpectedEOF
	}
	headerBlock := raw[:headerEnd]
	body := raw[headerEnd+4:]

	lineEnd := bytes.Index(headerBlock, []byte("\r\n"))
	if lineEnd < 0 {
		lineEnd = len(headerBlock)
	}
	req, err := parseRequestLine(string(headerBlock[:lineEnd]))
	if err != nil {
		return nil, err
	}

	header, rangeSpec, err := parseHeaderLines(headerBlock[lineEnd:])
	if err != nil {
		return nil, err
	}
	req.Header = header
	req.Range = rangeSpec

	if len(body) > 0 {
		req.Body = body
	}

	contentType := header.GetDefault("Content-Type", "")
	if req.Method == MethodPOST && strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		req.FormParams = parseURLEncoded(string(req.Body))
	}

	return req, nil
}

// parseRequestLine splits "METHOD /path?query HTTP/1.1" into its parts
// and decodes the query string. Target parsing follows spec.md §4.5
// step 1-2: split on the first space twice, then split the target on the
// first '?'.
func parseRequestLine(line string) (*Request, error) {
	if len(line) > maxHeaderLine {
		return nil, ErrRequestLineTooLarge
	}

	firstSpace := strings.IndexByte(line, ' ')
	if firstSpace < 0 {
		return nil, ErrInvalidRequestLine
	}
	methodTok := line[:firstSpace]
	rest := line[firstSpace+1:]

	secondSpace := strings.IndexByte(rest, ' ')
	if secondSpace < 0 {
		return nil, ErrInvalidRequestLine
	}
	target := rest[:secondSpace]
	versionTok := rest[secondSpace+1:]

	method := ParseMethod(methodTok)
	if method == MethodUnknown {
		return nil, ErrInvalidMethod
	}

	path := target
	var query string
	if q := strings.IndexByte(target, '?'); q >= 0 {
		path = target[:q]
		query = target[q+1:]
	}
	if path == "" {
		path = "/"
	}

	return &Request{
		Method:      method,
		Version:     ParseVersion(versionTok),
		Path:        path,
		QueryParams: parseURLEncoded(query),
	}, nil
}

// parseHeaderLines walks header lines ("Name: value\r\n"), lowercasing
// names for storage and trimming surrounding whitespace from values, per
// spec.md §4.5 step 3. A Range header, if present, is parsed per step 4.
func parseHeaderLines(rest []byte) (*Header, *RangeSpec, error) {
	header := NewHeader()
	var rangeSpec *RangeSpec

	lines := bytes.Split(rest, []byte("\r\n"))
	for _, lineBytes := range lines {
		if len(lineBytes) == 0 {
			continue
		}
		line := string(lineBytes)
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			// A line without ':' is skipped silently; no warning is logged.
			continue
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if name == "" {
			continue
		}
		header.Set(name, value)

		if strings.EqualFold(name, "Range") {
			rs, err := ParseRange(value)
			if err != nil {
				return nil, nil, err
			}
			rangeSpec = &rs
		}
	}

	return header, rangeSpec, nil
}

// parseURLEncoded parses an "&"-separated list of "key=value?" pairs,
// decoding '+' to space and %HH percent-escapes, and accumulating
// repeated keys into an ordered list — spec.md §4.5 step 2 and §8's
// percent-decoding law.
func parseURLEncoded(raw string) map[string][]string {
	params := make(map[string][]string)
	if raw == "" {
		return params
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		var key, value string
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			key = urlDecode(pair[:eq])
			value = urlDecode(pair[eq+1:])
		} else {
			key = urlDecode(pair)
		}
		if key == "" {
			// Empty keys are skipped silently; no warning is logged.
			continue
		}
		params[key] = append(params[key], value)
	}
	return params
}

// urlDecode decodes '+' to space and %HH percent escapes. Malformed
// escapes are passed through literally rather than erroring, matching
// original_source's url_decode (include/http_utils.hpp).
func urlDecode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				b.WriteByte(c)
				continue
			}
			b.WriteByte(byte(n))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
