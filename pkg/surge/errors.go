package surge

import "errors"

// Parse and framing errors. These are sentinel values rather than a
// custom error-code enum, matching the teacher's http11/errors.go.
var (
	ErrInvalidRequestLine     = errors.New("surge: invalid request line")
	ErrInvalidMethod          = errors.New("surge: unrecognized method")
	ErrInvalidProtocol        = errors.New("surge: unsupported protocol version")
	ErrInvalidHeader          = errors.New("surge: malformed header line")
	ErrHeadersTooLarge        = errors.New("surge: header block exceeds max size")
	ErrRequestLineTooLarge    = errors.New("surge: request line too large")
	ErrInvalidContentLength   = errors.New("surge: invalid Content-Length")
	ErrDuplicateContentLength = errors.New("surge: conflicting Content-Length headers")
	ErrBodyTooLarge           = errors.New("surge: body exceeds max content length")
	ErrUnexpectedEOF          = errors.New("surge: connection closed mid-message")
	ErrMissingHost            = errors.New("surge: HTTP/1.1 request missing Host header")
	ErrInvalidRange           = errors.New("surge: malformed Range header")
	ErrInvalidJSON            = errors.New("surge: request body is not valid JSON")
)
