// Package surge implements the wire-level pieces of an HTTP/1.1 origin
// server: method/version/status tables, a case-insensitive header map, a
// tolerant request parser, and a response serializer. It does not touch
// the network itself — see pkg/surge/conn and pkg/surge/server for that.
package surge

// Method is one of the HTTP methods the server recognizes.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodGET
	MethodPOST
	MethodPUT
	MethodDELETE
	MethodHEAD
	MethodOPTIONS
	MethodPATCH
	MethodTRACE
	MethodCONNECT
)

var methodNames = [...]string{
	MethodUnknown: "UNKNOWN",
	MethodGET:     "GET",
	MethodPOST:    "POST",
	MethodPUT:     "PUT",
	MethodDELETE:  "DELETE",
	MethodHEAD:    "HEAD",
	MethodOPTIONS: "OPTIONS",
	MethodPATCH:   "PATCH",
	MethodTRACE:   "TRACE",
	MethodCONNECT: "CONNECT",
}

var methodByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for id, name := range methodNames {
		m[name] = Method(id)
	}
	return m
}()

// String returns the wire representation of the method, or "UNKNOWN".
func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "UNKNOWN"
}

// ParseMethod looks up a method by its exact-case wire token. Unknown
// tokens map to MethodUnknown rather than erroring — the caller decides
// whether an unknown method is fatal.
func ParseMethod(token string) Method {
	if m, ok := methodByName[token]; ok {
		return m
	}
	return MethodUnknown
}
