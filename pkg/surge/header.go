package surge

import "strings"

// Header is an ordered, case-insensitive header map. Lookup and
// containment compare lowercased ASCII; the original case of the most
// recent Set for a key is what gets serialized (an Add to an existing
// key keeps the case already stored).
//
// A single map keyed by the lowercased name holds the value; a parallel
// slice tracks insertion order so iteration (and therefore serialization)
// is stable across runs, which spec.md §3 calls out as a testability
// nicety even though the wire format doesn't require it.
type Header struct {
	values map[string]string
	cased  map[string]string // lowercased key -> original-case key, for serialization
	order  []string          // lowercased keys, insertion order
}

// NewHeader returns an empty Header ready for use.
func NewHeader() *Header {
	return &Header{
		values: make(map[string]string),
		cased:  make(map[string]string),
	}
}

func lowerKey(key string) string { return strings.ToLower(key) }

// Set replaces any existing value for key. If two headers differ only by
// case, the second Set overwrites the first — per the case-insensitive
// invariant in spec.md §3.
func (h *Header) Set(key, value string) {
	lk := lowerKey(key)
	if _, exists := h.values[lk]; !exists {
		h.order = append(h.order, lk)
	}
	h.values[lk] = value
	h.cased[lk] = key
}

// Add appends a value, joined to any existing value with ", " — the
// caller-side convention spec.md §3 specifies for multi-valued headers.
func (h *Header) Add(key, value string) {
	lk := lowerKey(key)
	if existing, ok := h.values[lk]; ok {
		h.values[lk] = existing + ", " + value
		return
	}
	h.order = append(h.order, lk)
	h.values[lk] = value
	h.cased[lk] = key
}

// Get returns the value for key (case-insensitive) and whether it was
// present.
func (h *Header) Get(key string) (string, bool) {
	v, ok := h.values[lowerKey(key)]
	return v, ok
}

// GetDefault returns the value for key, or def if absent.
func (h *Header) GetDefault(key, def string) string {
	if v, ok := h.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key is present, case-insensitively.
func (h *Header) Has(key string) bool {
	_, ok := h.values[lowerKey(key)]
	return ok
}

// Del removes key, case-insensitively.
func (h *Header) Del(key string) {
	lk := lowerKey(key)
	if _, ok := h.values[lk]; !ok {
		return
	}
	delete(h.values, lk)
	delete(h.cased, lk)
	for i, k := range h.order {
		if k == lk {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of distinct header names stored.
func (h *Header) Len() int { return len(h.order) }

// VisitAll calls visitor once per header, in insertion order, with the
// original casing used when the header was last set.
func (h *Header) VisitAll(visitor func(name, value string)) {
	for _, lk := range h.order {
		visitor(h.cased[lk], h.values[lk])
	}
}

// Clone returns a deep copy of h.
func (h *Header) Clone() *Header {
	clone := NewHeader()
	h.VisitAll(func(name, value string) {
		clone.Set(name, value)
	})
	return clone
}
