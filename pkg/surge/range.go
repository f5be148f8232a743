package surge

import (
	"strconv"
	"strings"
)

// RangeSpec describes a requested byte sub-range of a resource. End == 0
// means "to end of resource" (spec.md §3) — callers resolve that against
// the resource's actual size before using it.
type RangeSpec struct {
	Start uint64
	End   uint64
}

// ParseRange parses a Range header value of the form "bytes=<u64>-<u64>?".
// Any other shape, or an overflowing number, is ErrInvalidRange.
func ParseRange(value string) (RangeSpec, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(value, prefix) {
		return RangeSpec{}, ErrInvalidRange
	}
	spec := value[len(prefix):]
	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return RangeSpec{}, ErrInvalidRange
	}

	startStr, endStr := spec[:dash], spec[dash+1:]
	if startStr == "" {
		return RangeSpec{}, ErrInvalidRange
	}
	start, err := strconv.ParseUint(startStr, 10, 64)
	if err != nil {
		return RangeSpec{}, ErrInvalidRange
	}

	var end uint64
	if endStr != "" {
		end, err = strconv.ParseUint(endStr, 10, 64)
		if err != nil {
			return RangeSpec{}, ErrInvalidRange
		}
	}

	return RangeSpec{Start: start, End: end}, nil
}

// Resolve validates the range against a resource of the given size,
// returning the concrete inclusive [start, end] byte offsets. It
// implements the bounds check from spec.md §4.8 step 6: start < size,
// start <= end, end < size (with End == 0 meaning size-1).
func (r RangeSpec) Resolve(size int64) (start, end int64, ok bool) {
	end64 := r.End
	if end64 == 0 {
		end64 = uint64(size) - 1
	}
	start64 := r.Start

	if size <= 0 || start64 >= uint64(size) || start64 > end64 || end64 >= uint64(size) {
		return 0, 0, false
	}
	return int64(start64), int64(end64), true
}
