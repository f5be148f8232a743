package surge

import "testing"

func TestParseRange(t *testing.T) {
	cases := []struct {
		in      string
		want    RangeSpec
		wantErr bool
	}{
		{"bytes=0-4", RangeSpec{0, 4}, false},
		{"bytes=5-", RangeSpec{5, 0}, false},
		{"bytes=0-", RangeSpec{0, 0}, false},
		{"bytes=abc-5", RangeSpec{}, true},
		{"bytes=", RangeSpec{}, true},
		{"items=0-4", RangeSpec{}, true},
	}
	for _, c := range cases {
		got, err := ParseRange(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseRange(%q): want error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRange(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseRange(%q) = %+v; want %+v", c.in, got, c.want)
		}
	}
}

func TestRangeResolveFullFileFromZero(t *testing.T) {
	r := RangeSpec{Start: 0, End: 0}
	start, end, ok := r.Resolve(20)
	if !ok || start != 0 || end != 19 {
		t.Fatalf("Resolve(20) = %d,%d,%v; want 0,19,true", start, end, ok)
	}
}

func TestRangeResolveStartAtSizeIsUnsatisfiable(t *testing.T) {
	r := RangeSpec{Start: 20, End: 0}
	_, _, ok := r.Resolve(20)
	if ok {
		t.Fatal("bytes=20- on a 20-byte file must be unsatisfiable (start < size required)")
	}
}

func TestRangeResolveStartAfterEnd(t *testing.T) {
	r := RangeSpec{Start: 10, End: 5}
	_, _, ok := r.Resolve(20)
	if ok {
		t.Fatal("start > end must be rejected")
	}
}
