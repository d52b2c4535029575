package static

import (
	"net/http"
	"testing"
)

func header(rangeVal, ifRange string) http.Header {
	h := make(http.Header)
	if rangeVal != "" {
		h.Set("Range", rangeVal)
	}
	if ifRange != "" {
		h.Set("If-Range", ifRange)
	}
	return h
}

const testETag = `"abc"`
const testModified = "Fri, 15 May 2015 15:34:21 GMT"

func TestExtractRangeNoRange(t *testing.T) {
	res := ExtractRange(header("", ""), testETag, testModified, 1000)
	if res.Valid || res.OutOfBounds {
		t.Fatalf("expected neither valid nor out-of-bounds, got %+v", res)
	}
}

func TestExtractRangeValid(t *testing.T) {
	res := ExtractRange(header("bytes=0-499", ""), testETag, testModified, 1000)
	if !res.Valid || res.Start != 0 || res.End != 499 {
		t.Fatalf("expected Valid(0, 499), got %+v", res)
	}
}

func TestExtractRangeUnknownUnits(t *testing.T) {
	res := ExtractRange(header("eur=0-499", ""), testETag, testModified, 1000)
	if res.Valid || res.OutOfBounds {
		t.Fatalf("expected neither, got %+v", res)
	}
}

func TestExtractRangeOpenEnded(t *testing.T) {
	res := ExtractRange(header("bytes=500-", ""), testETag, testModified, 1000)
	if !res.Valid || res.Start != 500 || res.End != 999 {
		t.Fatalf("expected Valid(500, 999), got %+v", res)
	}
}

func TestExtractRangeSuffix(t *testing.T) {
	res := ExtractRange(header("bytes=-10", ""), testETag, testModified, 1000)
	if !res.Valid || res.Start != 990 || res.End != 999 {
		t.Fatalf("expected Valid(990, 999), got %+v", res)
	}
}

func TestExtractRangeOutOfBounds(t *testing.T) {
	cases := []string{"bytes=-2000", "bytes=23-22", "bytes=1000-"}
	for _, h := range cases {
		res := ExtractRange(header(h, ""), testETag, testModified, 1000)
		if !res.OutOfBounds {
			t.Errorf("%q: expected OutOfBounds, got %+v", h, res)
		}
	}
}

func TestExtractRangeMultipleRangesUnsupported(t *testing.T) {
	res := ExtractRange(header("bytes=1-2,3-4", ""), testETag, testModified, 1000)
	if res.Valid || res.OutOfBounds {
		t.Fatalf("expected neither (multi-range unsupported), got %+v", res)
	}
}

func TestExtractRangeIfRangeGating(t *testing.T) {
	cases := []struct {
		ifRange string
		want    bool // want Valid
	}{
		{testETag, true},
		{`"xyz"`, false},
		{testModified, true},
		{"Thu, 01 Jan 1970 00:00:00 GMT", false},
		{"bogus", false},
	}
	for _, c := range cases {
		res := ExtractRange(header("bytes=0-499", c.ifRange), testETag, testModified, 1000)
		if res.Valid != c.want {
			t.Errorf("If-Range %q: Valid = %v, want %v", c.ifRange, res.Valid, c.want)
		}
	}
}
