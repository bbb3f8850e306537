package cache

import "testing"

func TestParseCounter(t *testing.T) {
	if n, err := parseCounter("42"); err != nil || n != 42 {
		t.Fatalf("parseCounter(\"42\") = %d, %v", n, err)
	}
	// A missing key comes back from MGET as a nil reply and reads as zero.
	if n, err := parseCounter(nil); err != nil || n != 0 {
		t.Fatalf("parseCounter(nil) = %d, %v", n, err)
	}
	// Anything non-numeric is corruption, not a zero.
	for _, bad := range []string{"12abc", "", "4.5", "0x10"} {
		if _, err := parseCounter(bad); err == nil {
			t.Fatalf("parseCounter(%q) accepted a non-numeric value", bad)
		}
	}
}
