package version

import "testing"

func TestString(t *testing.T) {
	if got := String(); got != "pairwatch dev (commit unknown, built unknown)" {
		t.Fatalf("unexpected version string %q", got)
	}
}
