package version

import "testing"

func TestGetPrefersLdflags(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "v9.9.9"
	if got := Get(); got != "v9.9.9" {
		t.Fatalf("Get() = %q", got)
	}

	Version = ""
	if Get() == "" {
		t.Fatal("Get() must never be empty")
	}
}
