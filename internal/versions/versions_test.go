// Tests in this file exercise release tag comparison helpers.
package versions

import "testing"

func TestMaxVersion(t *testing.T) {
	t.Parallel()

	input := []string{"v1.2.3", "1.10.0", "v2.0.1", "2.0.0", "0.9.9"}
	got, err := MaxVersion(input)
	if err != nil {
		t.Fatalf("MaxVersion returned error: %v", err)
	}
	if got != "v2.0.1" {
		t.Fatalf("MaxVersion = %q, want %q", got, "v2.0.1")
	}
}

func TestMaxVersionInvalid(t *testing.T) {
	t.Parallel()

	if _, err := MaxVersion([]string{"1.2.beta"}); err == nil {
		t.Fatal("expected error for invalid version token")
	}
}

func TestMaxVersionEmpty(t *testing.T) {
	t.Parallel()

	if _, err := MaxVersion(nil); err == nil {
		t.Fatal("expected error when no versions provided")
	}
	if _, err := MaxVersion([]string{""}); err == nil {
		t.Fatal("expected error when only empty versions provided")
	}
}

func TestIsNewestRelease(t *testing.T) {
	t.Parallel()

	known := []string{"v1.18.0", "v1.19.0", "v1.20.0-rc1", "nightly", "v1.19.1"}

	cases := []struct {
		tag  string
		want bool
	}{
		{"v1.19.1", true},
		{"v1.19.2", true},
		{"v1.19.0", false},
		{"v1.20.0-rc2", false},
		{"latest", false},
	}
	for _, tc := range cases {
		if got := IsNewestRelease(tc.tag, known); got != tc.want {
			t.Fatalf("IsNewestRelease(%q) = %v, want %v", tc.tag, got, tc.want)
		}
	}
}

func TestIsStable(t *testing.T) {
	t.Parallel()

	if !IsStable("v1.2.3") {
		t.Fatal("v1.2.3 should be stable")
	}
	if IsStable("v1.2.3-beta.1") {
		t.Fatal("prerelease should not be stable")
	}
	if IsStable("release-candidate") {
		t.Fatal("non-semver tag should not be stable")
	}
}
