package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldC, oldB := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldV, oldC, oldB })

	Version, Commit, BuildTime = "1.2.0", "abc1234", "2025-09-19T05:30:00Z"

	if got, want := String(), "1.2.0 (abc1234) built 2025-09-19T05:30:00Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
