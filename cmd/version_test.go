package cmd

import (
	"io"
	"os"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origBuild, origCommit := AppVersion, BuildTime, GitCommit
	defer func() {
		AppVersion, BuildTime, GitCommit = origVersion, origBuild, origCommit
	}()
	AppVersion = "1.2.3"
	BuildTime = "2026-08-29T10:00:00Z"
	GitCommit = "abc1234"

	// versionCmd writes to stdout directly, capture it.
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = origStdout }()

	rootCmd.SetArgs([]string{"version"})
	execErr := rootCmd.Execute()

	w.Close()
	os.Stdout = origStdout
	out, _ := io.ReadAll(r)

	if execErr != nil {
		t.Fatalf("version command failed: %v", execErr)
	}
	for _, want := range []string{"Converse 1.2.3", "2026-08-29T10:00:00Z", "abc1234"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("output missing %q, got:\n%s", want, out)
		}
	}
}
