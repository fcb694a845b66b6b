// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/invowk/extpack/internal/config"
	"github.com/invowk/extpack/internal/testutil"
)

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.StagingDir = "build/store"
	app, stdout, _ := newTestApp(cfg)

	if err := runCLI(t, app, "config", "show"); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"(using defaults)", `staging_dir: "build/store"`, "max_attempts: 50"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout = %q, missing %q", out, want)
		}
	}
}

func TestConfigShow_ReportsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "extpack.cue")
	testutil.MustWriteFile(t, path, []byte("include_version: false\n"))

	var stdout bytes.Buffer
	app := NewApp(Dependencies{Config: config.NewProvider(), Stdout: &stdout, Stderr: &bytes.Buffer{}})
	if err := runCLI(t, app, "--config", path, "config", "show"); err != nil {
		t.Fatalf("config show error = %v", err)
	}
	out := stdout.String()
	if !strings.Contains(out, path) || !strings.Contains(out, "include_version: false") {
		t.Errorf("stdout = %q, want file path and file values", out)
	}
}

func TestConfigInit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.cue")
	app, stdout, _ := newTestApp(config.DefaultConfig())

	if err := runCLI(t, app, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if got := string(testutil.MustReadFile(t, path)); got != config.GenerateCUE(config.DefaultConfig()) {
		t.Errorf("written config = %q, want the default config", got)
	}
	if !strings.Contains(stdout.String(), "Created default configuration") {
		t.Errorf("stdout = %q", stdout)
	}

	stdout.Reset()
	if err := runCLI(t, app, "--config", path, "config", "init"); err != nil {
		t.Fatalf("second config init error = %v", err)
	}
	if !strings.Contains(stdout.String(), "already exists") {
		t.Errorf("second init stdout = %q, want already-exists notice", stdout)
	}
}
