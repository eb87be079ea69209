package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigLintSuccess(t *testing.T) {
	manifest := procManifest(
		"version: \"1\"",
		"processes:",
		"  hello:",
		"    command: /bin/echo",
		"    args: [hello]",
	)
	stdout, stderr, path, err := runConfigLint(t, manifest)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	want := fmt.Sprintf("%s: OK\n", path)
	if stdout != want {
		t.Fatalf("unexpected stdout: got %q want %q", stdout, want)
	}
	if stderr != "" {
		t.Fatalf("unexpected stderr output: %q", stderr)
	}
}

func TestConfigLintSchemaViolation(t *testing.T) {
	manifest := procManifest(
		"version: \"1\"",
		"processes:",
		"  hello:",
		"    command: /bin/echo",
		"    mode: fork",
	)
	stdout, stderr, path, err := runConfigLint(t, manifest)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if stdout != "" {
		t.Fatalf("expected empty stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "schema validation failed") {
		t.Fatalf("stderr does not report schema failure: %q", stderr)
	}
	if !strings.Contains(stderr, filepath.Base(path)) {
		t.Fatalf("stderr does not mention manifest path: %q", stderr)
	}
}

func TestConfigLintRedirectRequiresStartMode(t *testing.T) {
	manifest := procManifest(
		"version: \"1\"",
		"processes:",
		"  logger:",
		"    command: /bin/echo",
		"    mode: pipe",
		"    stdout: out.log",
	)
	stdout, stderr, _, err := runConfigLint(t, manifest)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if stdout != "" {
		t.Fatalf("expected empty stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "processes.logger.stdout") {
		t.Fatalf("stderr does not mention the redirect field: %q", stderr)
	}
}

func TestConfigLintMissingFile(t *testing.T) {
	cmd := NewRootCmd()
	errBuf := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"config", "lint", "--file", filepath.Join(t.TempDir(), "absent.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for missing manifest")
	}
	if !strings.Contains(errBuf.String(), "open manifest file") {
		t.Fatalf("unexpected stderr %q", errBuf.String())
	}
}

func TestManifestDefaultsFromEnv(t *testing.T) {
	t.Setenv("PROCCTL_MANIFEST", "/etc/procctl/procs.yaml")
	_, ctx := newRootCommand()
	if ctx.manifestFile != "/etc/procctl/procs.yaml" {
		t.Fatalf("expected manifest from env, got %q", ctx.manifestFile)
	}

	t.Setenv("PROCCTL_MANIFEST", "")
	_, ctx = newRootCommand()
	if ctx.manifestFile != defaultManifest {
		t.Fatalf("expected default manifest, got %q", ctx.manifestFile)
	}
}

func runConfigLint(t *testing.T, manifest string) (stdout, stderr, path string, err error) {
	t.Helper()
	dir := t.TempDir()
	path = filepath.Join(dir, "procs.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cmd := NewRootCmd()
	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"config", "lint", "--file", path})

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), path, err
}

func procManifest(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
