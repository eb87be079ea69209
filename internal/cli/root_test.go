package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCmd()
	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func TestQuotePrintsWindowsCommandLine(t *testing.T) {
	stdout, _, err := execute(t, "", "quote", "--", `C:\Program Files\app.exe`, "plain", "two words", `say "hi"`, `trail\`)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	want := `"C:\Program Files\app.exe" plain "two words" "say \"hi\"" trail\` + "\n"
	if stdout != want {
		t.Fatalf("unexpected command line:\n got %q\nwant %q", stdout, want)
	}
}

func TestQuoteRequiresCommand(t *testing.T) {
	if _, _, err := execute(t, "", "quote"); err == nil {
		t.Fatalf("expected error without a command")
	}
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "", "--log-level", "chatty", "quote", "--", "app")
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Fatalf("expected invalid log level error, got %v", err)
	}
}

func TestExitResult(t *testing.T) {
	if err := exitResult(0); err != nil {
		t.Fatalf("expected nil for zero exit, got %v", err)
	}
	var exit *exitCodeError
	if err := exitResult(5); !errors.As(err, &exit) || exit.code != 5 {
		t.Fatalf("expected exit code error 5, got %v", err)
	}
}
