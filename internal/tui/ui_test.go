package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/procctl/internal/runner"
)

func newTestUI(t *testing.T) *UI {
	t.Helper()
	ui := newUI(tview.NewApplication(), tview.NewTable().SetFixed(1, 1).SetSelectable(true, false), tview.NewTextView())
	ui.app.SetRoot(ui.pages, true)
	ui.app.SetInputCapture(ui.handleKey)
	return ui
}

func cellText(ui *UI, row, col int) string {
	cell := ui.table.GetCell(row, col)
	if cell == nil {
		return ""
	}
	return cell.Text
}

func TestApplyEventTracksProcessState(t *testing.T) {
	ui := newTestUI(t)
	now := time.Now()
	for _, evt := range []runner.Event{
		{Timestamp: now, Process: "web", Type: runner.EventTypeStarting, Message: "/bin/web"},
		{Timestamp: now, Process: "web", Pid: 321, Type: runner.EventTypeStarted, Message: "pid 321"},
		{Timestamp: now, Process: "web", Pid: 321, Type: runner.EventTypeLog, Source: runner.LogSourceStdout, Message: "listening"},
		{Timestamp: now, Process: "batch", Pid: 400, Type: runner.EventTypeExited, ExitValue: 2, Message: "exit value 2"},
	} {
		ui.applyEvent(evt)
	}

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.renderLogsLocked()
	ui.mu.Unlock()

	if got := cellText(ui, 1, 0); got != "batch" {
		t.Fatalf("expected processes sorted by name, first row %q", got)
	}
	if got := cellText(ui, 1, 3); got != "2" {
		t.Fatalf("expected exit value column 2, got %q", got)
	}
	if got := cellText(ui, 2, 1); got != "321" {
		t.Fatalf("expected pid 321, got %q", got)
	}
	if got := cellText(ui, 2, 2); got != "Started" {
		t.Fatalf("expected started state, got %q", got)
	}
	if len(ui.procs["web"].logs) != 1 {
		t.Fatalf("expected one retained output line, got %d", len(ui.procs["web"].logs))
	}

	ui.applyEvent(runner.Event{Process: "client", Type: runner.EventTypeStarting, Message: "/bin/client --token=abc"})
	if msg := ui.procs["client"].message; strings.Contains(msg, "abc") {
		t.Fatalf("status messages should be redacted, got %q", msg)
	}
}

func TestLogRetention(t *testing.T) {
	ui := newTestUI(t)
	WithMaxLogs(2)(ui)
	for _, msg := range []string{"a", "b", "c"} {
		ui.applyEvent(runner.Event{Process: "p", Type: runner.EventTypeLog, Message: msg})
	}
	logs := ui.procs["p"].logs
	if len(logs) != 2 || logs[0].Message != "b" || logs[1].Message != "c" {
		t.Fatalf("unexpected retained logs %+v", logs)
	}
}

func TestFilterHidesProcesses(t *testing.T) {
	ui := newTestUI(t)
	ui.applyEvent(runner.Event{Process: "api", Type: runner.EventTypeStarted})
	ui.applyEvent(runner.Event{Process: "worker", Type: runner.EventTypeStarted})

	if err := ui.applyFilter("^wor"); err != nil {
		t.Fatalf("apply filter: %v", err)
	}
	if len(ui.visible) != 1 || ui.visible[0] != "worker" || ui.selected != "worker" {
		t.Fatalf("unexpected visible %v selected %q", ui.visible, ui.selected)
	}
	if err := ui.applyFilter("("); err == nil {
		t.Fatalf("expected invalid regex to be rejected")
	}
	if err := ui.applyFilter(""); err != nil || len(ui.visible) != 2 {
		t.Fatalf("clearing the filter should show everything, got %v (%v)", ui.visible, err)
	}
}

func TestHandleKeyRespectsOverlayFocus(t *testing.T) {
	ui := newTestUI(t)
	ui.app.SetFocus(ui.table)

	slash := tcell.NewEventKey(tcell.KeyRune, '/', tcell.ModNone)
	if res := ui.handleKey(slash); res != nil {
		t.Fatalf("expected filter shortcut to be consumed when table focused")
	}
	if _, ok := ui.app.GetFocus().(*tview.InputField); !ok {
		t.Fatalf("expected filter input to have focus, got %T", ui.app.GetFocus())
	}

	enter := tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
	if res := ui.handleKey(enter); res != enter {
		t.Fatalf("expected Enter to bypass global handler when overlay focused")
	}

	ui.pages.RemovePage(filterPageName)
	ui.app.SetFocus(ui.table)

	if res := ui.handleKey(enter); res != nil {
		t.Fatalf("expected Enter to toggle focus")
	}
	if ui.app.GetFocus() != ui.logs || !ui.logsFocused {
		t.Fatalf("expected logs to have focus after toggle")
	}

	j := tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone)
	if res := ui.handleKey(j); res != nil || !ui.logsPretty {
		t.Fatalf("expected j to switch the output pane to JSON")
	}
}
