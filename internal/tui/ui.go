package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/procctl/internal/cliutil"
	"github.com/Paintersrp/procctl/internal/runner"
)

const (
	tableTitle          = "Processes"
	logsTitle           = "Output"
	mainPageName        = "main"
	filterPageName      = "filter"
	defaultLogRetention = 500
)

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the number of output lines retained for each process.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// UI is the interactive process monitor backed by tview.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	logs   *tview.TextView
	events chan runner.Event

	procs map[string]*procState

	visible     []string
	selected    string
	logsPretty  bool
	filterExpr  *regexp.Regexp
	logsFocused bool
	maxLogs     int

	mu sync.Mutex
	// selecting is set while the table selection is moved with mu held.
	selecting atomic.Bool

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type procState struct {
	name      string
	pid       int
	firstSeen time.Time
	state     runner.EventType
	exitValue string
	message   string

	logs []cliutil.LogRecord
}

// New constructs a UI configured with the supplied options.
func New(opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	logs := tview.NewTextView().SetDynamicColors(false).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)

	ui := newUI(app, table, logs)
	for _, opt := range opts {
		opt(ui)
	}

	logs.SetChangedFunc(func() { app.Draw() })
	table.SetSelectionChangedFunc(func(row, column int) {
		if ui.selecting.Load() {
			return
		}
		ui.mu.Lock()
		defer ui.mu.Unlock()
		ui.syncSelection(row)
		ui.renderLogsLocked()
	})

	app.SetRoot(ui.pages, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.mu.Unlock()
	return ui
}

func newUI(app *tview.Application, table *tview.Table, logs *tview.TextView) *UI {
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 2, true).
		AddItem(logs, 0, 3, false)
	return &UI{
		app:        app,
		pages:      tview.NewPages().AddPage(mainPageName, flex, true, true),
		table:      table,
		logs:       logs,
		events:     make(chan runner.Event, 256),
		procs:      make(map[string]*procState),
		logsPretty: false,
		maxLogs:    defaultLogRetention,
		done:       make(chan struct{}),
	}
}

// EventSink exposes the channel where runner events should be delivered.
func (u *UI) EventSink() chan<- runner.Event {
	return u.events
}

// CloseEvents closes the event channel so the consumer goroutine can exit.
func (u *UI) CloseEvents() {
	u.closeOnce.Do(func() {
		close(u.events)
	})
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the application and processes incoming events until Stop is
// invoked or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()
	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()
	cancel()
	u.Stop()
	u.wg.Wait()
	return err
}

// Stop terminates the application loop.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

// consumeEvents applies events until the channel closes. After ctx is done
// events are still drained so senders never block.
func (u *UI) consumeEvents(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ctxDone := ctx.Done()
	draining := false
	for {
		select {
		case <-ctxDone:
			draining = true
			ctxDone = nil
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			if !draining {
				u.applyEvent(evt)
				u.queueRefresh()
			}
		case <-ticker.C:
			if !draining {
				u.queueRefresh()
			}
		}
	}
}

func (u *UI) overlayOpen() bool {
	front, _ := u.pages.GetFrontPage()
	return front != mainPageName && front != ""
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if u.overlayOpen() {
		return event
	}
	switch event.Key() {
	case tcell.KeyEnter, tcell.KeyTab:
		u.toggleFocus()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case '/':
			u.showFilterPrompt()
			return nil
		case 'j', 'J':
			u.toggleJSON()
			return nil
		}
	}
	return event
}

func (u *UI) toggleFocus() {
	if u.logsFocused {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.logs)
	}
	u.logsFocused = !u.logsFocused
}

func (u *UI) toggleJSON() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logsPretty = !u.logsPretty
	u.renderLogsLocked()
}

func (u *UI) showFilterPrompt() {
	u.mu.Lock()
	current := ""
	if u.filterExpr != nil {
		current = u.filterExpr.String()
	}
	u.mu.Unlock()

	input := tview.NewInputField().SetLabel("Regex filter: ").SetText(current).SetFieldWidth(40)
	closePrompt := func() {
		u.pages.RemovePage(filterPageName)
		u.app.SetFocus(u.table)
		u.logsFocused = false
	}
	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Apply", func() {
			if err := u.applyFilter(input.GetText()); err != nil {
				input.SetLabel("Invalid regex: ")
				return
			}
			closePrompt()
		}).
		AddButton("Cancel", closePrompt)
	form.SetBorder(true).SetTitle("Filter Processes")

	grid := tview.NewGrid().
		SetColumns(0, 60, 0).
		SetRows(0, 7, 0).
		AddItem(form, 1, 1, 1, 1, 0, 0, true)
	u.pages.AddPage(filterPageName, grid, true, true)
	u.app.SetFocus(input)
}

func (u *UI) applyFilter(expr string) error {
	var re *regexp.Regexp
	if expr = strings.TrimSpace(expr); expr != "" {
		var err error
		if re, err = regexp.Compile(expr); err != nil {
			return err
		}
	}
	u.mu.Lock()
	u.filterExpr = re
	u.refreshTableLocked()
	u.renderLogsLocked()
	u.mu.Unlock()
	return nil
}

func (u *UI) applyEvent(evt runner.Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	st := u.procs[evt.Process]
	if st == nil {
		st = &procState{name: evt.Process, firstSeen: evt.Timestamp, exitValue: "-"}
		u.procs[evt.Process] = st
	}
	if evt.Pid != 0 {
		st.pid = evt.Pid
	}

	if evt.Type == runner.EventTypeLog {
		st.logs = append(st.logs, cliutil.NewLogRecord(evt))
		if over := len(st.logs) - u.maxLogs; over > 0 {
			st.logs = append([]cliutil.LogRecord(nil), st.logs[over:]...)
		}
		return
	}

	st.state = evt.Type
	st.message = cliutil.RedactSecrets(evt.Message)
	if st.message == "" && evt.Err != nil {
		st.message = evt.Err.Error()
	}
	if evt.Type == runner.EventTypeExited && evt.Pid != 0 {
		st.exitValue = strconv.Itoa(evt.ExitValue)
	}
}

func (u *UI) queueRefresh() {
	u.app.QueueUpdateDraw(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshTableLocked()
		u.renderLogsLocked()
	})
}

func (u *UI) refreshTableLocked() {
	u.table.Clear()
	for col, header := range []string{"PROCESS", "PID", "STATE", "EXIT", "AGE", "MESSAGE"} {
		u.table.SetCell(0, col, tview.NewTableCell(header).SetSelectable(false).SetAttributes(tcell.AttrBold))
	}

	names := make([]string, 0, len(u.procs))
	for name := range u.procs {
		if u.filterExpr != nil && !u.filterExpr.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	u.visible = names

	if u.filterExpr != nil {
		u.table.SetTitle(fmt.Sprintf("%s /%s/", tableTitle, u.filterExpr))
	} else {
		u.table.SetTitle(tableTitle)
	}

	for row, name := range names {
		st := u.procs[name]
		pid := "-"
		if st.pid != 0 {
			pid = strconv.Itoa(st.pid)
		}
		message := st.message
		if len(message) > 80 {
			message = message[:77] + "..."
		}
		values := []string{
			name,
			pid,
			formatState(st.state),
			st.exitValue,
			time.Since(st.firstSeen).Truncate(time.Second).String(),
			message,
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col == 0 {
				cell.SetReference(name)
			}
			u.table.SetCell(row+1, col, cell)
		}
	}
	u.ensureSelectionLocked()
}

func (u *UI) renderLogsLocked() {
	u.logs.Clear()
	st := u.procs[u.selected]
	if st == nil {
		u.logs.SetTitle(logsTitle)
		return
	}
	u.logs.SetTitle(fmt.Sprintf("%s (%s)", logsTitle, st.name))
	for _, record := range st.logs {
		if !u.logsPretty {
			fmt.Fprintf(u.logs, "%s %s\n", record.Source, record.Message)
			continue
		}
		data, err := json.Marshal(record)
		if err != nil {
			fmt.Fprintf(u.logs, "{\"error\":%q}\n", err.Error())
			continue
		}
		fmt.Fprintf(u.logs, "%s\n", data)
	}
	u.logs.ScrollToEnd()
}

func (u *UI) ensureSelectionLocked() {
	if len(u.visible) == 0 {
		u.selected = ""
		return
	}
	idx := sort.SearchStrings(u.visible, u.selected)
	if idx >= len(u.visible) || u.visible[idx] != u.selected {
		idx = 0
		u.selected = u.visible[0]
	}
	u.selecting.Store(true)
	u.table.Select(idx+1, 0)
	u.selecting.Store(false)
}

func (u *UI) syncSelection(row int) {
	if row <= 0 || row-1 >= len(u.visible) {
		return
	}
	u.selected = u.visible[row-1]
}

func formatState(t runner.EventType) string {
	if t == "" {
		return "-"
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}
