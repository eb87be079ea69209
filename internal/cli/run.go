package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	httpapi "github.com/Paintersrp/procctl/internal/api/http"
	"github.com/Paintersrp/procctl/internal/cliutil"
	"github.com/Paintersrp/procctl/internal/logmux"
	"github.com/Paintersrp/procctl/internal/metrics"
	"github.com/Paintersrp/procctl/internal/runner"
)

const eventBuffer = 256

func newRunCmd(ctx *context) *cobra.Command {
	var (
		jsonOutput  bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every process in a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.loadManifest()
			if err != nil {
				return err
			}

			events := make(chan runner.Event, eventBuffer)
			r := runner.New(m, events, runner.WithLogger(ctx.logger))

			if metricsAddr != "" {
				stop, err := serveControl(cmd.Context(), ctx, r, metricsAddr)
				if err != nil {
					return err
				}
				defer stop()
			}

			printer := newEventPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonOutput)
			done := relayEvents(events, printer.print)

			outcomes, runErr := r.Run(cmd.Context())
			close(events)
			<-done
			if runErr != nil {
				return runErr
			}
			return exitResult(firstFailure(m.Names(), outcomes))
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit events as JSON lines")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve metrics and the control API on this address")
	return cmd
}

// serveControl starts the control server for r and returns a function that
// shuts it down.
func serveControl(parent stdcontext.Context, ctx *context, r *runner.Runner, addr string) (func(), error) {
	metrics.EmitBuildInfo()
	srv, err := httpapi.NewServer(httpapi.Config{Addr: addr, Controller: r})
	if err != nil {
		return nil, err
	}
	serveCtx, cancel := stdcontext.WithCancel(parent)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Run(serveCtx); err != nil {
			ctx.logger.Error().Err(err).Str("addr", srv.Addr()).Msg("control server failed")
		}
	}()
	ctx.logger.Info().Str("addr", srv.Addr()).Msg("serving metrics and control api")
	return func() {
		cancel()
		<-done
	}, nil
}

// relayEvents routes output lines through a log mux, which drops lines
// when the consumer falls behind, and hands lifecycle events straight to
// sink. The returned channel closes once every event has been delivered.
func relayEvents(events <-chan runner.Event, sink func(runner.Event)) <-chan struct{} {
	mux := logmux.New(eventBuffer)
	logs := make(chan runner.Event, eventBuffer)
	mux.Add(logs)

	go func() {
		for evt := range events {
			if evt.Type == runner.EventTypeLog {
				logs <- evt
				continue
			}
			sink(evt)
		}
		close(logs)
		mux.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range mux.Output() {
			sink(evt)
		}
	}()
	return done
}

type eventPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	stderr io.Writer
	enc    *json.Encoder
}

func newEventPrinter(out, stderr io.Writer, jsonOutput bool) *eventPrinter {
	p := &eventPrinter{out: out, stderr: stderr}
	if jsonOutput {
		p.enc = json.NewEncoder(out)
	}
	return p
}

func (p *eventPrinter) print(evt runner.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enc != nil {
		cliutil.EncodeLogEvent(p.enc, p.stderr, evt)
		return
	}
	fmt.Fprintln(p.out, cliutil.FormatText(evt))
}

// firstFailure returns the first non-zero exit value in name order.
func firstFailure(names []string, outcomes map[string]runner.Outcome) int {
	for _, name := range names {
		if out := outcomes[name]; out.Exited && out.ExitValue != 0 {
			return out.ExitValue
		}
	}
	return 0
}
