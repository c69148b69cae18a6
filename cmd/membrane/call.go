package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/reglet-dev/membrane/host"
	"github.com/reglet-dev/membrane/host/metrics"
	"github.com/spf13/cobra"
)

type callFlags struct {
	str      string
	hasStr   bool
	timeout  time.Duration
	noVerify bool
	stats    bool
}

func newCallCmd(g *globalFlags) *cobra.Command {
	f := &callFlags{}
	cmd := &cobra.Command{
		Use:   "call <module.wasm> <export>",
		Short: "Call a guest export",
		Long: `Load and verify the module, then call one of its exports. With --string
the text is written into a fresh guest buffer whose handle is passed as the
only argument; the buffer is released after the call. Guest log messages are
printed as they arrive.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.hasStr = cmd.Flags().Changed("string")
			return runCall(cmd, g, f, args[0], args[1])
		},
	}
	cmd.Flags().StringVarP(&f.str, "string", "s", "", "Write this string into a guest buffer and pass its handle")
	cmd.Flags().DurationVarP(&f.timeout, "timeout", "t", 0, "Call timeout (default: from config, 0 = none)")
	cmd.Flags().BoolVar(&f.noVerify, "no-verify", false, "Skip the handshake")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Print transfer counters after the call")
	return cmd
}

func runCall(cmd *cobra.Command, g *globalFlags, f *callFlags, path, export string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	st := newStyler(out, g.noColor)

	sink := host.SinkFunc(func(source, message string) {
		if source == host.SourceGuest {
			fmt.Fprintf(out, "%s %s\n", st.render(sourceStyle, "["+source+"]"), message)
		}
	})
	loader := host.NewLoader(
		host.WithConfig(cfg),
		host.WithVerify(!f.noVerify),
		host.WithOptions(
			host.WithLogger(g.logger(cfg)),
			host.WithSink(sink),
			host.WithPanicHandler(func(msg string) {
				fmt.Fprintf(out, "%s %s\n", st.render(failStyle, "[panic]"), msg)
			}),
		),
	)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	m, _, err := loader.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	defer m.Close(context.Background()) //nolint:errcheck

	timeout := cfg.Call.Timeout
	if f.timeout > 0 {
		timeout = f.timeout
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var results []uint64
	if f.hasStr {
		err = host.WithBuffer(ctx, m, []byte(f.str), func(l *host.BufferLock) error {
			var cerr error
			results, cerr = m.Call(callCtx, export, uint64(l.ID())) //nolint:gosec // G115: handles are positive
			return cerr
		})
	} else {
		results, err = m.Call(callCtx, export)
	}
	if f.stats {
		if serr := printStats(out, m); serr != nil {
			return serr
		}
	}
	if err != nil {
		return classify(err, timeout)
	}
	printResults(out, results)
	return nil
}

// classify turns call failures into messages that tell the guest's fault
// apart from the host's.
func classify(err error, timeout time.Duration) error {
	var fault *host.GuestFaultError
	switch {
	case errors.As(err, &fault) && fault.Timeout():
		return fmt.Errorf("guest call timed out after %s", timeout)
	case errors.As(err, &fault) && fault.Panic != "":
		return fmt.Errorf("guest panicked in %s: %s", fault.Export, fault.Panic)
	case errors.As(err, &fault):
		return fmt.Errorf("guest fault in %s: %w", fault.Export, fault.Err)
	case errors.Is(err, host.ErrClosed):
		return fmt.Errorf("guest instance is gone: %w", err)
	default:
		return err
	}
}

func printResults(w io.Writer, results []uint64) {
	if len(results) == 0 {
		fmt.Fprintln(w, "ok")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "result[%d] = %d\n", i, int64(r))
	}
}

// printStats gathers the membrane's counters through its Prometheus collector.
func printStats(w io.Writer, m *host.Membrane) error {
	c := metrics.NewCollector(metrics.DefaultNamespace)
	c.Track(m)

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg, c); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather stats: %w", err)
	}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			fmt.Fprintf(w, "%s %g\n", mf.GetName(), metric.GetCounter().GetValue())
		}
	}
	return nil
}
