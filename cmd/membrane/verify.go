package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/reglet-dev/membrane/host"
	"github.com/spf13/cobra"
)

func newVerifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <module.wasm>",
		Short: "Run the membrane handshake against a module",
		Long: `Instantiate the module and verify its export surface against a profile:
memory export, every export signature, ABI version, the init hook and a
smoke write through the buffer path. Exits non-zero when the module is not
compliant.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			st := newStyler(out, g.noColor)

			loader := host.NewLoader(
				host.WithConfig(cfg),
				host.WithOptions(
					host.WithLogger(g.logger(cfg)),
					host.WithSink(host.SinkFunc(func(string, string) {})),
				),
			)
			m, report, err := loader.LoadFile(cmd.Context(), args[0])
			if report != nil {
				printReport(out, st, filepath.Base(args[0]), report)
			}
			if err != nil {
				var ce *host.ComplianceError
				if errors.As(err, &ce) {
					return fmt.Errorf("%s is not compliant with profile %q: %d check(s) failed", filepath.Base(args[0]), report.Profile, len(ce.Failed))
				}
				return err
			}
			return m.Close(cmd.Context())
		},
	}
}

func printReport(w io.Writer, st styler, name string, r *host.Report) {
	fmt.Fprintln(w, st.title(fmt.Sprintf("%s (profile %s)", name, r.Profile)))
	for _, c := range r.Checks {
		subject := c.Signature
		if subject == "" {
			subject = c.Name
		}
		line := fmt.Sprintf("  %-8s %s", st.status(c.Status), subject)
		if c.Detail != "" {
			line += "  " + st.render(skipStyle, c.Detail)
		}
		fmt.Fprintln(w, line)
	}
	if r.Passed() {
		fmt.Fprintln(w, st.render(okStyle, "compliant"))
	} else {
		fmt.Fprintln(w, st.render(failStyle, "NOT compliant"))
	}
}
