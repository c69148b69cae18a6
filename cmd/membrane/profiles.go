package main

import (
	"fmt"

	"github.com/reglet-dev/membrane/abi"
	"github.com/spf13/cobra"
)

func newProfilesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List known profiles and their export tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			reg, err := cfg.ProfileRegistry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			st := newStyler(out, g.noColor)

			for _, p := range reg.Profiles() {
				fmt.Fprintln(out, st.title(p.Name))
				fmt.Fprintf(out, "  version %d, memory %q, imports from %q\n", p.Version, p.Memory, p.ImportModule)
				for _, e := range p.Exports {
					req := st.render(skipStyle, "optional")
					if e.Required {
						req = st.render(okStyle, "required")
					}
					fmt.Fprintf(out, "  %-8s %s\n", req, e.Signature().Format(e.Name))
				}
				for _, r := range []abi.ImportRole{abi.ImportLog, abi.ImportPanic} {
					fmt.Fprintf(out, "  %-8s %s\n", "import", abi.ImportSignature.Format(p.ImportName(r)))
				}
			}
			return nil
		},
	}
}
