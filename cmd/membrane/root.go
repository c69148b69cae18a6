package main

import (
	"fmt"
	"os"

	"github.com/reglet-dev/membrane/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	profile    string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "membrane",
		Short: "Verify and drive wasm membrane guests",
		Long: `membrane - exchange buffers with sandboxed WebAssembly guests.

Guests export a small buffer-management ABI; the host verifies it with a
handshake before moving strings and byte buffers across linear memory.
Use "verify" to check a module against a profile and "call" to invoke one
of its exports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a YAML configuration file")
	cmd.PersistentFlags().StringVarP(&g.profile, "profile", "p", "", "Profile to verify against (default: from config, else basic)")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Host log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newVerifyCmd(g),
		newCallCmd(g),
		newProfilesCmd(g),
		newSchemaCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration: file (or defaults) plus flag overrides.
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var opts []config.Option
	if g.profile != "" {
		opts = append(opts, config.WithProfile(g.profile))
	}
	if g.logLevel != "" {
		opts = append(opts, config.WithLogLevel(g.logLevel))
	}
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *globalFlags) logger(cfg *config.Config) *zap.Logger {
	l, err := cfg.Log.NewLogger()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
