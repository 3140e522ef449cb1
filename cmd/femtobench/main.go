// femtobench measures the cost of running small eBPF programs through the
// interpreter and through the x86-64 recompiler.
package main

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/colorfulnotion/femtobench/log"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		modules  string
	)
	rootCmd := &cobra.Command{
		Use:           "femtobench",
		Short:         "eBPF interpreter vs JIT microbenchmark",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := log.InitLogger(logLevel, cmd.ErrOrStderr()); err != nil {
				return err
			}
			log.EnableModules(modules)
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&modules, "debug", "", "comma separated log modules to enable (bench, interp, jit, helper, results or all)")

	rootCmd.AddCommand(newRunCmd(), newDisasmCmd(), newListCmd(), newArchiveCmd(), newChartCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(log.BenchMonitoring, "femtobench failed", "code", bencherrors.GetErrorCodeWithName(err), "err", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
