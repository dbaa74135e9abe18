// Command nvm runs contract scripts in the metered sandbox.
//
// Usage:
//
//	nvm run contract.js              # run a script and print its JSON result
//	nvm run --inject contract.js     # instrument the script before running it
//	nvm run --watch contract.ts      # transpile, run, and rerun on every save
//	nvm inject contract.js           # print the instrumented source
//	nvm transpile contract.ts        # print the transpiled JavaScript
//	nvm version                      # print the interpreter build
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

var configFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nvm",
		Short:         "Metered sandbox for JavaScript contracts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "nvm.yaml", "Path to config file")
	bindEngineFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		runCmd(),
		injectCmd(),
		transpileCmd(),
		versionCmd(),
	)
	return rootCmd
}

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			newPrinter(os.Stderr).failure(err)
		}
		stop()
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nvm and interpreter versions",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nvm %s (%s)\n", version, nvmVersion())
		},
	}
}
