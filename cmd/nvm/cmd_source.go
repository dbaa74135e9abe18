package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func injectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inject <file>",
		Short: "Print the file with instruction counting calls inserted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transformFile(cmd, args[0], func(e engineTransforms, src string) (string, int, error) {
				return e.InjectTracingInstructions(src)
			})
		},
	}
}

func transpileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transpile <file>",
		Short: "Print the JavaScript produced from a TypeScript file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return transformFile(cmd, args[0], func(e engineTransforms, src string) (string, int, error) {
				return e.TranspileTypeScriptModule(src)
			})
		},
	}
}

type engineTransforms interface {
	InjectTracingInstructions(source string) (string, int, error)
	TranspileTypeScriptModule(source string) (string, int, error)
}

func transformFile(cmd *cobra.Command, path string, transform func(engineTransforms, string) (string, int, error)) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	e, closeEngine, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer closeEngine()

	code, _, err := transform(e, string(src))
	if err != nil {
		return reportFailure(newPrinter(cmd.ErrOrStderr()), path, err)
	}
	fmt.Fprint(cmd.OutOrStdout(), code)
	return nil
}
