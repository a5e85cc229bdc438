// ActionFlow CLI — инструмент командной строки для управления
// определениями узлов, blueprints и instances через HTTP API.
//
// Использование:
//
//	actionflow [--api-url URL] [-o table|json|yaml] <command> <subcommand> [flags]
//
// Команды:
//
//	definition  Определения узлов
//	blueprint   Blueprints
//	instance    Запуски blueprints
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/actionflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var (
		apiURL     string
		outputFlag string
		jsonOutput bool
		format     cli.Format
	)

	rootCmd := &cobra.Command{
		Use:           "actionflow",
		Short:         "ActionFlow CLI — action orchestration engine client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if jsonOutput {
				outputFlag = string(cli.FormatJSON)
			}
			f, err := cli.ParseFormat(outputFlag)
			if err != nil {
				return err
			}
			format = f
			return nil
		},
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("ACTIONFLOW_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", string(cli.FormatTable), "Output format: table, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Shorthand for --output json")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(format) }

	rootCmd.AddCommand(
		cli.NewDefinitionCmd(clientFn, outputFn),
		cli.NewBlueprintCmd(clientFn, outputFn),
		cli.NewInstanceCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
