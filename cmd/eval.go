package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/itsmostafa/fiddle/internal/backend"
	"github.com/itsmostafa/fiddle/internal/console"
	"github.com/itsmostafa/fiddle/internal/engine"
	"github.com/spf13/cobra"
)

var evalEngine string
var evalSource string
var evalDeclared bool

var evalCmd = &cobra.Command{
	Use:   "eval [file]",
	Short: "Evaluate a script non-interactively",
	Long: `Evaluate a file (or the -e source) line by line through the same
engine the interactive session uses, then exit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := evalSource
		if len(args) == 1 {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			source = string(data)
		}
		if source == "" {
			return fmt.Errorf("nothing to evaluate: pass a file or -e source")
		}

		cons := console.NewBatch(cmd.OutOrStdout(), 100, 20)
		comp, err := backend.Select(evalEngine, cons.WriteText)
		if err != nil {
			return err
		}
		sess := engine.New(cons, comp, engine.Options{Declared: evalDeclared})

		ctx := context.Background()
		for _, line := range strings.Split(source, "\n") {
			sess.HandleLine(ctx, line)
			if sess.Done() {
				break
			}
		}
		return nil
	},
}

func init() {
	defaultEngine := "goja"
	if envEngine := os.Getenv("FIDDLE_ENGINE"); envEngine != "" {
		defaultEngine = envEngine
	}
	evalCmd.Flags().StringVar(&evalEngine, "engine", defaultEngine, "Compiler toolchain to use (goja, tengo)")
	evalCmd.Flags().StringVarP(&evalSource, "source", "e", "", "Evaluate the given source text")
	evalCmd.Flags().BoolVar(&evalDeclared, "declared", false, "Use declared addressing mode")

	rootCmd.AddCommand(evalCmd)
}
