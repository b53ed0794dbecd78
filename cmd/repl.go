package cmd

import (
	"context"
	"os"

	"github.com/itsmostafa/fiddle/internal/backend"
	"github.com/itsmostafa/fiddle/internal/console"
	"github.com/itsmostafa/fiddle/internal/engine"
	"github.com/spf13/cobra"
)

var replEngine string
var replDeclared bool
var replShowSource bool
var replWidth int
var replLines int

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session",
	Long:  `Start an interactive evaluation session on the terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		term := console.New(replWidth, replLines)
		defer term.Close()

		comp, err := backend.Select(replEngine, term.WriteText)
		if err != nil {
			return err
		}

		sess := engine.New(term, comp, engine.Options{
			Declared:   replDeclared,
			ShowSource: replShowSource,
		})
		term.Bind(sess.Pending, sess.Complete)

		mode := "sigil"
		if replDeclared {
			mode = "declared"
		}
		term.Banner(replEngine, mode, sess.ID[:8])

		go term.Serve()
		sess.Run(context.Background())
		return nil
	},
}

func init() {
	// Engine flag with env var fallback
	defaultEngine := "goja"
	if envEngine := os.Getenv("FIDDLE_ENGINE"); envEngine != "" {
		defaultEngine = envEngine
	}
	replCmd.Flags().StringVar(&replEngine, "engine", defaultEngine, "Compiler toolchain to use (goja, tengo)")
	replCmd.Flags().BoolVar(&replDeclared, "declared", false, "Start in declared addressing mode instead of sigil mode")
	replCmd.Flags().BoolVar(&replShowSource, "show-source", false, "Echo generated source before each compile")
	replCmd.Flags().IntVar(&replWidth, "width", 100, "Result line width")
	replCmd.Flags().IntVar(&replLines, "lines", 20, "Maximum result line count")

	rootCmd.AddCommand(replCmd)
}
