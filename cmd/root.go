package cmd

import (
	"fmt"
	"os"

	"github.com/itsmostafa/fiddle/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fiddle",
	Short: "Interactive console for embedded script engines",
	Long: `Fiddle is a line-oriented interactive console. It accumulates input
into complete fragments, expands macros, rewrites session-variable
references, hands the result to an embedded compiler toolchain (goja
or tengo) and keeps every result in a persistent variable environment.`,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("fiddle %s\n", version.String()))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
